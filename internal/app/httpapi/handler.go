// Package httpapi exposes the marketplace over REST plus a websocket
// event feed.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/photonft/market_layer/internal/apperr"
	app "github.com/photonft/market_layer/internal/app"
	market "github.com/photonft/market_layer/internal/app/services/market"
	"github.com/photonft/market_layer/internal/app/services/metadata"
)

// Options configures the HTTP surface.
type Options struct {
	// JWTSecret signs operator session tokens. Empty disables the admin
	// surface.
	JWTSecret string
	// OperatorPasswordHash is the bcrypt hash the operator logs in with.
	OperatorPasswordHash string
	// TokenTTLMinutes bounds operator session lifetime.
	TokenTTLMinutes int
	// AuditFile, when set, receives the admin audit trail as JSONL.
	AuditFile string
}

// handler bundles HTTP endpoints for the marketplace services.
type handler struct {
	app   *app.Application
	auth  *authenticator
	audit *auditLog
	ws    *eventFeed
}

// NewHandler returns a mux exposing the marketplace REST API.
func NewHandler(application *app.Application, opts Options) (http.Handler, error) {
	sink, err := newFileAuditSink(opts.AuditFile)
	if err != nil {
		return nil, fmt.Errorf("open audit sink: %w", err)
	}

	h := &handler{
		app:   application,
		auth:  newAuthenticator(opts.JWTSecret, opts.OperatorPasswordHash, opts.TokenTTLMinutes),
		audit: newAuditLog(0, sink),
		ws:    newEventFeed(application.Events),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/tokens", h.tokens)
	mux.HandleFunc("/tokens/", h.tokenResource)
	mux.HandleFunc("/market/listing-price", h.listingPrice)
	mux.HandleFunc("/market/listings", h.listings)
	mux.HandleFunc("/market/unsold", h.unsold)
	mux.HandleFunc("/market/sales", h.sales)
	mux.HandleFunc("/market/owned/", h.owned)
	mux.HandleFunc("/market/created/", h.created)
	mux.HandleFunc("/wallets/", h.wallets)
	mux.HandleFunc("/auth/login", h.login)
	mux.HandleFunc("/admin/audit", h.adminAudit)
	mux.HandleFunc("/ws/events", h.ws.serve)
	mux.HandleFunc("/healthz", h.healthz)
	return mux, nil
}

// statusFor maps domain error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, apperr.ErrInvalidPrice),
		errors.Is(err, apperr.ErrInvalidFee),
		errors.Is(err, apperr.ErrWrongAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) tokens(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Caller     string `json:"caller"`
			ContentURI string `json:"content_uri"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(payload.Caller) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("caller is required"))
			return
		}
		if strings.TrimSpace(payload.ContentURI) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("content_uri is required"))
			return
		}

		tok, err := h.app.Registry.Mint(r.Context(), payload.Caller, payload.ContentURI)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, tok)

	case http.MethodGet:
		toks, err := h.app.Registry.ListByHolder(r.Context(), r.URL.Query().Get("holder"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, toks)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) tokenResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	idRaw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/tokens"), "/")
	id, err := strconv.ParseUint(idRaw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid token id %q", idRaw))
		return
	}

	tok, err := h.app.Registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if r.URL.Query().Get("resolve") == "true" && h.app.Metadata != nil {
		md, err := h.app.Metadata.Resolve(r.Context(), tok.ContentURI)
		if err == nil {
			writeJSON(w, http.StatusOK, struct {
				Token    interface{} `json:"token"`
				Metadata interface{} `json:"metadata"`
			}{tok, md})
			return
		}
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *handler) listingPrice(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		price := h.app.Market.ListingPrice(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"listing_price": price.String()})

	case http.MethodPut:
		claims, err := h.auth.verify(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		var payload struct {
			Price string `json:"price"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		price, err := parseAmount(payload.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := h.app.Market.UpdateListingPrice(r.Context(), h.app.Market.Operator(), price); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		h.recordAudit(r, claims, http.StatusOK)
		writeJSON(w, http.StatusOK, map[string]string{"listing_price": price.String()})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) listings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Caller  string `json:"caller"`
			TokenID uint64 `json:"token_id"`
			Price   string `json:"price"`
			Payment string `json:"payment"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		price, err := parseAmount(payload.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		payment, err := parseAmount(payload.Payment)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		lst, err := h.app.Market.CreatePhotoNFT(r.Context(), payload.Caller, payload.TokenID, price, payment)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, lst)

	case http.MethodGet:
		lsts, err := h.app.Market.Listings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, lsts)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) unsold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := h.app.Market.FetchUnsoldPhotoNFTs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if r.URL.Query().Get("resolve") == "true" && h.app.Metadata != nil {
		type resolvedItem struct {
			market.Item
			Metadata *metadata.Metadata `json:"metadata,omitempty"`
		}
		resolved := make([]resolvedItem, 0, len(items))
		for _, item := range items {
			out := resolvedItem{Item: item}
			// An unreachable document leaves the entry unresolved.
			if md, err := h.app.Metadata.Resolve(r.Context(), item.ContentURI); err == nil {
				out.Metadata = &md
			}
			resolved = append(resolved, out)
		}
		writeJSON(w, http.StatusOK, resolved)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) sales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Caller  string `json:"caller"`
		TokenID uint64 `json:"token_id"`
		Payment string `json:"payment"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payment, err := parseAmount(payload.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	lst, err := h.app.Market.CreateMarketSale(r.Context(), payload.Caller, payload.TokenID, payment)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, lst)
}

func (h *handler) owned(w http.ResponseWriter, r *http.Request) {
	h.listingsByAddress(w, r, "/market/owned", h.app.Market.ListingsOwnedBy)
}

func (h *handler) created(w http.ResponseWriter, r *http.Request) {
	h.listingsByAddress(w, r, "/market/created", h.app.Market.ListingsCreatedBy)
}

func (h *handler) listingsByAddress(w http.ResponseWriter, r *http.Request, prefix string, fetch func(context.Context, string) ([]market.Item, error)) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	address := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if address == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	items, err := fetch(r.Context(), address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) wallets(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/wallets"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	address := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		balance, err := h.app.Wallet.BalanceOf(r.Context(), address)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		entries, err := h.app.Wallet.Entries(r.Context(), address)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Address string      `json:"address"`
			Balance string      `json:"balance"`
			Entries interface{} `json:"entries"`
		}{address, balance.String(), entries})
		return
	}

	if len(parts) == 2 && parts[1] == "deposit" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Amount string `json:"amount"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		amount, err := parseAmount(payload.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		acct, err := h.app.Wallet.Deposit(r.Context(), address, amount)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, acct)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.auth.login(payload.User, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *handler) adminAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.auth.verify(r); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

func (h *handler) recordAudit(r *http.Request, claims *operatorClaims, status int) {
	user := ""
	if claims != nil {
		user = claims.Subject
	}
	h.audit.add(auditEntry{
		Time:       nowUTC(),
		User:       user,
		Path:       r.URL.Path,
		Method:     r.Method,
		Status:     status,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
}

func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is required")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
