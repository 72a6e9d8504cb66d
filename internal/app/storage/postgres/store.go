// Package postgres implements the storage interfaces backed by
// PostgreSQL. Monetary amounts are NUMERIC columns carried as decimal
// strings so wei values never pass through floating point.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/photonft/market_layer/internal/apperr"
	"github.com/photonft/market_layer/internal/app/domain/market"
	"github.com/photonft/market_layer/internal/app/domain/token"
	"github.com/photonft/market_layer/internal/app/domain/wallet"
	"github.com/photonft/market_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.TokenStore = (*Store)(nil)
var _ storage.ListingStore = (*Store)(nil)
var _ storage.WalletStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type tokenRow struct {
	ID         uint64    `db:"id"`
	ContentURI string    `db:"content_uri"`
	Creator    string    `db:"creator"`
	Holder     string    `db:"holder"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r tokenRow) model() token.Token {
	return token.Token{
		ID:         r.ID,
		ContentURI: r.ContentURI,
		Creator:    r.Creator,
		Holder:     r.Holder,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type listingRow struct {
	ID        uint64    `db:"id"`
	TokenID   uint64    `db:"token_id"`
	Seller    string    `db:"seller"`
	Owner     string    `db:"owner"`
	Price     string    `db:"price"`
	Sold      bool      `db:"sold"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r listingRow) model() (market.Listing, error) {
	price, err := parseWei(r.Price)
	if err != nil {
		return market.Listing{}, fmt.Errorf("listing %d: %w", r.ID, err)
	}
	return market.Listing{
		ID:        r.ID,
		TokenID:   r.TokenID,
		Seller:    r.Seller,
		Owner:     r.Owner,
		Price:     price,
		Sold:      r.Sold,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

type accountRow struct {
	Address   string    `db:"address"`
	Balance   string    `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r accountRow) model() (wallet.Account, error) {
	balance, err := parseWei(r.Balance)
	if err != nil {
		return wallet.Account{}, fmt.Errorf("wallet %s: %w", r.Address, err)
	}
	return wallet.Account{
		Address:   r.Address,
		Balance:   balance,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

type entryRow struct {
	ID        string    `db:"id"`
	FromAddr  string    `db:"from_addr"`
	ToAddr    string    `db:"to_addr"`
	Amount    string    `db:"amount"`
	Kind      string    `db:"kind"`
	Reference string    `db:"reference"`
	CreatedAt time.Time `db:"created_at"`
}

func (r entryRow) model() (wallet.Entry, error) {
	amount, err := parseWei(r.Amount)
	if err != nil {
		return wallet.Entry{}, fmt.Errorf("ledger entry %s: %w", r.ID, err)
	}
	return wallet.Entry{
		ID:        r.ID,
		From:      r.FromAddr,
		To:        r.ToAddr,
		Amount:    amount,
		Kind:      wallet.EntryKind(r.Kind),
		Reference: r.Reference,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

func parseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// --- TokenStore -------------------------------------------------------------

func (s *Store) CreateToken(ctx context.Context, tok token.Token) (token.Token, error) {
	now := time.Now().UTC()
	tok.CreatedAt = now
	tok.UpdatedAt = now

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO market_tokens (content_uri, creator, holder, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, tok.ContentURI, tok.Creator, tok.Holder, tok.CreatedAt, tok.UpdatedAt).Scan(&tok.ID)
	if err != nil {
		return token.Token{}, err
	}
	return tok, nil
}

func (s *Store) UpdateToken(ctx context.Context, tok token.Token) (token.Token, error) {
	existing, err := s.GetToken(ctx, tok.ID)
	if err != nil {
		return token.Token{}, err
	}

	tok.ContentURI = existing.ContentURI
	tok.Creator = existing.Creator
	tok.CreatedAt = existing.CreatedAt
	tok.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE market_tokens
		SET holder = $2, updated_at = $3
		WHERE id = $1
	`, tok.ID, tok.Holder, tok.UpdatedAt)
	if err != nil {
		return token.Token{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return token.Token{}, apperr.Wrap(apperr.ErrNotFound, "token %d not found", tok.ID)
	}
	return tok, nil
}

func (s *Store) GetToken(ctx context.Context, id uint64) (token.Token, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, content_uri, creator, holder, created_at, updated_at
		FROM market_tokens
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return token.Token{}, apperr.Wrap(apperr.ErrNotFound, "token %d not found", id)
	}
	if err != nil {
		return token.Token{}, err
	}
	return row.model(), nil
}

func (s *Store) ListTokens(ctx context.Context, holder string) ([]token.Token, error) {
	var rows []tokenRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, content_uri, creator, holder, created_at, updated_at
		FROM market_tokens
		WHERE $1 = '' OR lower(holder) = lower($1)
		ORDER BY id
	`, strings.TrimSpace(holder))
	if err != nil {
		return nil, err
	}

	result := make([]token.Token, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.model())
	}
	return result, nil
}

// --- ListingStore -----------------------------------------------------------

func (s *Store) CreateListing(ctx context.Context, lst market.Listing) (market.Listing, error) {
	now := time.Now().UTC()
	lst.CreatedAt = now
	lst.UpdatedAt = now

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO market_listings (token_id, seller, owner, price, sold, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, lst.TokenID, lst.Seller, lst.Owner, weiString(lst.Price), lst.Sold, lst.CreatedAt, lst.UpdatedAt).Scan(&lst.ID)
	if err != nil {
		return market.Listing{}, err
	}
	lst.Price = new(big.Int).Set(lst.Price)
	return lst, nil
}

func (s *Store) UpdateListing(ctx context.Context, lst market.Listing) (market.Listing, error) {
	existing, err := s.GetListing(ctx, lst.ID)
	if err != nil {
		return market.Listing{}, err
	}

	lst.TokenID = existing.TokenID
	lst.Price = existing.Price
	lst.CreatedAt = existing.CreatedAt
	lst.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE market_listings
		SET seller = $2, owner = $3, sold = $4, updated_at = $5
		WHERE id = $1
	`, lst.ID, lst.Seller, lst.Owner, lst.Sold, lst.UpdatedAt)
	if err != nil {
		return market.Listing{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return market.Listing{}, apperr.Wrap(apperr.ErrNotFound, "listing %d not found", lst.ID)
	}
	return lst, nil
}

func (s *Store) GetListing(ctx context.Context, id uint64) (market.Listing, error) {
	var row listingRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, token_id, seller, owner, price, sold, created_at, updated_at
		FROM market_listings
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Listing{}, apperr.Wrap(apperr.ErrNotFound, "listing %d not found", id)
	}
	if err != nil {
		return market.Listing{}, err
	}
	return row.model()
}

func (s *Store) LatestUnsoldByToken(ctx context.Context, tokenID uint64) (market.Listing, error) {
	var row listingRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, token_id, seller, owner, price, sold, created_at, updated_at
		FROM market_listings
		WHERE token_id = $1 AND NOT sold
		ORDER BY id DESC
		LIMIT 1
	`, tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Listing{}, apperr.Wrap(apperr.ErrNotFound, "no unsold listing for token %d", tokenID)
	}
	if err != nil {
		return market.Listing{}, err
	}
	return row.model()
}

func (s *Store) ListListings(ctx context.Context) ([]market.Listing, error) {
	return s.selectListings(ctx, `
		SELECT id, token_id, seller, owner, price, sold, created_at, updated_at
		FROM market_listings
		ORDER BY id
	`)
}

func (s *Store) ListUnsoldListings(ctx context.Context) ([]market.Listing, error) {
	return s.selectListings(ctx, `
		SELECT id, token_id, seller, owner, price, sold, created_at, updated_at
		FROM market_listings
		WHERE NOT sold
		ORDER BY id
	`)
}

func (s *Store) selectListings(ctx context.Context, query string, args ...interface{}) ([]market.Listing, error) {
	var rows []listingRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	result := make([]market.Listing, 0, len(rows))
	for _, row := range rows {
		lst, err := row.model()
		if err != nil {
			return nil, err
		}
		result = append(result, lst)
	}
	return result, nil
}

// --- WalletStore ------------------------------------------------------------

func (s *Store) GetWalletAccount(ctx context.Context, address string) (wallet.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT address, balance, created_at, updated_at
		FROM market_wallets
		WHERE address = lower($1)
	`, strings.TrimSpace(address))
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.Account{}, apperr.Wrap(apperr.ErrNotFound, "wallet %s not found", address)
	}
	if err != nil {
		return wallet.Account{}, err
	}
	return row.model()
}

func (s *Store) PutWalletAccount(ctx context.Context, acct wallet.Account) (wallet.Account, error) {
	now := time.Now().UTC()
	acct.UpdatedAt = now
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_wallets (address, balance, created_at, updated_at)
		VALUES (lower($1), $2, $3, $4)
		ON CONFLICT (address)
		DO UPDATE SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at
	`, strings.TrimSpace(acct.Address), weiString(acct.Balance), acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return wallet.Account{}, err
	}
	return acct, nil
}

func (s *Store) AppendWalletEntry(ctx context.Context, entry wallet.Entry) (wallet.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_wallet_entries (id, from_addr, to_addr, amount, kind, reference, created_at)
		VALUES ($1, lower($2), lower($3), $4, $5, $6, $7)
	`, entry.ID, entry.From, entry.To, weiString(entry.Amount), string(entry.Kind), entry.Reference, entry.CreatedAt)
	if err != nil {
		return wallet.Entry{}, err
	}
	return entry, nil
}

func (s *Store) ListWalletEntries(ctx context.Context, address string) ([]wallet.Entry, error) {
	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, from_addr, to_addr, amount, kind, reference, created_at
		FROM market_wallet_entries
		WHERE $1 = '' OR from_addr = lower($1) OR to_addr = lower($1)
		ORDER BY created_at
	`, strings.TrimSpace(address))
	if err != nil {
		return nil, err
	}

	result := make([]wallet.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.model()
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}
