package memory

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/photonft/market_layer/internal/apperr"
	"github.com/photonft/market_layer/internal/app/domain/market"
	"github.com/photonft/market_layer/internal/app/domain/token"
	"github.com/photonft/market_layer/internal/app/domain/wallet"
	"github.com/photonft/market_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is the default backend for tests and single-node
// deployments. Tokens and listings are kept in append-only slices so the
// creation order doubles as the audit trail.
type Store struct {
	mu            sync.RWMutex
	nextTokenID   uint64
	nextListingID uint64
	tokens        map[uint64]token.Token
	tokenOrder    []uint64
	listings      []market.Listing
	listingIndex  map[uint64]int // listing ID -> slot in listings
	accounts      map[string]wallet.Account
	entries       []wallet.Entry
}

var _ storage.TokenStore = (*Store)(nil)
var _ storage.ListingStore = (*Store)(nil)
var _ storage.WalletStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextTokenID:   1,
		nextListingID: 1,
		tokens:        make(map[uint64]token.Token),
		listingIndex:  make(map[uint64]int),
		accounts:      make(map[string]wallet.Account),
	}
}

// TokenStore implementation --------------------------------------------------

func (s *Store) CreateToken(_ context.Context, tok token.Token) (token.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok.ID = s.nextTokenID
	s.nextTokenID++

	now := time.Now().UTC()
	tok.CreatedAt = now
	tok.UpdatedAt = now

	s.tokens[tok.ID] = tok
	s.tokenOrder = append(s.tokenOrder, tok.ID)
	return tok, nil
}

func (s *Store) UpdateToken(_ context.Context, tok token.Token) (token.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tokens[tok.ID]
	if !ok {
		return token.Token{}, apperr.Wrap(apperr.ErrNotFound, "token %d not found", tok.ID)
	}

	tok.CreatedAt = original.CreatedAt
	tok.ContentURI = original.ContentURI // immutable after mint
	tok.UpdatedAt = time.Now().UTC()

	s.tokens[tok.ID] = tok
	return tok, nil
}

func (s *Store) GetToken(_ context.Context, id uint64) (token.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.tokens[id]
	if !ok {
		return token.Token{}, apperr.Wrap(apperr.ErrNotFound, "token %d not found", id)
	}
	return tok, nil
}

func (s *Store) ListTokens(_ context.Context, holder string) ([]token.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]token.Token, 0)
	for _, id := range s.tokenOrder {
		tok := s.tokens[id]
		if holder == "" || strings.EqualFold(tok.Holder, holder) {
			result = append(result, tok)
		}
	}
	return result, nil
}

// ListingStore implementation ------------------------------------------------

func (s *Store) CreateListing(_ context.Context, lst market.Listing) (market.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lst = lst.Clone()
	lst.ID = s.nextListingID
	s.nextListingID++

	now := time.Now().UTC()
	lst.CreatedAt = now
	lst.UpdatedAt = now

	s.listings = append(s.listings, lst)
	s.listingIndex[lst.ID] = len(s.listings) - 1
	return lst.Clone(), nil
}

func (s *Store) UpdateListing(_ context.Context, lst market.Listing) (market.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.listingIndex[lst.ID]
	if !ok {
		return market.Listing{}, apperr.Wrap(apperr.ErrNotFound, "listing %d not found", lst.ID)
	}

	original := s.listings[slot]
	lst = lst.Clone()
	lst.CreatedAt = original.CreatedAt
	lst.TokenID = original.TokenID
	lst.Price = new(big.Int).Set(original.Price) // fixed at listing time
	lst.UpdatedAt = time.Now().UTC()

	s.listings[slot] = lst
	return lst.Clone(), nil
}

func (s *Store) GetListing(_ context.Context, id uint64) (market.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.listingIndex[id]
	if !ok {
		return market.Listing{}, apperr.Wrap(apperr.ErrNotFound, "listing %d not found", id)
	}
	return s.listings[slot].Clone(), nil
}

func (s *Store) LatestUnsoldByToken(_ context.Context, tokenID uint64) (market.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.listings) - 1; i >= 0; i-- {
		if s.listings[i].TokenID == tokenID && !s.listings[i].Sold {
			return s.listings[i].Clone(), nil
		}
	}
	return market.Listing{}, apperr.Wrap(apperr.ErrNotFound, "no unsold listing for token %d", tokenID)
}

func (s *Store) ListListings(_ context.Context) ([]market.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]market.Listing, 0, len(s.listings))
	for _, lst := range s.listings {
		result = append(result, lst.Clone())
	}
	return result, nil
}

func (s *Store) ListUnsoldListings(_ context.Context) ([]market.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]market.Listing, 0)
	for _, lst := range s.listings {
		if !lst.Sold {
			result = append(result, lst.Clone())
		}
	}
	return result, nil
}

// WalletStore implementation -------------------------------------------------

func walletKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func (s *Store) GetWalletAccount(_ context.Context, address string) (wallet.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[walletKey(address)]
	if !ok {
		return wallet.Account{}, apperr.Wrap(apperr.ErrNotFound, "wallet %s not found", address)
	}
	return acct.Clone(), nil
}

func (s *Store) PutWalletAccount(_ context.Context, acct wallet.Account) (wallet.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := walletKey(acct.Address)
	acct = acct.Clone()
	acct.Address = strings.TrimSpace(acct.Address)
	if acct.Balance == nil {
		acct.Balance = new(big.Int)
	}

	now := time.Now().UTC()
	if original, ok := s.accounts[key]; ok {
		acct.CreatedAt = original.CreatedAt
	} else {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now

	s.accounts[key] = acct
	return acct.Clone(), nil
}

func (s *Store) AppendWalletEntry(_ context.Context, entry wallet.Entry) (wallet.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry = entry.Clone()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	s.entries = append(s.entries, entry)
	return entry.Clone(), nil
}

func (s *Store) ListWalletEntries(_ context.Context, address string) ([]wallet.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := walletKey(address)
	result := make([]wallet.Entry, 0)
	for _, entry := range s.entries {
		if key == "" || walletKey(entry.From) == key || walletKey(entry.To) == key {
			result = append(result, entry.Clone())
		}
	}
	return result, nil
}
