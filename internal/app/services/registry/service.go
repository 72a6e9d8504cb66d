// Package registry implements the token registry: minting and custody
// transfer for photo NFTs. Transfers are restricted to the single market
// identity the registry is constructed with.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/photonft/market_layer/internal/apperr"
	"github.com/photonft/market_layer/internal/app/domain/token"
	"github.com/photonft/market_layer/internal/app/events"
	"github.com/photonft/market_layer/internal/app/metrics"
	"github.com/photonft/market_layer/internal/app/storage"
	"github.com/photonft/market_layer/pkg/logger"
)

// Service manages the token table.
type Service struct {
	store storage.TokenStore
	bus   *events.Bus
	log   *logger.Logger

	// authorized is the one market identity allowed to move custody.
	authorized string
}

// New constructs a registry bound to the authorized market identity.
func New(store storage.TokenStore, authorized string, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{
		store:      store,
		bus:        bus,
		authorized: strings.TrimSpace(authorized),
		log:        log,
	}
}

// Mint creates a new token held by the caller. IDs are sequential and never
// reused; the content URI is immutable afterwards.
func (s *Service) Mint(ctx context.Context, caller, contentURI string) (token.Token, error) {
	caller = strings.TrimSpace(caller)
	contentURI = strings.TrimSpace(contentURI)

	if caller == "" {
		return token.Token{}, apperr.Wrap(apperr.ErrUnauthorized, "minting requires a caller identity")
	}
	if contentURI == "" {
		return token.Token{}, fmt.Errorf("content URI is required")
	}

	tok, err := s.store.CreateToken(ctx, token.Token{
		ContentURI: contentURI,
		Creator:    caller,
		Holder:     caller,
	})
	if err != nil {
		return token.Token{}, err
	}

	s.log.WithField("token_id", tok.ID).
		WithField("holder", caller).
		Info("token minted")
	metrics.RecordMint()
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.TokenMinted, TokenID: tok.ID, Seller: caller})
	}
	return tok, nil
}

// Transfer reassigns custody of a token. Only the authorized market identity
// may call it; the registry trusts that caller and sets the holder
// unconditionally. Authorized calls always run inside a market engine
// operation, so they are serialized by the engine's operation lock.
func (s *Service) Transfer(ctx context.Context, caller string, tokenID uint64, from, to string) error {
	if !strings.EqualFold(strings.TrimSpace(caller), s.authorized) {
		return apperr.Wrap(apperr.ErrUnauthorized, "only the marketplace may transfer token custody")
	}

	tok, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		return err
	}

	tok.Holder = strings.TrimSpace(to)
	if _, err := s.store.UpdateToken(ctx, tok); err != nil {
		return err
	}

	s.log.WithField("token_id", tokenID).
		WithField("from", from).
		WithField("to", to).
		Info("token custody transferred")
	return nil
}

// HolderOf returns the current holder of a token.
func (s *Service) HolderOf(ctx context.Context, tokenID uint64) (string, error) {
	tok, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		return "", err
	}
	return tok.Holder, nil
}

// Get returns the full token record.
func (s *Service) Get(ctx context.Context, tokenID uint64) (token.Token, error) {
	return s.store.GetToken(ctx, tokenID)
}

// ListByHolder returns tokens currently held by the identity.
func (s *Service) ListByHolder(ctx context.Context, holder string) ([]token.Token, error) {
	return s.store.ListTokens(ctx, strings.TrimSpace(holder))
}
