package storage

import (
	"context"

	"github.com/photonft/market_layer/internal/app/domain/market"
	"github.com/photonft/market_layer/internal/app/domain/token"
	"github.com/photonft/market_layer/internal/app/domain/wallet"
)

// TokenStore persists minted tokens. Token IDs are assigned by the store,
// sequentially from 1, and are never reused.
type TokenStore interface {
	CreateToken(ctx context.Context, tok token.Token) (token.Token, error)
	UpdateToken(ctx context.Context, tok token.Token) (token.Token, error)
	GetToken(ctx context.Context, id uint64) (token.Token, error)
	ListTokens(ctx context.Context, holder string) ([]token.Token, error)
}

// ListingStore persists marketplace listings as an append-only table in
// creation order.
type ListingStore interface {
	CreateListing(ctx context.Context, lst market.Listing) (market.Listing, error)
	UpdateListing(ctx context.Context, lst market.Listing) (market.Listing, error)
	GetListing(ctx context.Context, id uint64) (market.Listing, error)

	// LatestUnsoldByToken returns the most recent unsold listing for the
	// token, or a NotFound error when none exists.
	LatestUnsoldByToken(ctx context.Context, tokenID uint64) (market.Listing, error)

	// ListListings returns every listing in ascending creation order.
	ListListings(ctx context.Context) ([]market.Listing, error)

	// ListUnsoldListings returns unsold listings in ascending creation order.
	ListUnsoldListings(ctx context.Context) ([]market.Listing, error)
}

// WalletStore persists balance accounts and the ledger entries moving
// value between them.
type WalletStore interface {
	GetWalletAccount(ctx context.Context, address string) (wallet.Account, error)
	PutWalletAccount(ctx context.Context, acct wallet.Account) (wallet.Account, error)

	AppendWalletEntry(ctx context.Context, entry wallet.Entry) (wallet.Entry, error)
	ListWalletEntries(ctx context.Context, address string) ([]wallet.Entry, error)
}
