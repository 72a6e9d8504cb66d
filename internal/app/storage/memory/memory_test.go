package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/photonft/market_layer/internal/apperr"
	"github.com/photonft/market_layer/internal/app/domain/market"
	"github.com/photonft/market_layer/internal/app/domain/token"
	"github.com/photonft/market_layer/internal/app/domain/wallet"
)

func TestTokenIDsSequential(t *testing.T) {
	store := New()
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		tok, err := store.CreateToken(ctx, token.Token{ContentURI: "uri", Creator: "a", Holder: "a"})
		if err != nil {
			t.Fatalf("create token: %v", err)
		}
		if tok.ID != want {
			t.Fatalf("expected id %d, got %d", want, tok.ID)
		}
	}
}

func TestUpdateTokenPreservesImmutableFields(t *testing.T) {
	store := New()
	ctx := context.Background()

	tok, err := store.CreateToken(ctx, token.Token{ContentURI: "ipfs://original", Creator: "a", Holder: "a"})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	tok.ContentURI = "ipfs://mutated"
	tok.Holder = "b"
	updated, err := store.UpdateToken(ctx, tok)
	if err != nil {
		t.Fatalf("update token: %v", err)
	}
	if updated.ContentURI != "ipfs://original" {
		t.Fatalf("content URI should be immutable, got %q", updated.ContentURI)
	}
	if updated.Holder != "b" {
		t.Fatalf("holder should change, got %q", updated.Holder)
	}

	if _, err := store.UpdateToken(ctx, token.Token{ID: 99}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLatestUnsoldByToken(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.CreateListing(ctx, market.Listing{TokenID: 7, Seller: "a", Price: big.NewInt(10)})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	first.Sold = true
	if _, err := store.UpdateListing(ctx, first); err != nil {
		t.Fatalf("update listing: %v", err)
	}

	second, err := store.CreateListing(ctx, market.Listing{TokenID: 7, Seller: "b", Price: big.NewInt(20)})
	if err != nil {
		t.Fatalf("create second listing: %v", err)
	}

	got, err := store.LatestUnsoldByToken(ctx, 7)
	if err != nil {
		t.Fatalf("latest unsold: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("expected listing %d, got %d", second.ID, got.ID)
	}

	if _, err := store.LatestUnsoldByToken(ctx, 8); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateListingPriceFixed(t *testing.T) {
	store := New()
	ctx := context.Background()

	lst, err := store.CreateListing(ctx, market.Listing{TokenID: 1, Seller: "a", Price: big.NewInt(100)})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	lst.Price = big.NewInt(999)
	lst.Sold = true
	updated, err := store.UpdateListing(ctx, lst)
	if err != nil {
		t.Fatalf("update listing: %v", err)
	}
	if updated.Price.Int64() != 100 {
		t.Fatalf("price should be fixed at listing time, got %s", updated.Price)
	}
	if !updated.Sold {
		t.Fatal("sold flag should persist")
	}
}

func TestListingsAreAppendOnlyInOrder(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.CreateListing(ctx, market.Listing{TokenID: uint64(i + 1), Price: big.NewInt(1)}); err != nil {
			t.Fatalf("create listing: %v", err)
		}
	}

	all, err := store.ListListings(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(all))
	}
	for i, lst := range all {
		if lst.ID != uint64(i+1) {
			t.Fatalf("creation order broken at %d: id=%d", i, lst.ID)
		}
	}
}

func TestWalletAccountUpsert(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.GetWalletAccount(ctx, "0xA"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	acct, err := store.PutWalletAccount(ctx, wallet.Account{Address: "0xA", Balance: big.NewInt(50)})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	created := acct.CreatedAt

	acct.Balance = big.NewInt(80)
	acct, err = store.PutWalletAccount(ctx, acct)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !acct.CreatedAt.Equal(created) {
		t.Fatal("upsert must preserve creation time")
	}

	// Address lookup is case-insensitive.
	got, err := store.GetWalletAccount(ctx, "0xa")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance.Int64() != 80 {
		t.Fatalf("expected balance 80, got %s", got.Balance)
	}
}

func TestWalletEntriesFilterByAddress(t *testing.T) {
	store := New()
	ctx := context.Background()

	entries := []wallet.Entry{
		{From: "0xA", To: "0xB", Amount: big.NewInt(1), Kind: wallet.EntryDeposit},
		{From: "0xB", To: "0xC", Amount: big.NewInt(2), Kind: wallet.EntrySalePayment},
		{From: "0xC", To: "0xA", Amount: big.NewInt(3), Kind: wallet.EntryListingFee},
	}
	for _, e := range entries {
		if _, err := store.AppendWalletEntry(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	forA, err := store.ListWalletEntries(ctx, "0xa")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(forA) != 2 {
		t.Fatalf("expected 2 entries for 0xA, got %d", len(forA))
	}
	for _, e := range forA {
		if e.ID == "" {
			t.Fatal("entry IDs should be assigned")
		}
	}

	all, err := store.ListWalletEntries(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
}
