// Package market implements the marketplace engine: the listing fee, the
// listing/escrow/sale protocol and the routing of every payment. All
// economic state lives behind this service.
package market

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/photonft/market_layer/internal/apperr"
	"github.com/photonft/market_layer/internal/app/domain/market"
	"github.com/photonft/market_layer/internal/app/domain/wallet"
	"github.com/photonft/market_layer/internal/app/events"
	"github.com/photonft/market_layer/internal/app/metrics"
	"github.com/photonft/market_layer/internal/app/services/registry"
	"github.com/photonft/market_layer/internal/app/storage"
	"github.com/photonft/market_layer/pkg/logger"
)

// DefaultListingPrice is the fee charged per listing when none is
// configured: 0.01 ether in wei.
var DefaultListingPrice = big.NewInt(10_000_000_000_000_000)

// Config fixes the engine identities and the initial listing fee.
type Config struct {
	// Operator deploys the engine, collects listing fees and is the only
	// identity allowed to change the fee.
	Operator string

	// Escrow is the engine's custodial identity. Tokens are held by it
	// between listing and sale, and the registry accepts transfers only
	// from it.
	Escrow string

	// ListingPrice is the initial fee in wei. Nil selects the default.
	ListingPrice *big.Int
}

// Service is the marketplace engine.
type Service struct {
	listings storage.ListingStore
	wallets  storage.WalletStore
	registry *registry.Service
	bus      *events.Bus
	log      *logger.Logger

	operator string
	escrow   string

	// mu is the engine operation lock: every state-changing operation
	// runs under it start to finish, which reproduces the one-at-a-time
	// execution model the protocol assumes. The wallet service shares
	// this mutex for deposits.
	mu  *sync.Mutex
	fee *big.Int
}

// Item pairs a listing with the content URI of its token for display reads.
type Item struct {
	market.Listing
	ContentURI string
}

// New constructs the engine. A nil lock gets a private one.
func New(listings storage.ListingStore, wallets storage.WalletStore, reg *registry.Service, cfg Config, lock *sync.Mutex, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("market")
	}
	if lock == nil {
		lock = &sync.Mutex{}
	}
	fee := cfg.ListingPrice
	if fee == nil {
		fee = DefaultListingPrice
	}
	return &Service{
		listings: listings,
		wallets:  wallets,
		registry: reg,
		bus:      bus,
		log:      log,
		operator: strings.TrimSpace(cfg.Operator),
		escrow:   strings.TrimSpace(cfg.Escrow),
		mu:       lock,
		fee:      new(big.Int).Set(fee),
	}
}

// Operator returns the fee-collecting identity.
func (s *Service) Operator() string { return s.operator }

// Escrow returns the engine's custodial identity.
func (s *Service) Escrow() string { return s.escrow }

// ListingPrice returns the current listing fee in wei.
func (s *Service) ListingPrice(ctx context.Context) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.fee)
}

// UpdateListingPrice overwrites the listing fee. Operator only. The fee is
// not validated against zero; the operator owns the consequences.
func (s *Service) UpdateListingPrice(ctx context.Context, caller string, price *big.Int) error {
	if !strings.EqualFold(strings.TrimSpace(caller), s.operator) {
		return apperr.Wrap(apperr.ErrUnauthorized, "only the marketplace operator may change the listing price")
	}
	if price == nil {
		price = new(big.Int)
	}

	s.mu.Lock()
	s.fee = new(big.Int).Set(price)
	s.mu.Unlock()

	s.log.WithField("listing_price", price.String()).Info("listing price updated")
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.FeeUpdated, Amount: price.String()})
	}
	return nil
}

// CreatePhotoNFT lists a token for sale at a fixed price. The caller must
// hold the token and attach exactly the listing fee as payment. On success
// the token moves into escrow, the fee is routed to the operator
// (non-refundable) and a fresh unsold listing is appended.
func (s *Service) CreatePhotoNFT(ctx context.Context, caller string, tokenID uint64, price, payment *big.Int) (market.Listing, error) {
	caller = strings.TrimSpace(caller)

	s.mu.Lock()
	defer s.mu.Unlock()

	if price == nil || price.Sign() <= 0 {
		return market.Listing{}, apperr.Wrap(apperr.ErrInvalidPrice, "Price must be at least 1 wei")
	}
	if payment == nil || payment.Cmp(s.fee) != 0 {
		return market.Listing{}, apperr.Wrap(apperr.ErrInvalidFee, "Price must be equal to listing price")
	}

	holder, err := s.registry.HolderOf(ctx, tokenID)
	if err != nil {
		return market.Listing{}, err
	}
	if !strings.EqualFold(holder, caller) {
		return market.Listing{}, apperr.Wrap(apperr.ErrUnauthorized, "only the current holder may list token %d", tokenID)
	}

	fee := new(big.Int).Set(s.fee)
	if err := s.checkBalance(ctx, caller, fee); err != nil {
		return market.Listing{}, err
	}

	// Validation is complete; every step below must succeed together.
	if err := s.move(ctx, caller, s.operator, fee, wallet.EntryListingFee, tokenRef(tokenID)); err != nil {
		return market.Listing{}, err
	}
	if err := s.registry.Transfer(ctx, s.escrow, tokenID, caller, s.escrow); err != nil {
		s.refund(ctx, s.operator, caller, fee, wallet.EntryListingFee, tokenRef(tokenID))
		return market.Listing{}, err
	}

	lst, err := s.listings.CreateListing(ctx, market.Listing{
		TokenID: tokenID,
		Seller:  caller,
		Owner:   s.escrow,
		Price:   price,
	})
	if err != nil {
		if terr := s.registry.Transfer(ctx, s.escrow, tokenID, s.escrow, caller); terr != nil {
			s.log.WithError(terr).Warnf("compensating custody transfer for token %d failed", tokenID)
		}
		s.refund(ctx, s.operator, caller, fee, wallet.EntryListingFee, tokenRef(tokenID))
		return market.Listing{}, err
	}

	s.log.WithField("listing_id", lst.ID).
		WithField("token_id", tokenID).
		WithField("seller", caller).
		WithField("price", price.String()).
		Info("listing created")
	metrics.RecordListingCreated(fee)
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:      events.ListingCreated,
			TokenID:   tokenID,
			ListingID: lst.ID,
			Seller:    caller,
			Amount:    price.String(),
		})
	}
	return lst, nil
}

// CreateMarketSale purchases the latest unsold listing of a token. The
// buyer must attach exactly the listing price; the full payment is
// forwarded to the seller and custody moves from escrow to the buyer.
func (s *Service) CreateMarketSale(ctx context.Context, buyer string, tokenID uint64, payment *big.Int) (market.Listing, error) {
	buyer = strings.TrimSpace(buyer)
	if buyer == "" {
		return market.Listing{}, apperr.Wrap(apperr.ErrUnauthorized, "purchasing requires a caller identity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lst, err := s.listings.LatestUnsoldByToken(ctx, tokenID)
	if err != nil {
		return market.Listing{}, err
	}

	if payment == nil || payment.Cmp(lst.Price) != 0 {
		return market.Listing{}, apperr.Wrap(apperr.ErrWrongAmount,
			"Try again! You must submit the exact price of the photo NFT that you wish to purchase!")
	}

	price := new(big.Int).Set(lst.Price)
	if err := s.checkBalance(ctx, buyer, price); err != nil {
		return market.Listing{}, err
	}

	if err := s.move(ctx, buyer, lst.Seller, price, wallet.EntrySalePayment, listingRef(lst.ID)); err != nil {
		return market.Listing{}, err
	}
	if err := s.registry.Transfer(ctx, s.escrow, tokenID, s.escrow, buyer); err != nil {
		s.refund(ctx, lst.Seller, buyer, price, wallet.EntrySalePayment, listingRef(lst.ID))
		return market.Listing{}, err
	}

	seller, listingID := lst.Seller, lst.ID
	lst.Sold = true
	lst.Owner = buyer
	lst, err = s.listings.UpdateListing(ctx, lst)
	if err != nil {
		if terr := s.registry.Transfer(ctx, s.escrow, tokenID, buyer, s.escrow); terr != nil {
			s.log.WithError(terr).Warnf("compensating custody transfer for token %d failed", tokenID)
		}
		s.refund(ctx, seller, buyer, price, wallet.EntrySalePayment, listingRef(listingID))
		return market.Listing{}, err
	}

	s.log.WithField("listing_id", lst.ID).
		WithField("token_id", tokenID).
		WithField("buyer", buyer).
		WithField("seller", lst.Seller).
		WithField("price", price.String()).
		Info("market sale completed")
	metrics.RecordSale(price)
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:      events.ListingSold,
			TokenID:   tokenID,
			ListingID: lst.ID,
			Seller:    lst.Seller,
			Buyer:     buyer,
			Amount:    price.String(),
		})
	}
	return lst, nil
}

// FetchUnsoldPhotoNFTs returns every unsold listing in creation order,
// joined with the content URI of its token.
func (s *Service) FetchUnsoldPhotoNFTs(ctx context.Context) ([]Item, error) {
	unsold, err := s.listings.ListUnsoldListings(ctx)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, unsold)
}

// ListingsOwnedBy returns sold listings whose rights now belong to the
// address: the photos the identity has purchased.
func (s *Service) ListingsOwnedBy(ctx context.Context, address string) ([]Item, error) {
	all, err := s.listings.ListListings(ctx)
	if err != nil {
		return nil, err
	}
	owned := all[:0:0]
	for _, lst := range all {
		if lst.Sold && strings.EqualFold(lst.Owner, strings.TrimSpace(address)) {
			owned = append(owned, lst)
		}
	}
	return s.join(ctx, owned)
}

// ListingsCreatedBy returns every listing the address created, sold or not.
func (s *Service) ListingsCreatedBy(ctx context.Context, address string) ([]Item, error) {
	all, err := s.listings.ListListings(ctx)
	if err != nil {
		return nil, err
	}
	created := all[:0:0]
	for _, lst := range all {
		if strings.EqualFold(lst.Seller, strings.TrimSpace(address)) {
			created = append(created, lst)
		}
	}
	return s.join(ctx, created)
}

// Listings returns the complete append-only listing table.
func (s *Service) Listings(ctx context.Context) ([]market.Listing, error) {
	return s.listings.ListListings(ctx)
}

func (s *Service) join(ctx context.Context, lsts []market.Listing) ([]Item, error) {
	items := make([]Item, 0, len(lsts))
	for _, lst := range lsts {
		item := Item{Listing: lst}
		if tok, err := s.registry.Get(ctx, lst.TokenID); err == nil {
			item.ContentURI = tok.ContentURI
		}
		items = append(items, item)
	}
	return items, nil
}

// Funds movement ------------------------------------------------------------
//
// The engine moves value on the wallet store directly so debit and credit
// stay inside the operation lock. checkBalance runs during validation;
// move and refund run only after validation has passed.

func (s *Service) checkBalance(ctx context.Context, address string, amount *big.Int) error {
	acct, err := s.wallets.GetWalletAccount(ctx, address)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return apperr.Wrap(apperr.ErrInsufficientFunds, "wallet %s cannot cover %s wei", address, amount.String())
	case err != nil:
		return err
	case acct.Balance.Cmp(amount) < 0:
		return apperr.Wrap(apperr.ErrInsufficientFunds, "wallet %s cannot cover %s wei", address, amount.String())
	}
	return nil
}

func (s *Service) move(ctx context.Context, from, to string, amount *big.Int, kind wallet.EntryKind, ref string) error {
	src, err := s.wallets.GetWalletAccount(ctx, from)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Wrap(apperr.ErrInsufficientFunds, "wallet %s cannot cover %s wei", from, amount.String())
	}
	if err != nil {
		return err
	}
	if src.Balance.Cmp(amount) < 0 {
		return apperr.Wrap(apperr.ErrInsufficientFunds, "wallet %s cannot cover %s wei", from, amount.String())
	}

	// A self-payment nets to zero. Writing it as debit then credit would
	// double the amount, because both writes start from the same stale
	// balance. Record the ledger entry and leave the balance alone.
	if strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(to)) {
		if _, err := s.wallets.AppendWalletEntry(ctx, wallet.Entry{
			From:      from,
			To:        to,
			Amount:    amount,
			Kind:      kind,
			Reference: ref,
		}); err != nil {
			s.log.WithError(err).Warnf("ledger entry for %s -> %s not recorded", from, to)
		}
		return nil
	}

	dst, err := s.wallets.GetWalletAccount(ctx, to)
	if errors.Is(err, apperr.ErrNotFound) {
		dst = wallet.Account{Address: to, Balance: new(big.Int)}
	} else if err != nil {
		return err
	}

	src.Balance = new(big.Int).Sub(src.Balance, amount)
	if _, err := s.wallets.PutWalletAccount(ctx, src); err != nil {
		return err
	}
	dst.Balance = new(big.Int).Add(dst.Balance, amount)
	if _, err := s.wallets.PutWalletAccount(ctx, dst); err != nil {
		// Restore the debit so no value is lost.
		src.Balance = new(big.Int).Add(src.Balance, amount)
		if _, rerr := s.wallets.PutWalletAccount(ctx, src); rerr != nil {
			s.log.WithError(rerr).Warnf("restoring debit of %s wei to %s failed", amount.String(), from)
		}
		return err
	}

	if _, err := s.wallets.AppendWalletEntry(ctx, wallet.Entry{
		From:      from,
		To:        to,
		Amount:    amount,
		Kind:      kind,
		Reference: ref,
	}); err != nil {
		s.log.WithError(err).Warnf("ledger entry for %s -> %s not recorded", from, to)
	}
	return nil
}

func (s *Service) refund(ctx context.Context, from, to string, amount *big.Int, kind wallet.EntryKind, ref string) {
	if err := s.move(ctx, from, to, amount, kind, ref+":refund"); err != nil {
		s.log.WithError(err).Warnf("refund of %s wei to %s failed", amount.String(), to)
	}
}

func tokenRef(tokenID uint64) string {
	return "token:" + strconv.FormatUint(tokenID, 10)
}

func listingRef(listingID uint64) string {
	return "listing:" + strconv.FormatUint(listingID, 10)
}
