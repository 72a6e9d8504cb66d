// Package wallet tracks recorded balances for marketplace identities and
// the append-only ledger of value movements. The market engine moves funds
// directly on the wallet store inside its operation lock; this service
// carries the public surface (deposits and reads).
package wallet

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/photonft/market_layer/internal/apperr"
	"github.com/photonft/market_layer/internal/app/domain/wallet"
	"github.com/photonft/market_layer/internal/app/storage"
	"github.com/photonft/market_layer/pkg/logger"
)

// Service manages wallet accounts.
type Service struct {
	store storage.WalletStore
	log   *logger.Logger

	// lock serializes deposits against market engine operations. The
	// application shares one mutex between this service and the engine.
	lock *sync.Mutex
}

// New constructs a wallet service. A nil lock gets a private one.
func New(store storage.WalletStore, lock *sync.Mutex, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("wallet")
	}
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Service{store: store, lock: lock, log: log}
}

// Deposit credits the address with the amount and records a ledger entry.
func (s *Service) Deposit(ctx context.Context, address string, amount *big.Int) (wallet.Account, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return wallet.Account{}, apperr.Wrap(apperr.ErrNotFound, "wallet address is required")
	}
	if amount == nil || amount.Sign() <= 0 {
		return wallet.Account{}, apperr.Wrap(apperr.ErrInvalidPrice, "deposit amount must be positive")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	acct, err := s.store.GetWalletAccount(ctx, address)
	if errors.Is(err, apperr.ErrNotFound) {
		acct = wallet.Account{Address: address, Balance: new(big.Int)}
	} else if err != nil {
		return wallet.Account{}, err
	}
	acct.Balance = new(big.Int).Add(acct.Balance, amount)

	acct, err = s.store.PutWalletAccount(ctx, acct)
	if err != nil {
		return wallet.Account{}, err
	}
	if _, err := s.store.AppendWalletEntry(ctx, wallet.Entry{
		To:     address,
		Amount: amount,
		Kind:   wallet.EntryDeposit,
	}); err != nil {
		return wallet.Account{}, err
	}

	s.log.WithField("address", address).
		WithField("amount", amount.String()).
		Info("wallet deposit")
	return acct, nil
}

// BalanceOf returns the recorded balance. Unknown addresses hold zero.
func (s *Service) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	acct, err := s.store.GetWalletAccount(ctx, address)
	if errors.Is(err, apperr.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return acct.Balance, nil
}

// Account returns the stored account for the address.
func (s *Service) Account(ctx context.Context, address string) (wallet.Account, error) {
	return s.store.GetWalletAccount(ctx, address)
}

// Entries returns the ledger entries touching the address, oldest first.
func (s *Service) Entries(ctx context.Context, address string) ([]wallet.Entry, error) {
	return s.store.ListWalletEntries(ctx, address)
}
