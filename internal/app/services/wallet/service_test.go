package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/photonft/market_layer/internal/app/domain/wallet"
	"github.com/photonft/market_layer/internal/app/storage"
	"github.com/photonft/market_layer/internal/app/storage/memory"
)

func TestDepositAccumulates(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	acct, err := svc.Deposit(ctx, "0xalice", big.NewInt(100))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if acct.Balance.Int64() != 100 {
		t.Fatalf("expected balance 100, got %s", acct.Balance)
	}

	acct, err = svc.Deposit(ctx, "0xalice", big.NewInt(50))
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if acct.Balance.Int64() != 150 {
		t.Fatalf("expected balance 150, got %s", acct.Balance)
	}

	entries, err := svc.Entries(ctx, "0xalice")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Kind != wallet.EntryDeposit {
			t.Fatalf("unexpected entry kind %q", e.Kind)
		}
	}
}

func TestDepositValidation(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	if _, err := svc.Deposit(ctx, "", big.NewInt(1)); err == nil {
		t.Fatal("empty address should be rejected")
	}
	if _, err := svc.Deposit(ctx, "0xalice", big.NewInt(0)); err == nil {
		t.Fatal("zero deposit should be rejected")
	}
	if _, err := svc.Deposit(ctx, "0xalice", big.NewInt(-5)); err == nil {
		t.Fatal("negative deposit should be rejected")
	}
	if _, err := svc.Deposit(ctx, "0xalice", nil); err == nil {
		t.Fatal("nil amount should be rejected")
	}
}

func TestBalanceOfUnknownAddressIsZero(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	balance, err := svc.BalanceOf(context.Background(), "0xnobody")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected zero balance, got %s", balance)
	}
}

// faultyStore simulates a backing store outage on reads.
type faultyStore struct {
	storage.WalletStore
	err error
}

func (s faultyStore) GetWalletAccount(ctx context.Context, address string) (wallet.Account, error) {
	return wallet.Account{}, s.err
}

func TestStoreFailurePropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	svc := New(faultyStore{WalletStore: memory.New(), err: storeErr}, nil, nil)
	ctx := context.Background()

	if _, err := svc.BalanceOf(ctx, "0xalice"); !errors.Is(err, storeErr) {
		t.Fatalf("balance should surface the store failure, got %v", err)
	}
	if _, err := svc.Deposit(ctx, "0xalice", big.NewInt(100)); !errors.Is(err, storeErr) {
		t.Fatalf("deposit should surface the store failure, got %v", err)
	}
}
