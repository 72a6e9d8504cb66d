package wallet

import (
	"math/big"
	"time"
)

// Account tracks the recorded balance for one marketplace identity.
// Addresses are opaque strings; the store normalises them case-insensitively.
type Account struct {
	Address   string
	Balance   *big.Int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the account.
func (a Account) Clone() Account {
	if a.Balance != nil {
		a.Balance = new(big.Int).Set(a.Balance)
	}
	return a
}

// EntryKind classifies a ledger movement.
type EntryKind string

const (
	EntryDeposit     EntryKind = "deposit"
	EntryListingFee  EntryKind = "listing_fee"
	EntrySalePayment EntryKind = "sale_payment"
)

// Entry is one append-only ledger record. Every debit is paired with a
// credit in the same engine operation, so summing entries reconciles to the
// account balances.
type Entry struct {
	ID        string
	From      string // empty for deposits
	To        string
	Amount    *big.Int
	Kind      EntryKind
	Reference string // listing or token reference, free-form
	CreatedAt time.Time
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	if e.Amount != nil {
		e.Amount = new(big.Int).Set(e.Amount)
	}
	return e
}
