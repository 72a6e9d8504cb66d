package market

import (
	"math/big"
	"time"
)

// Listing is an offer to sell one token at a fixed price. Listings are
// append-only records; a sold listing stays in the table as audit trail and
// the token may be relisted under a fresh listing.
type Listing struct {
	ID      uint64
	TokenID uint64

	// Seller is the identity that created the listing and receives the
	// full sale payment.
	Seller string

	// Owner is the current rights-holder of the listing record: the
	// marketplace escrow identity while unsold, the buyer after the sale.
	Owner string

	Price *big.Int
	Sold  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so shared listing values cannot alias the
// stored price.
func (l Listing) Clone() Listing {
	if l.Price != nil {
		l.Price = new(big.Int).Set(l.Price)
	}
	return l
}
