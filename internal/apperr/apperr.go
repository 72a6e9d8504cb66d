// Package apperr defines the error kinds shared by the token registry and
// the marketplace engine. Callers match on the sentinel with errors.Is; the
// wrapped message is what reaches the end user.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPrice rejects listings priced below one wei.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidFee rejects listing payments that do not match the
	// configured listing price exactly.
	ErrInvalidFee = errors.New("invalid listing fee")

	// ErrWrongAmount rejects sale payments that do not match the listing
	// price exactly.
	ErrWrongAmount = errors.New("wrong amount")

	// ErrNotFound covers unknown tokens, wallets and listings.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized covers privileged calls made by the wrong identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientFunds rejects payments the caller cannot cover.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Wrap attaches a human-readable message to one of the sentinel kinds while
// keeping the kind matchable with errors.Is.
func Wrap(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
