package token

import "time"

// Token represents a minted photo NFT. The content URI is fixed at mint
// time; only the holder changes, and only through an authorized transfer.
type Token struct {
	ID         uint64
	ContentURI string
	Creator    string
	Holder     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
