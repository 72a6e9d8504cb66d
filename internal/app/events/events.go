// Package events provides the marketplace event bus. The engine publishes
// an event after each committed operation; subscribers (websocket feed,
// stats collector) consume them asynchronously. Publishing never blocks and
// never participates in operation atomicity.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type classifies a marketplace event.
type Type string

const (
	TokenMinted    Type = "token.minted"
	ListingCreated Type = "listing.created"
	ListingSold    Type = "listing.sold"
	FeeUpdated     Type = "fee.updated"
)

// Event is one marketplace occurrence.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	TokenID   uint64 `json:"token_id,omitempty"`
	ListingID uint64 `json:"listing_id,omitempty"`
	Seller    string `json:"seller,omitempty"`
	Buyer     string `json:"buyer,omitempty"`

	// Amount is the wei value involved, as a decimal string.
	Amount string `json:"amount,omitempty"`
}

const subscriberBuffer = 64

// Bus fans events out to subscribers. Slow subscribers drop events rather
// than stall the publisher.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a consumer. The returned cancel function must be
// called to release the subscription.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
