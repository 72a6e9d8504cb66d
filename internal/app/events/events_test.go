package events

import (
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Event{Type: ListingCreated, TokenID: 7, Amount: "100"})

	select {
	case evt := <-ch:
		if evt.Type != ListingCreated || evt.TokenID != 7 {
			t.Fatalf("unexpected event %+v", evt)
		}
		if evt.ID == "" {
			t.Fatal("event ID should be assigned")
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("timestamp should be assigned")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(Event{Type: TokenMinted})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}

	// Publishing after cancel is a no-op, not a panic.
	bus.Publish(Event{Type: FeeUpdated})

	// Cancel is idempotent.
	cancel()
}
