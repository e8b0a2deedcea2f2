package bus

import (
	"context"
	"testing"
	"time"
)

func TestHubBroadcastReachesSubscribers(t *testing.T) {
	h := NewHub[int]()
	ctx := context.Background()

	c, cancel := h.Subscribe(ctx)
	defer cancel()

	go h.Broadcast(ctx, 42)

	select {
	case v := <-c:
		if v != 42 {
			t.Fatalf("received %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast never arrived")
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub[int]()
	ctx := context.Background()

	_, cancel := h.Subscribe(ctx)
	cancel()

	// With no live subscriber the broadcast must not block.
	done := make(chan struct{})
	go func() {
		h.Broadcast(ctx, 1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a canceled subscription")
	}
}
