package queue

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/livequestions/ama-api/internal/core/domain"
)

func receive(t *testing.T, ch <-chan domain.ChangeEvent) (domain.ChangeEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return domain.ChangeEvent{}, false
	}
}

func TestBroadcaster_FansOut(t *testing.T) {
	b := NewBroadcaster(4, zerolog.Nop())
	a, unsubA, _ := b.Subscribe(context.Background())
	c, unsubC, _ := b.Subscribe(context.Background())
	defer unsubA()
	defer unsubC()

	_ = b.Publish(context.Background(), domain.ChangeEvent{Kind: domain.ChangeDelete, ID: "q1"})

	for _, ch := range []<-chan domain.ChangeEvent{a, c} {
		ev, ok := receive(t, ch)
		if !ok || ev.ID != "q1" {
			t.Fatalf("unexpected delivery: %+v ok=%v", ev, ok)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(4, zerolog.Nop())
	ch, unsubscribe, _ := b.Subscribe(context.Background())

	unsubscribe()
	unsubscribe()

	if _, ok := receive(t, ch); ok {
		t.Fatalf("expected closed channel")
	}
	if b.Subscribers() != 0 {
		t.Fatalf("subscriber not removed")
	}
}

func TestBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster(4, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, _ := b.Subscribe(ctx)

	cancel()

	if _, ok := receive(t, ch); ok {
		t.Fatalf("expected closed channel after cancel")
	}
}

func TestBroadcaster_LaggingSubscriberDropped(t *testing.T) {
	b := NewBroadcaster(1, zerolog.Nop())
	slow, _, _ := b.Subscribe(context.Background())

	_ = b.Publish(context.Background(), domain.ChangeEvent{Kind: domain.ChangeDelete, ID: "a"})
	_ = b.Publish(context.Background(), domain.ChangeEvent{Kind: domain.ChangeDelete, ID: "b"})

	if ev, ok := receive(t, slow); !ok || ev.ID != "a" {
		t.Fatalf("expected buffered event first, got %+v ok=%v", ev, ok)
	}
	if _, ok := receive(t, slow); ok {
		t.Fatalf("lagging subscriber should be closed")
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster(4, zerolog.Nop())
	ch, _, _ := b.Subscribe(context.Background())

	b.Close()
	if _, ok := receive(t, ch); ok {
		t.Fatalf("expected closed channel")
	}

	late, _, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe after close: %v", err)
	}
	if _, ok := receive(t, late); ok {
		t.Fatalf("subscription after close should be closed")
	}
}
