package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/livequestions/ama-api/internal/core/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := Connect(context.Background(), Config{Addr: s.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, s
}

func TestConnect_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	if _, err := Connect(context.Background(), Config{Addr: addr, Timeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestIdempotencyStore_ClaimAndReplay(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	id, claimed, err := store.Claim(ctx, "k1", "q-first")
	if err != nil || !claimed || id != "q-first" {
		t.Fatalf("first claim: id=%s claimed=%v err=%v", id, claimed, err)
	}

	id, claimed, err = store.Claim(ctx, "k1", "q-second")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed || id != "q-first" {
		t.Fatalf("expected replay of q-first, got id=%s claimed=%v", id, claimed)
	}
}

func TestIdempotencyStore_Release(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	_, _, _ = store.Claim(ctx, "k1", "q-first")
	if err := store.Release(ctx, "k1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	id, claimed, err := store.Claim(ctx, "k1", "q-retry")
	if err != nil || !claimed || id != "q-retry" {
		t.Fatalf("claim after release: id=%s claimed=%v err=%v", id, claimed, err)
	}
}

func TestIdempotencyStore_Expiry(t *testing.T) {
	client, s := setupTestRedis(t)
	store := NewIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	_, _, _ = store.Claim(ctx, "k1", "q-first")
	s.FastForward(2 * time.Minute)

	if _, claimed, _ := store.Claim(ctx, "k1", "q-later"); !claimed {
		t.Fatalf("expired key should be claimable again")
	}
}

func TestFeed_PublishSubscribe(t *testing.T) {
	client, _ := setupTestRedis(t)
	feed := NewFeed(client, "", zerolog.Nop())
	ctx := context.Background()

	events, unsubscribe, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	q := domain.Question{ID: "q1", Text: "hello", Author: "ann", Votes: 1, Voters: []string{"ann"}, Timestamp: 42}
	if err := feed.Publish(ctx, domain.ChangeEvent{Kind: domain.ChangeInsert, ID: "q1", Question: &q}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != domain.ChangeInsert || ev.Question == nil || ev.Question.Timestamp != 42 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestFeed_UndecodablePayloadBecomesUnknownKind(t *testing.T) {
	client, _ := setupTestRedis(t)
	feed := NewFeed(client, "custom", zerolog.Nop())
	ctx := context.Background()

	events, unsubscribe, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	if err := client.Publish(ctx, "custom", "not json").Err(); err != nil {
		t.Fatalf("raw publish: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != "undecodable" {
			t.Fatalf("unexpected kind: %s", ev.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestFeed_UnsubscribeClosesChannel(t *testing.T) {
	client, _ := setupTestRedis(t)
	feed := NewFeed(client, "", zerolog.Nop())

	events, unsubscribe, err := feed.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	unsubscribe()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed after unsubscribe")
	}
}
