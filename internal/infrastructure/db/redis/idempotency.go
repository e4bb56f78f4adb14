package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/livequestions/ama-api/internal/core/ports"
)

const defaultIdempotencyTTL = 24 * time.Hour

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore binds Idempotency-Key headers to the question they created.
// Key format: idem:question:<key>
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Claim binds key to questionID unless it is already bound, in which case it
// returns the bound question id.
func (s *IdempotencyStore) Claim(ctx context.Context, key, questionID string) (string, bool, error) {
	for range 2 {
		ok, err := s.client.SetNX(ctx, s.key(key), questionID, s.ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("idempotency claim: %w", err)
		}
		if ok {
			return questionID, true, nil
		}

		existing, err := s.client.Get(ctx, s.key(key)).Result()
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET; try again.
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("idempotency lookup: %w", err)
		}
		return existing, false, nil
	}
	return "", false, errors.New("idempotency claim: key kept expiring")
}

// Release forgets key so a failed submission can be retried with it.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *IdempotencyStore) key(k string) string {
	return "idem:question:" + k
}
