package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const pendingMarker = "__pending__"

// IdempotencyStore remembers the outcome of a request keyed by the
// client-supplied Idempotency-Key header.
type IdempotencyStore struct {
	client *Client
	ttl    time.Duration
}

// Idempotency returns an idempotency store whose keys live for ttl.
func (c *Client) Idempotency(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: c, ttl: ttl}
}

func idempotencyKey(scope, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, key)
}

// Claim marks key as in flight. It returns false when the key is already
// claimed or completed.
func (s *IdempotencyStore) Claim(ctx context.Context, scope, key string) (bool, error) {
	return s.client.rdb.SetNX(ctx, idempotencyKey(scope, key), pendingMarker, s.ttl).Result()
}

// Result returns the stored result for a completed key. done is false when
// the key is unknown or still in flight.
func (s *IdempotencyStore) Result(ctx context.Context, scope, key string) (result []byte, done bool, err error) {
	raw, err := s.client.rdb.Get(ctx, idempotencyKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if string(raw) == pendingMarker {
		return nil, false, nil
	}
	return raw, true, nil
}

// Complete stores result for a key this process claimed.
func (s *IdempotencyStore) Complete(ctx context.Context, scope, key string, result []byte) error {
	_, err := s.client.completeScript.Run(ctx, s.client.rdb,
		[]string{idempotencyKey(scope, key)},
		pendingMarker, result, s.ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("complete idempotency script failed: %w", err)
	}
	return nil
}

// Release forgets an in-flight key so the client may retry.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	_, err := s.client.releaseScript.Run(ctx, s.client.rdb,
		[]string{idempotencyKey(scope, key)}, pendingMarker).Result()
	if err != nil {
		return fmt.Errorf("release idempotency script failed: %w", err)
	}
	return nil
}
