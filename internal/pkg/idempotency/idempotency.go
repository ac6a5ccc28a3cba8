package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store tracks already-processed event identifiers so redelivered webhooks
// can be dropped early. The database-level reference dedup is the real
// guarantee; this is a cheap first filter.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore creates an idempotency store. A nil client is allowed (Redis is
// optional); FirstSeen then always reports true and the caller relies on the
// database guard alone.
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// FirstSeen marks key as processed and reports whether this was the first
// time it was seen.
func (s *Store) FirstSeen(ctx context.Context, key string) (bool, error) {
	if s.client == nil {
		return true, nil
	}

	ok, err := s.client.SetNX(ctx, s.prefix+":"+key, 1, s.ttl).Result()
	if err != nil {
		// Redis being down must not block webhook processing
		return true, err
	}
	return ok, nil
}
