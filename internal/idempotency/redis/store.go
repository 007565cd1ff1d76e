package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freshmart/storefront/internal/orders/ports"
)

const (
	keyPrefix  = "idempotency:"
	defaultTTL = 24 * time.Hour
)

// Store keeps idempotency responses in Redis with a TTL. SET NX guarantees
// the first writer wins; a replayed key never overwrites the stored response.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a Redis-backed idempotency store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client, ttl: defaultTTL}
}

// Get returns the stored response for a given key if present.
func (s *Store) Get(ctx context.Context, key string) (*ports.StoredResponse, error) {
	payload, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}

	var resp ports.StoredResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode idempotency response: %w", err)
	}

	return &resp, nil
}

// Save stores the response for a key unless one already exists.
func (s *Store) Save(ctx context.Context, key string, response ports.StoredResponse) error {
	payload, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode idempotency response: %w", err)
	}

	if err := s.client.SetNX(ctx, keyPrefix+key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}

	return nil
}
