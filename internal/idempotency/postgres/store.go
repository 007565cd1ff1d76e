// Package postgres persists idempotency keys alongside the orders they
// created, so checkout replays survive process restarts.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshmart/storefront/internal/orders/ports"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the response stored for key, or nil when the key is unused.
func (s *Store) Get(ctx context.Context, key string) (*ports.StoredResponse, error) {
	var resp ports.StoredResponse
	err := s.pool.QueryRow(ctx,
		`SELECT status_code, body, order_id FROM idempotency_keys WHERE key = $1`,
		key,
	).Scan(&resp.StatusCode, &resp.Body, &resp.OrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select idempotency key: %w", err)
	}

	return &resp, nil
}

// Save records the response for key. ON CONFLICT DO NOTHING makes the first
// writer win; a racing duplicate keeps the original response.
func (s *Store) Save(ctx context.Context, key string, response ports.StoredResponse) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (key, status_code, body, order_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO NOTHING`,
		key, response.StatusCode, response.Body, response.OrderID,
	)
	if err != nil {
		return fmt.Errorf("insert idempotency key: %w", err)
	}

	return nil
}
