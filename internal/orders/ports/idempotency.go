package ports

import "context"

// StoredResponse is the checkout response replayed for a duplicate
// Idempotency-Key. Replaying the stored body instead of re-running checkout
// is what keeps a retried submission from decrementing stock twice.
type StoredResponse struct {
	StatusCode int
	Body       []byte
	OrderID    string
}

// IdempotencyStore maps an Idempotency-Key to the response of the checkout
// that first used it. Save is first-write-wins: a concurrent duplicate must
// never overwrite the original response.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Save(ctx context.Context, key string, response StoredResponse) error
}
