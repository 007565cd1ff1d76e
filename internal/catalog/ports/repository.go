package ports

import (
	"context"
	"errors"

	"github.com/freshmart/storefront/internal/catalog/domain"
)

// ProductRepository exposes catalog reads required by the order engine.
// Implementations must return a fresh record on every call; unit prices and
// stock checks are always computed against current state, never a cache.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

var (
	// ErrNotFound is returned when the requested product does not exist.
	ErrNotFound = errors.New("product not found")
)
