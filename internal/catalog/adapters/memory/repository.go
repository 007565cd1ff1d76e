package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshmart/storefront/internal/catalog/domain"
	"github.com/freshmart/storefront/internal/catalog/ports"
)

// Repository is an in-memory catalog for local development and tests. It also
// acts as the stock ledger for the in-memory order repository: Reserve checks
// and decrements all requested quantities under one lock, so concurrent
// reservations see the same all-or-nothing semantics as the SQL transaction.
type Repository struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewRepository constructs a new in-memory catalog.
func NewRepository() *Repository {
	return &Repository{products: make(map[string]domain.Product)}
}

// Put stores or replaces a product.
func (r *Repository) Put(_ context.Context, product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
}

// GetByID fetches a single product by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	product, ok := r.products[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := product
	return &copy, nil
}

// List returns all products ordered by name.
func (r *Repository) List(_ context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]domain.Product, 0, len(r.products))
	for _, product := range r.products {
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].Name < products[j].Name
	})
	return products, nil
}

// Reserve atomically decrements stock for every requested quantity. If any
// product is missing or short on stock, nothing is decremented and the
// offending product ID is returned.
func (r *Repository) Reserve(_ context.Context, quantities map[string]decimal.Decimal) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, qty := range quantities {
		product, ok := r.products[id]
		if !ok || product.Stock.LessThan(qty) {
			return id, false
		}
	}

	for id, qty := range quantities {
		product := r.products[id]
		product.Stock = product.Stock.Sub(qty)
		product.UpdatedAt = time.Now().UTC()
		r.products[id] = product
	}

	return "", true
}
