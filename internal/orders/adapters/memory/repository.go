package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	catalogmemory "github.com/freshmart/storefront/internal/catalog/adapters/memory"
	"github.com/freshmart/storefront/internal/orders/domain"
	"github.com/freshmart/storefront/internal/orders/ports"
)

// Repository provides an in-memory order store for local development and
// tests. All transitions take the same guarded form as the SQL adapter:
// precondition and mutation happen under one lock, so concurrent claims and
// cancellations resolve to exactly one winner.
type Repository struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	invoices map[string][]byte
	catalog  *catalogmemory.Repository
}

// NewRepository constructs a new in-memory repository backed by the given
// catalog for stock reservations.
func NewRepository(catalog *catalogmemory.Repository) *Repository {
	return &Repository{
		orders:   make(map[string]domain.Order),
		invoices: make(map[string][]byte),
		catalog:  catalog,
	}
}

// Create stores the order after reserving stock for every item. Reservation
// is all-or-nothing; a shortfall leaves both stock and the order store
// untouched.
func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	quantities := make(map[string]decimal.Decimal, len(order.Items))
	for _, item := range order.Items {
		quantities[item.ProductID] = quantities[item.ProductID].Add(item.Quantity)
	}

	if productID, ok := r.catalog.Reserve(ctx, quantities); !ok {
		return &domain.InsufficientStockError{ProductID: productID}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

// GetByID fetches a single order by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := order
	return &copy, nil
}

// List returns orders respecting the provided filter. Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Order
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		if filter.CarrierID != "" && (order.CarrierID == nil || *order.CarrierID != filter.CarrierID) {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OrderedAt.Before(result[j].OrderedAt)
	})

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Order{}, nil
	}

	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}

	slice := make([]domain.Order, end-start)
	copy(slice, result[start:end])

	return slice, nil
}

// Claim assigns the order to the carrier iff it is pending and unassigned.
func (r *Repository) Claim(_ context.Context, orderID, carrierID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, ports.ErrNotFound
	}

	if order.Status != domain.StatusPending || order.CarrierID != nil {
		if order.IsTerminal() {
			return nil, domain.ErrInvalidState
		}
		return nil, domain.ErrAlreadyClaimed
	}

	carrier := carrierID
	order.CarrierID = &carrier
	order.Status = domain.StatusAssigned
	order.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = order

	copy := order
	return &copy, nil
}

// Drop returns a held order to the pending pool without restocking.
func (r *Repository) Drop(_ context.Context, orderID, carrierID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, ports.ErrNotFound
	}

	if !order.HeldByCarrier() {
		return nil, domain.ErrInvalidState
	}
	if order.CarrierID == nil || *order.CarrierID != carrierID {
		return nil, domain.ErrNotOwner
	}

	order.CarrierID = nil
	order.Status = domain.StatusPending
	order.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = order

	copy := order
	return &copy, nil
}

// CompleteDelivery marks a held order delivered.
func (r *Repository) CompleteDelivery(_ context.Context, orderID string, deliveredAt time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, ports.ErrNotFound
	}

	if !order.HeldByCarrier() || order.CarrierID == nil {
		return nil, domain.ErrInvalidState
	}

	order.Status = domain.StatusDelivered
	order.DeliveryAt = deliveredAt
	order.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = order

	copy := order
	return &copy, nil
}

// CancelByCustomer cancels a pending order before its deadline.
func (r *Repository) CancelByCustomer(_ context.Context, orderID, customerID string, now time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, ports.ErrNotFound
	}

	if order.CustomerID != customerID {
		return nil, ports.ErrNotFound
	}
	if !order.CancelableBy(customerID, now) {
		if order.IsTerminal() {
			return nil, domain.ErrInvalidState
		}
		return nil, domain.ErrNotCancellable
	}

	order.Status = domain.StatusCancelled
	order.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = order

	copy := order
	return &copy, nil
}

// CountDelivered returns the number of delivered orders for a customer.
func (r *Repository) CountDelivered(_ context.Context, customerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, order := range r.orders {
		if order.CustomerID == customerID && order.Status == domain.StatusDelivered {
			count++
		}
	}
	return count, nil
}

// StoreInvoice attaches invoice bytes to an order.
func (r *Repository) StoreInvoice(_ context.Context, orderID string, invoice []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[orderID]; !ok {
		return ports.ErrNotFound
	}
	stored := make([]byte, len(invoice))
	copy(stored, invoice)
	r.invoices[orderID] = stored
	return nil
}

// GetInvoice returns the stored invoice bytes for an order.
func (r *Repository) GetInvoice(_ context.Context, orderID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.orders[orderID]; !ok {
		return nil, ports.ErrNotFound
	}
	invoice, ok := r.invoices[orderID]
	if !ok {
		return nil, ports.ErrNoInvoice
	}
	return invoice, nil
}
