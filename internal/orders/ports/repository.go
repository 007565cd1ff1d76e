package ports

import (
	"context"
	"errors"
	"time"

	"github.com/freshmart/storefront/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application
// layer. Every transition method is a single atomic conditional write: the
// precondition is encoded in the mutation itself and the affected-row count
// is the sole source of truth for success. Implementations classify a failed
// write by re-reading the row afterwards, never the other way around.
type OrderRepository interface {
	// Create persists the order, its items, and the stock decrement for each
	// item in one transaction. A product with insufficient stock aborts the
	// whole operation with *domain.InsufficientStockError.
	Create(ctx context.Context, order domain.Order) error

	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)

	// Claim assigns the order to the carrier iff it is pending and unassigned.
	// Exactly one of two racing claims succeeds; the loser gets
	// domain.ErrAlreadyClaimed.
	Claim(ctx context.Context, orderID, carrierID string) (*domain.Order, error)

	// Drop returns a held order to the pending pool iff the requesting
	// carrier owns it. Stock is not restocked.
	Drop(ctx context.Context, orderID, carrierID string) (*domain.Order, error)

	// CompleteDelivery marks a held order delivered and records the actual
	// delivery time.
	CompleteDelivery(ctx context.Context, orderID string, deliveredAt time.Time) (*domain.Order, error)

	// CancelByCustomer cancels a pending order iff the customer owns it and
	// the cancellation deadline has not passed at the given instant.
	CancelByCustomer(ctx context.Context, orderID, customerID string, now time.Time) (*domain.Order, error)

	// CountDelivered returns the number of delivered orders for a customer,
	// feeding the loyalty gate.
	CountDelivered(ctx context.Context, customerID string) (int, error)

	// StoreInvoice attaches rendered invoice bytes to an order. Invoices are
	// regenerable, so losing this write is tolerable.
	StoreInvoice(ctx context.Context, orderID string, invoice []byte) error
	GetInvoice(ctx context.Context, orderID string) ([]byte, error)
}

// ListFilter narrows list queries by status, participant, and pagination.
type ListFilter struct {
	Status     *domain.OrderStatus
	CustomerID string
	CarrierID  string
	Page       int
	PageSize   int
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrNoInvoice is returned when an order has no stored invoice yet.
	ErrNoInvoice = errors.New("order has no invoice")
)
