package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/freshmart/storefront/internal/database"
	"github.com/freshmart/storefront/internal/orders/domain"
	"github.com/freshmart/storefront/internal/orders/ports"
	"github.com/freshmart/storefront/internal/telemetry"
)

// ObservableRepository decorates an OrderRepository with spans and query
// duration metrics.
type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.Create")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.Int("order.item_count", len(order.Items)),
		attribute.String("operation", "create"),
	)

	start := time.Now()
	err := r.repo.Create(ctx, order)
	r.metrics.RecordQuery(ctx, "create_order", time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.GetByID")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("operation", "get_by_id"),
	)

	start := time.Now()
	order, err := r.repo.GetByID(ctx, id)
	r.metrics.RecordQuery(ctx, "get_order_by_id", time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.List")
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("operation", "list"),
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}
	telemetry.AddSpanAttributes(span, attrs...)

	start := time.Now()
	orders, err := r.repo.List(ctx, filter)
	r.metrics.RecordQuery(ctx, "list_orders", time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(orders)))
	telemetry.SetSpanSuccess(span)
	return orders, nil
}

func (r *ObservableRepository) Claim(ctx context.Context, orderID, carrierID string) (*domain.Order, error) {
	return r.transition(ctx, "claim", orderID, func(ctx context.Context) (*domain.Order, error) {
		return r.repo.Claim(ctx, orderID, carrierID)
	})
}

func (r *ObservableRepository) Drop(ctx context.Context, orderID, carrierID string) (*domain.Order, error) {
	return r.transition(ctx, "drop", orderID, func(ctx context.Context) (*domain.Order, error) {
		return r.repo.Drop(ctx, orderID, carrierID)
	})
}

func (r *ObservableRepository) CompleteDelivery(ctx context.Context, orderID string, deliveredAt time.Time) (*domain.Order, error) {
	return r.transition(ctx, "complete_delivery", orderID, func(ctx context.Context) (*domain.Order, error) {
		return r.repo.CompleteDelivery(ctx, orderID, deliveredAt)
	})
}

func (r *ObservableRepository) CancelByCustomer(ctx context.Context, orderID, customerID string, now time.Time) (*domain.Order, error) {
	return r.transition(ctx, "cancel_by_customer", orderID, func(ctx context.Context) (*domain.Order, error) {
		return r.repo.CancelByCustomer(ctx, orderID, customerID, now)
	})
}

func (r *ObservableRepository) CountDelivered(ctx context.Context, customerID string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.CountDelivered")
	defer span.End()

	telemetry.AddSpanAttributes(span, attribute.String("operation", "count_delivered"))

	start := time.Now()
	count, err := r.repo.CountDelivered(ctx, customerID)
	r.metrics.RecordQuery(ctx, "count_delivered_orders", time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return 0, err
	}

	telemetry.SetSpanSuccess(span)
	return count, nil
}

func (r *ObservableRepository) StoreInvoice(ctx context.Context, orderID string, invoice []byte) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.StoreInvoice")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("operation", "store_invoice"),
	)

	start := time.Now()
	err := r.repo.StoreInvoice(ctx, orderID, invoice)
	r.metrics.RecordQuery(ctx, "store_invoice", time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) GetInvoice(ctx context.Context, orderID string) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.GetInvoice")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("operation", "get_invoice"),
	)

	start := time.Now()
	invoice, err := r.repo.GetInvoice(ctx, orderID)
	r.metrics.RecordQuery(ctx, "get_invoice", time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return invoice, nil
}

func (r *ObservableRepository) transition(ctx context.Context, name, orderID string, fn func(context.Context) (*domain.Order, error)) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository."+name)
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("operation", name),
	)

	start := time.Now()
	order, err := fn(ctx)
	r.metrics.RecordQuery(ctx, name+"_order", time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.String("order.new_status", string(order.Status)))
	telemetry.SetSpanSuccess(span)
	return order, nil
}
