package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/freshmart/storefront/internal/orders/app/commands"
	"github.com/freshmart/storefront/internal/orders/app/queries"
	"github.com/freshmart/storefront/internal/orders/domain"
	"github.com/freshmart/storefront/internal/orders/metrics"
	"github.com/freshmart/storefront/internal/orders/ports"
	"github.com/freshmart/storefront/internal/telemetry"
)

// Service bundles the order lifecycle use cases exposed to transports.
type Service struct {
	repo            ports.OrderRepository
	events          ports.EventBus
	idemStore       ports.IdempotencyStore
	logger          *slog.Logger
	metrics         *metrics.Metrics
	checkoutHandler commands.CommandHandler
	getOrderHandler *queries.GetOrderQueryHandler
	now             func() time.Time
}

// Deps wires the service. MinOrderValue and Now are optional overrides used
// mainly by tests; see commands.CheckoutDeps.
type Deps struct {
	Repo          ports.OrderRepository
	Catalog       ports.ProductCatalog
	Coupons       ports.CouponGate
	Loyalty       ports.LoyaltyGate
	Invoices      ports.InvoiceEmitter
	Events        ports.EventBus
	IdemStore     ports.IdempotencyStore
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	MinOrderValue decimal.Decimal
	Now           func() time.Time
}

// NewService wires required dependencies.
func NewService(deps Deps) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	coreHandler := commands.NewCheckoutHandler(commands.CheckoutDeps{
		Orders:        deps.Repo,
		Catalog:       deps.Catalog,
		Coupons:       deps.Coupons,
		Loyalty:       deps.Loyalty,
		Invoices:      deps.Invoices,
		Events:        deps.Events,
		Logger:        logger,
		MinOrderValue: deps.MinOrderValue,
		Now:           now,
	})
	observableHandler := commands.NewObservableCommandHandler(coreHandler, logger, deps.Metrics)

	return &Service{
		repo:            deps.Repo,
		events:          deps.Events,
		idemStore:       deps.IdemStore,
		logger:          logger,
		metrics:         deps.Metrics,
		checkoutHandler: observableHandler,
		getOrderHandler: queries.NewGetOrderQueryHandler(deps.Repo),
		now:             now,
	}
}

// CheckoutInput captures the payload for creating an order.
type CheckoutInput struct {
	CustomerID      string              `json:"customer_id"`
	Items           []CheckoutItemInput `json:"items"`
	DeliveryAddress string              `json:"delivery_address"`
	DeliveryAt      time.Time           `json:"delivery_at"`
	CouponCode      string              `json:"coupon_code,omitempty"`
}

// CheckoutItemInput is one requested cart line.
type CheckoutItemInput struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Checkout orchestrates order creation.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (*domain.Order, error) {
	items := make([]commands.CheckoutItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, commands.CheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	cmd := commands.CheckoutCommand{
		CustomerID:      input.CustomerID,
		Items:           items,
		DeliveryAddress: input.DeliveryAddress,
		DeliveryAt:      input.DeliveryAt,
		CouponCode:      input.CouponCode,
	}
	return s.checkoutHandler.Handle(ctx, cmd)
}

// ClaimOrder atomically assigns a pending, unassigned order to the carrier.
// Of two racing claims exactly one succeeds; the loser sees
// domain.ErrAlreadyClaimed.
func (s *Service) ClaimOrder(ctx context.Context, orderID, carrierID string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "Service.ClaimOrder")
	defer span.End()
	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("carrier.id", carrierID),
	)

	order, err := s.repo.Claim(ctx, orderID, carrierID)
	s.metrics.RecordTransition(ctx, "claim", err == nil)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			s.metrics.RecordClaimConflict(ctx)
		}
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	if err := s.events.PublishOrderClaimed(ctx, orderID, carrierID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order claimed event",
			"order_id", orderID, "error", err)
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

// DropOrder returns a held order to the pending pool. Only the owning carrier
// may drop it, and product stock is deliberately not restocked.
func (s *Service) DropOrder(ctx context.Context, orderID, carrierID string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "Service.DropOrder")
	defer span.End()
	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("carrier.id", carrierID),
	)

	order, err := s.repo.Drop(ctx, orderID, carrierID)
	s.metrics.RecordTransition(ctx, "drop", err == nil)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	if err := s.events.PublishOrderDropped(ctx, orderID, carrierID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order dropped event",
			"order_id", orderID, "error", err)
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

// CompleteOrder marks a held order delivered. A zero deliveredAt records the
// current time.
func (s *Service) CompleteOrder(ctx context.Context, orderID string, deliveredAt time.Time) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "Service.CompleteOrder")
	defer span.End()
	telemetry.AddSpanAttributes(span, attribute.String("order.id", orderID))

	if deliveredAt.IsZero() {
		deliveredAt = s.now()
	}

	order, err := s.repo.CompleteDelivery(ctx, orderID, deliveredAt.UTC())
	s.metrics.RecordTransition(ctx, "complete", err == nil)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	if err := s.events.PublishOrderDelivered(ctx, orderID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order delivered event",
			"order_id", orderID, "error", err)
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

// CancelOrder cancels a pending order on behalf of its customer, subject to
// the cancellation deadline.
func (s *Service) CancelOrder(ctx context.Context, orderID, customerID string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "Service.CancelOrder")
	defer span.End()
	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("customer.id", customerID),
	)

	order, err := s.repo.CancelByCustomer(ctx, orderID, customerID, s.now().UTC())
	s.metrics.RecordTransition(ctx, "cancel", err == nil)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	if err := s.events.PublishOrderCancelled(ctx, orderID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order cancelled event",
			"order_id", orderID, "error", err)
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

// GetOrder retrieves an order by ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrderHandler.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}

// ListOrders returns orders using a filter.
func (s *Service) ListOrders(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	return s.repo.List(ctx, filter)
}

// GetInvoice returns the stored invoice bytes for an order.
func (s *Service) GetInvoice(ctx context.Context, orderID string) ([]byte, error) {
	return s.repo.GetInvoice(ctx, orderID)
}

// SaveIdempotentResponse writes response details for a key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// GetIdempotentResponse retrieves previously stored response data.
func (s *Service) GetIdempotentResponse(ctx context.Context, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Get(ctx, key)
}
