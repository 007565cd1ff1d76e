package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	catalogports "github.com/freshmart/storefront/internal/catalog/ports"
	"github.com/freshmart/storefront/internal/orders/domain"
	"github.com/freshmart/storefront/internal/orders/ports"
	"github.com/freshmart/storefront/internal/pricing"
)

const (
	// DeliveryWindow bounds how far ahead a delivery may be requested.
	DeliveryWindow = 48 * time.Hour
	// CancelWindow is how long after checkout the customer may still cancel.
	CancelWindow = 2 * time.Hour
)

// DefaultMinOrderValue is the checkout floor applied when no override is
// configured.
var DefaultMinOrderValue = decimal.NewFromInt(200)

// CheckoutItem is one requested cart line.
type CheckoutItem struct {
	ProductID string
	Quantity  decimal.Decimal
}

// CheckoutCommand turns a cart into a priced, stock-reserved pending order.
type CheckoutCommand struct {
	CustomerID      string
	Items           []CheckoutItem
	DeliveryAddress string
	DeliveryAt      time.Time
	CouponCode      string
}

// Validate rejects malformed input before any collaborator is consulted.
func (c CheckoutCommand) Validate() error {
	if strings.TrimSpace(c.CustomerID) == "" {
		return domain.Invalid("customer_id is required")
	}
	if strings.TrimSpace(c.DeliveryAddress) == "" {
		return domain.Invalid("delivery_address is required")
	}
	if len(c.Items) == 0 {
		return domain.ErrEmptyOrder
	}
	for _, item := range c.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return domain.Invalid("product_id is required for every item")
		}
		if item.Quantity.Sign() <= 0 {
			return domain.ErrInvalidQuantity
		}
	}
	return nil
}

// CommandHandler executes CheckoutCommand.
type CommandHandler interface {
	Handle(ctx context.Context, cmd CheckoutCommand) (*domain.Order, error)
}

// CheckoutHandler orchestrates checkout: validate the request, price every
// line against fresh product state, resolve discounts, persist order + items
// + stock decrement in one transaction, then run the best-effort tail
// (coupon mark-used, invoice, event).
type CheckoutHandler struct {
	orders        ports.OrderRepository
	catalog       ports.ProductCatalog
	coupons       ports.CouponGate
	loyalty       ports.LoyaltyGate
	invoices      ports.InvoiceEmitter
	events        ports.EventBus
	logger        *slog.Logger
	minOrderValue decimal.Decimal
	now           func() time.Time
}

// CheckoutDeps wires the handler. Zero MinOrderValue falls back to the
// default; nil Now falls back to time.Now.
type CheckoutDeps struct {
	Orders        ports.OrderRepository
	Catalog       ports.ProductCatalog
	Coupons       ports.CouponGate
	Loyalty       ports.LoyaltyGate
	Invoices      ports.InvoiceEmitter
	Events        ports.EventBus
	Logger        *slog.Logger
	MinOrderValue decimal.Decimal
	Now           func() time.Time
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(deps CheckoutDeps) *CheckoutHandler {
	minOrder := deps.MinOrderValue
	if minOrder.Sign() <= 0 {
		minOrder = DefaultMinOrderValue
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{
		orders:        deps.Orders,
		catalog:       deps.Catalog,
		coupons:       deps.Coupons,
		loyalty:       deps.Loyalty,
		invoices:      deps.Invoices,
		events:        deps.Events,
		logger:        logger,
		minOrderValue: minOrder,
		now:           now,
	}
}

func (h *CheckoutHandler) Handle(ctx context.Context, cmd CheckoutCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.now().UTC()
	deliveryAt := cmd.DeliveryAt.UTC()
	if !deliveryAt.After(now) || deliveryAt.After(now.Add(DeliveryWindow)) {
		return nil, domain.ErrInvalidDelivery
	}

	orderID := uuid.NewString()

	items, subtotal, err := h.priceItems(ctx, orderID, cmd.Items)
	if err != nil {
		return nil, err
	}

	couponDiscount := decimal.Zero
	var couponCode *string
	if code := strings.TrimSpace(cmd.CouponCode); code != "" {
		couponDiscount, err = h.coupons.Discount(ctx, code, cmd.CustomerID, subtotal)
		if err != nil {
			if errors.Is(err, domain.ErrCouponInvalid) {
				return nil, err
			}
			return nil, &domain.CollaboratorError{Collaborator: "coupon", Err: err}
		}
		couponCode = &code
	}

	loyaltyDiscount, err := h.loyaltyDiscount(ctx, cmd.CustomerID, subtotal)
	if err != nil {
		return nil, err
	}

	totals := pricing.ComputeTotals(subtotal, couponDiscount, loyaltyDiscount)
	if totals.Total.LessThan(h.minOrderValue) {
		return nil, domain.ErrBelowMinimum
	}

	order := domain.Order{
		ID:              orderID,
		CustomerID:      cmd.CustomerID,
		Status:          domain.StatusPending,
		OrderedAt:       now,
		DeliveryAt:      deliveryAt,
		DeliveryAddress: cmd.DeliveryAddress,
		CouponCode:      couponCode,
		Subtotal:        totals.Subtotal,
		VATAmount:       totals.VAT,
		CouponDiscount:  totals.CouponDiscount,
		LoyaltyDiscount: totals.LoyaltyDiscount,
		TotalCost:       totals.Total,
		CancelableUntil: now.Add(CancelWindow),
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := h.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	// The order is committed. Everything below is best-effort: failures are
	// logged, the order stands.
	if couponCode != nil {
		if err := h.coupons.MarkUsed(ctx, *couponCode, cmd.CustomerID); err != nil {
			h.logger.WarnContext(ctx, "failed to mark coupon used",
				"order_id", order.ID, "coupon_code", *couponCode, "error", err)
		}
	}

	if invoice, err := h.invoices.Render(order); err != nil {
		h.logger.WarnContext(ctx, "invoice rendering failed, order stands",
			"order_id", order.ID, "error", err)
	} else if err := h.orders.StoreInvoice(ctx, order.ID, invoice); err != nil {
		h.logger.WarnContext(ctx, "failed to store invoice",
			"order_id", order.ID, "error", err)
	}

	if err := h.events.PublishOrderCreated(ctx, order.ID); err != nil {
		h.logger.WarnContext(ctx, "failed to publish order created event",
			"order_id", order.ID, "error", err)
	}

	return &order, nil
}

// priceItems builds order lines against fresh product reads, freezing each
// unit price at its current value. A stock shortfall is reported here for
// early feedback; the conditional decrement inside Create remains the
// authoritative check.
func (h *CheckoutHandler) priceItems(ctx context.Context, orderID string, items []CheckoutItem) ([]domain.OrderItem, decimal.Decimal, error) {
	lines := make([]domain.OrderItem, 0, len(items))
	subtotal := decimal.Zero

	for _, item := range items {
		product, err := h.catalog.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, catalogports.ErrNotFound) {
				return nil, decimal.Zero, fmt.Errorf("product %s: %w", item.ProductID, err)
			}
			return nil, decimal.Zero, &domain.CollaboratorError{Collaborator: "catalog", Err: err}
		}

		if product.Stock.LessThan(item.Quantity) {
			return nil, decimal.Zero, &domain.InsufficientStockError{ProductID: item.ProductID}
		}

		unitPrice := pricing.UnitPrice(*product)
		lineSubtotal := pricing.LineSubtotal(unitPrice, item.Quantity)

		lines = append(lines, domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}

	return lines, subtotal, nil
}

func (h *CheckoutHandler) loyaltyDiscount(ctx context.Context, customerID string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	count, err := h.loyalty.CompletedOrderCount(ctx, customerID)
	if err != nil {
		return decimal.Zero, &domain.CollaboratorError{Collaborator: "loyalty", Err: err}
	}
	if count < h.loyalty.Threshold() {
		return decimal.Zero, nil
	}
	return pricing.LoyaltyDiscount(subtotal, h.loyalty.DiscountPercent()), nil
}
