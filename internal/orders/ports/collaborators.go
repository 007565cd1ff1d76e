package ports

import (
	"context"

	"github.com/shopspring/decimal"

	catalogdomain "github.com/freshmart/storefront/internal/catalog/domain"
	"github.com/freshmart/storefront/internal/orders/domain"
)

// ProductCatalog is the engine's view of the catalog. Reads must be fresh;
// pricing against a cached product is a correctness bug.
type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (*catalogdomain.Product, error)
}

// CouponGate resolves coupon discounts. Discount returns
// domain.ErrCouponInvalid when the code does not belong to the customer, is
// expired, or was already used; there is no silent partial discount.
type CouponGate interface {
	Discount(ctx context.Context, code, customerID string, subtotal decimal.Decimal) (decimal.Decimal, error)
	MarkUsed(ctx context.Context, code, customerID string) error
}

// LoyaltyGate exposes the owner-adjustable loyalty programme. Threshold and
// percent are read at computation time, never cached by callers.
type LoyaltyGate interface {
	CompletedOrderCount(ctx context.Context, customerID string) (int, error)
	Threshold() int
	DiscountPercent() decimal.Decimal
}

// InvoiceEmitter renders a finalized order into invoice bytes. Rendering is a
// pure function of the order and safe to retry any number of times; a failure
// never rolls the order back.
type InvoiceEmitter interface {
	Render(order domain.Order) ([]byte, error)
}
