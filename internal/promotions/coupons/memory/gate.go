package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshmart/storefront/internal/orders/domain"
)

// Coupon is an issued discount voucher held in memory.
type Coupon struct {
	Code       string
	CustomerID string
	Amount     decimal.Decimal
	ExpiresAt  time.Time
	Used       bool
}

// Gate is an in-memory coupon gate for local development and tests.
type Gate struct {
	mu      sync.Mutex
	coupons map[string]Coupon
}

// NewGate constructs an empty in-memory coupon gate.
func NewGate() *Gate {
	return &Gate{coupons: make(map[string]Coupon)}
}

func key(code, customerID string) string {
	return code + ":" + customerID
}

// Issue registers a coupon for a customer.
func (g *Gate) Issue(coupon Coupon) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.coupons[key(coupon.Code, coupon.CustomerID)] = coupon
}

// Discount returns the coupon amount or domain.ErrCouponInvalid.
func (g *Gate) Discount(_ context.Context, code, customerID string, _ decimal.Decimal) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	coupon, ok := g.coupons[key(code, customerID)]
	if !ok || coupon.Used || !coupon.ExpiresAt.After(time.Now()) {
		return decimal.Zero, domain.ErrCouponInvalid
	}
	return coupon.Amount, nil
}

// MarkUsed consumes the coupon if it is still unused.
func (g *Gate) MarkUsed(_ context.Context, code, customerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	coupon, ok := g.coupons[key(code, customerID)]
	if !ok || coupon.Used {
		return domain.ErrCouponInvalid
	}
	coupon.Used = true
	g.coupons[key(code, customerID)] = coupon
	return nil
}
