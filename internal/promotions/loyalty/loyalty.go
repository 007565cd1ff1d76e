// Package loyalty implements the owner-adjustable loyalty programme:
// customers whose delivered-order count meets the threshold get a percentage
// off every subsequent order subtotal.
package loyalty

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/freshmart/storefront/internal/orders/ports"
)

const (
	DefaultThreshold = 5
)

// DefaultDiscountPercent applies when no override is configured.
var DefaultDiscountPercent = decimal.NewFromInt(5)

// Settings holds the loyalty parameters. They are process-wide mutable state
// the owner can adjust at runtime; reads always see the latest values.
type Settings struct {
	mu        sync.RWMutex
	threshold int
	percent   decimal.Decimal
}

// NewSettings constructs settings with the given initial values; non-positive
// inputs fall back to the defaults.
func NewSettings(threshold int, percent decimal.Decimal) *Settings {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if percent.Sign() <= 0 {
		percent = DefaultDiscountPercent
	}
	return &Settings{threshold: threshold, percent: percent}
}

// Threshold returns the delivered-order count required for the discount.
func (s *Settings) Threshold() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// DiscountPercent returns the discount percentage, e.g. 5 for 5%.
func (s *Settings) DiscountPercent() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.percent
}

// Update replaces both parameters after validating them.
func (s *Settings) Update(threshold int, percent decimal.Decimal) error {
	if threshold < 0 {
		return errors.New("loyalty threshold must not be negative")
	}
	if percent.Sign() < 0 || percent.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("loyalty percent must be between 0 and 100")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = threshold
	s.percent = percent
	return nil
}

// Gate answers loyalty questions for the checkout flow. The completed-order
// count comes from the order store so it is always current.
type Gate struct {
	settings *Settings
	orders   ports.OrderRepository
}

// NewGate constructs a Gate.
func NewGate(settings *Settings, orders ports.OrderRepository) *Gate {
	return &Gate{settings: settings, orders: orders}
}

func (g *Gate) CompletedOrderCount(ctx context.Context, customerID string) (int, error) {
	return g.orders.CountDelivered(ctx, customerID)
}

func (g *Gate) Threshold() int {
	return g.settings.Threshold()
}

func (g *Gate) DiscountPercent() decimal.Decimal {
	return g.settings.DiscountPercent()
}
