package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold applies when a product has no threshold configured.
var DefaultLowStockThreshold = decimal.NewFromInt(5)

// Product is a catalog entry sold by weight. The engine only ever mutates
// Stock; price and threshold are owned by the catalog.
type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PricePerKg decimal.Decimal `json:"price_per_kg"`
	Stock      decimal.Decimal `json:"stock"`
	Threshold  decimal.Decimal `json:"threshold"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Validate ensures the product adheres to catalog constraints.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("product id is required")
	}
	if p.PricePerKg.Sign() <= 0 {
		return errors.New("price_per_kg must be positive")
	}
	if p.Stock.Sign() < 0 {
		return errors.New("stock must not be negative")
	}
	return nil
}

// EffectiveThreshold returns the configured low-stock threshold, falling back
// to the default when unset.
func (p Product) EffectiveThreshold() decimal.Decimal {
	if p.Threshold.Sign() > 0 {
		return p.Threshold
	}
	return DefaultLowStockThreshold
}

// LowStock reports whether the product is in the low-stock band where the
// unit price doubles: available but at or below the threshold.
func (p Product) LowStock() bool {
	return p.Stock.Sign() > 0 && p.Stock.Cmp(p.EffectiveThreshold()) <= 0
}
