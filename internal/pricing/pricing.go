// Package pricing implements the storefront pricing rules: threshold-doubled
// unit prices, VAT, discounts, and the clamped order total. Everything here is
// a pure function of its inputs; callers are responsible for supplying fresh
// product state.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/freshmart/storefront/internal/catalog/domain"
)

// VATRate is the fixed VAT applied to every order subtotal.
var VATRate = decimal.NewFromFloat(0.20)

var two = decimal.NewFromInt(2)

// Totals carries the financial breakdown of an order. All fields are frozen
// onto the order at checkout and never recomputed.
type Totals struct {
	Subtotal        decimal.Decimal
	VAT             decimal.Decimal
	CouponDiscount  decimal.Decimal
	LoyaltyDiscount decimal.Decimal
	Total           decimal.Decimal
}

// UnitPrice returns the per-kg price for the product at its current stock
// level. Available stock at or below the low-stock threshold doubles the base
// price; out-of-stock products keep the base price (they cannot be ordered,
// so the scarcity premium never applies).
func UnitPrice(p domain.Product) decimal.Decimal {
	if p.LowStock() {
		return p.PricePerKg.Mul(two)
	}
	return p.PricePerKg
}

// LineSubtotal computes the frozen subtotal for an order line.
func LineSubtotal(unitPrice, quantity decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(quantity).Round(2)
}

// VAT returns the VAT amount for a subtotal.
func VAT(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(VATRate).Round(2)
}

// LoyaltyDiscount computes the loyalty discount for a subtotal given a
// percentage such as 5 for 5%.
func LoyaltyDiscount(subtotal, percent decimal.Decimal) decimal.Decimal {
	if percent.Sign() <= 0 {
		return decimal.Zero
	}
	return subtotal.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

// ComputeTotals assembles the order totals from a subtotal and the discounts
// already resolved by the coupon and loyalty gates. The grand total is
// clamped at zero; discounts never produce a negative charge.
func ComputeTotals(subtotal, couponDiscount, loyaltyDiscount decimal.Decimal) Totals {
	vat := VAT(subtotal)
	total := subtotal.Add(vat).Sub(couponDiscount).Sub(loyaltyDiscount)
	if total.Sign() < 0 {
		total = decimal.Zero
	}
	return Totals{
		Subtotal:        subtotal,
		VAT:             vat,
		CouponDiscount:  couponDiscount,
		LoyaltyDiscount: loyaltyDiscount,
		Total:           total,
	}
}
