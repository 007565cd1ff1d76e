package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAssigned  OrderStatus = "assigned"
	StatusInTransit OrderStatus = "in_transit"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderItem is a single line of an order. UnitPrice is frozen at checkout
// time and never recomputed, even if the product price changes later.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order is the aggregate root for a priced, stock-reserved purchase. Items
// and the stock decrement are committed together with the order row or not
// at all.
type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	CarrierID       *string         `json:"carrier_id,omitempty"`
	Status          OrderStatus     `json:"status"`
	OrderedAt       time.Time       `json:"ordered_at"`
	DeliveryAt      time.Time       `json:"delivery_at"`
	DeliveryAddress string          `json:"delivery_address"`
	CouponCode      *string         `json:"coupon_code,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
	CouponDiscount  decimal.Decimal `json:"coupon_discount"`
	LoyaltyDiscount decimal.Decimal `json:"loyalty_discount"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	CancelableUntil time.Time       `json:"cancelable_until"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if strings.TrimSpace(o.CustomerID) == "" {
		return Invalid("customer_id is required")
	}
	if strings.TrimSpace(o.DeliveryAddress) == "" {
		return Invalid("delivery_address is required")
	}
	if len(o.Items) == 0 {
		return ErrEmptyOrder
	}

	sum := decimal.Zero
	for _, item := range o.Items {
		if item.Quantity.Sign() <= 0 {
			return ErrInvalidQuantity
		}
		sum = sum.Add(item.Subtotal)
	}
	if !sum.Equal(o.Subtotal) {
		return Invalid("item subtotals must add up to the order subtotal")
	}

	if o.TotalCost.Sign() < 0 {
		return Invalid("total_cost must not be negative")
	}

	switch o.Status {
	case StatusPending:
		if o.CarrierID != nil {
			return Invalid("a pending order must not have a carrier")
		}
	case StatusAssigned, StatusInTransit:
		if o.CarrierID == nil {
			return Invalid("an assigned order must have a carrier")
		}
	}

	return nil
}

// IsTerminal indicates whether the order is in a terminal state. Terminal
// orders permit no further transitions.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// HeldByCarrier reports whether a carrier currently holds the order.
func (o Order) HeldByCarrier() bool {
	return o.Status == StatusAssigned || o.Status == StatusInTransit
}

// CancelableBy reports whether the customer may still cancel the order at the
// given instant: only while pending and before the cancellation deadline.
func (o Order) CancelableBy(customerID string, now time.Time) bool {
	if o.CustomerID != customerID {
		return false
	}
	if o.Status != StatusPending {
		return false
	}
	return o.CancelableUntil.IsZero() || now.Before(o.CancelableUntil)
}
