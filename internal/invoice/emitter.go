// Package invoice renders finalized orders into invoice documents. Rendering
// is a pure function of the order: the same order always yields the same
// bytes, so invoices can be regenerated at any time after checkout.
package invoice

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/freshmart/storefront/internal/orders/domain"
)

// Emitter renders plain-text invoices.
type Emitter struct {
	sellerName string
}

// NewEmitter constructs an Emitter issuing invoices under the given seller
// name.
func NewEmitter(sellerName string) *Emitter {
	return &Emitter{sellerName: sellerName}
}

// Render produces the invoice document for a finalized order.
func (e *Emitter) Render(order domain.Order) ([]byte, error) {
	if order.ID == "" {
		return nil, fmt.Errorf("cannot render invoice for order without ID")
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("cannot render invoice for order %s without items", order.ID)
	}

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", e.sellerName)
	fmt.Fprintf(&buf, "INVOICE %s\n", order.ID)
	fmt.Fprintf(&buf, "Date: %s\n", order.OrderedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Customer: %s\n", order.CustomerID)
	fmt.Fprintf(&buf, "Deliver to: %s\n\n", order.DeliveryAddress)

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tQTY (kg)\tUNIT PRICE\tSUBTOTAL")
	for _, item := range order.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			item.ProductID,
			item.Quantity.String(),
			item.UnitPrice.StringFixed(2),
			item.Subtotal.StringFixed(2),
		)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("render invoice table: %w", err)
	}

	fmt.Fprintf(&buf, "\nSubtotal:\t%s\n", order.Subtotal.StringFixed(2))
	fmt.Fprintf(&buf, "VAT (20%%):\t%s\n", order.VATAmount.StringFixed(2))
	if order.CouponDiscount.Sign() > 0 {
		code := ""
		if order.CouponCode != nil {
			code = " (" + *order.CouponCode + ")"
		}
		fmt.Fprintf(&buf, "Coupon%s:\t-%s\n", code, order.CouponDiscount.StringFixed(2))
	}
	if order.LoyaltyDiscount.Sign() > 0 {
		fmt.Fprintf(&buf, "Loyalty discount:\t-%s\n", order.LoyaltyDiscount.StringFixed(2))
	}
	fmt.Fprintf(&buf, "TOTAL:\t%s\n", order.TotalCost.StringFixed(2))

	return buf.Bytes(), nil
}
