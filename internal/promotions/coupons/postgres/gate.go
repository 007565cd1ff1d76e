package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/freshmart/storefront/internal/orders/domain"
)

// Gate resolves coupon discounts from the coupons table. A coupon is a fixed
// discount amount issued to one customer, single-use, with an expiry.
type Gate struct {
	pool *pgxpool.Pool
}

func NewGate(pool *pgxpool.Pool) *Gate {
	return &Gate{pool: pool}
}

// Discount returns the coupon's discount amount. Unknown, foreign, used, or
// expired codes all yield domain.ErrCouponInvalid; the caller never receives
// a partial discount.
func (g *Gate) Discount(ctx context.Context, code, customerID string, _ decimal.Decimal) (decimal.Decimal, error) {
	query := `
		SELECT amount
		FROM coupons
		WHERE code = $1 AND customer_id = $2 AND used_at IS NULL AND expires_at > now()
	`

	var amount decimal.Decimal
	err := g.pool.QueryRow(ctx, query, code, customerID).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrCouponInvalid
		}
		return decimal.Zero, fmt.Errorf("select coupon: %w", err)
	}

	return amount, nil
}

// MarkUsed consumes the coupon. The update is conditional on it still being
// unused, so a coupon can be consumed at most once.
func (g *Gate) MarkUsed(ctx context.Context, code, customerID string) error {
	query := `
		UPDATE coupons
		SET used_at = now()
		WHERE code = $1 AND customer_id = $2 AND used_at IS NULL
	`

	result, err := g.pool.Exec(ctx, query, code, customerID)
	if err != nil {
		return fmt.Errorf("mark coupon used: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrCouponInvalid
	}

	return nil
}
