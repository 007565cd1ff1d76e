package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshmart/storefront/internal/orders/domain"
	"github.com/freshmart/storefront/internal/orders/ports"
)

// Repository persists orders in PostgreSQL. All lifecycle transitions are
// conditional UPDATEs: the WHERE clause carries the precondition and the
// affected-row count decides success. When a conditional write misses, the
// row is re-read once to classify the failure for the caller; that read never
// overrides the write's verdict.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `
	id, customer_id, carrier_id, status, ordered_at, delivery_at,
	delivery_address, coupon_code, subtotal, vat_amount, coupon_discount,
	loyalty_discount, total_cost, cancelable_until, created_at, updated_at
`

// Create writes the order, its items, and the per-product stock decrements in
// a single transaction. The decrement is conditional on remaining stock, so
// two checkouts racing on the same low-stock product cannot both commit.
func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertOrder := `
		INSERT INTO orders (
			id, customer_id, carrier_id, status, ordered_at, delivery_at,
			delivery_address, coupon_code, subtotal, vat_amount, coupon_discount,
			loyalty_discount, total_cost, cancelable_until, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = tx.Exec(ctx, insertOrder,
		order.ID,
		order.CustomerID,
		order.CarrierID,
		order.Status,
		order.OrderedAt,
		order.DeliveryAt,
		order.DeliveryAddress,
		order.CouponCode,
		order.Subtotal,
		order.VATAmount,
		order.CouponDiscount,
		order.LoyaltyDiscount,
		order.TotalCost,
		nullableTime(order.CancelableUntil),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	insertItem := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	reserveStock := `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
	`

	for _, item := range order.Items {
		if _, err := tx.Exec(ctx, insertItem,
			item.ID, order.ID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		result, err := tx.Exec(ctx, reserveStock, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		if result.RowsAffected() == 0 {
			return &domain.InsufficientStockError{ProductID: item.ProductID}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkout tx: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := r.scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// List returns matching orders without their items; GetByID loads the full
// aggregate.
func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR customer_id = $2)
		  AND ($3::text IS NULL OR carrier_id = $3)
		ORDER BY ordered_at DESC
		LIMIT $4 OFFSET $5
	`

	var statusFilter, customerFilter, carrierFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}
	if filter.CustomerID != "" {
		customerFilter = &filter.CustomerID
	}
	if filter.CarrierID != "" {
		carrierFilter = &filter.CarrierID
	}

	offset := (page - 1) * pageSize

	rows, err := r.pool.Query(ctx, query, statusFilter, customerFilter, carrierFilter, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

func (r *Repository) Claim(ctx context.Context, orderID, carrierID string) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET carrier_id = $2, status = $3, updated_at = now()
		WHERE id = $1 AND status = $4 AND carrier_id IS NULL
	`

	result, err := r.pool.Exec(ctx, query, orderID, carrierID, domain.StatusAssigned, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("claim order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, r.classifyClaimFailure(ctx, orderID)
	}

	return r.GetByID(ctx, orderID)
}

func (r *Repository) Drop(ctx context.Context, orderID, carrierID string) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET carrier_id = NULL, status = $3, updated_at = now()
		WHERE id = $1 AND carrier_id = $2 AND status IN ($4, $5)
	`

	result, err := r.pool.Exec(ctx, query,
		orderID, carrierID, domain.StatusPending, domain.StatusAssigned, domain.StatusInTransit)
	if err != nil {
		return nil, fmt.Errorf("drop order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, r.classifyCarrierFailure(ctx, orderID, carrierID)
	}

	return r.GetByID(ctx, orderID)
}

func (r *Repository) CompleteDelivery(ctx context.Context, orderID string, deliveredAt time.Time) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET status = $3, delivery_at = $2, updated_at = now()
		WHERE id = $1 AND carrier_id IS NOT NULL AND status IN ($4, $5)
	`

	result, err := r.pool.Exec(ctx, query,
		orderID, deliveredAt, domain.StatusDelivered, domain.StatusAssigned, domain.StatusInTransit)
	if err != nil {
		return nil, fmt.Errorf("complete delivery: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, r.classifyStateFailure(ctx, orderID)
	}

	return r.GetByID(ctx, orderID)
}

func (r *Repository) CancelByCustomer(ctx context.Context, orderID, customerID string, now time.Time) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET status = $4, updated_at = now()
		WHERE id = $1 AND customer_id = $2 AND status = $5
		  AND (cancelable_until IS NULL OR cancelable_until > $3)
	`

	result, err := r.pool.Exec(ctx, query,
		orderID, customerID, now, domain.StatusCancelled, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, r.classifyCancelFailure(ctx, orderID, customerID)
	}

	return r.GetByID(ctx, orderID)
}

func (r *Repository) CountDelivered(ctx context.Context, customerID string) (int, error) {
	query := `SELECT count(*) FROM orders WHERE customer_id = $1 AND status = $2`

	var count int
	if err := r.pool.QueryRow(ctx, query, customerID, domain.StatusDelivered).Scan(&count); err != nil {
		return 0, fmt.Errorf("count delivered orders: %w", err)
	}
	return count, nil
}

func (r *Repository) StoreInvoice(ctx context.Context, orderID string, invoice []byte) error {
	query := `UPDATE orders SET invoice = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, orderID, invoice)
	if err != nil {
		return fmt.Errorf("store invoice: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Repository) GetInvoice(ctx context.Context, orderID string) ([]byte, error) {
	query := `SELECT invoice FROM orders WHERE id = $1`

	var invoice []byte
	if err := r.pool.QueryRow(ctx, query, orderID).Scan(&invoice); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select invoice: %w", err)
	}
	if len(invoice) == 0 {
		return nil, ports.ErrNoInvoice
	}
	return invoice, nil
}

// classifyClaimFailure explains a missed claim update. The re-read is for
// caller messaging only; the conditional write already decided the outcome.
func (r *Repository) classifyClaimFailure(ctx context.Context, orderID string) error {
	order, err := r.peek(ctx, orderID)
	if err != nil {
		return err
	}
	if order.IsTerminal() {
		return domain.ErrInvalidState
	}
	return domain.ErrAlreadyClaimed
}

func (r *Repository) classifyCarrierFailure(ctx context.Context, orderID, carrierID string) error {
	order, err := r.peek(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.HeldByCarrier() {
		return domain.ErrInvalidState
	}
	if order.CarrierID == nil || *order.CarrierID != carrierID {
		return domain.ErrNotOwner
	}
	return domain.ErrInvalidState
}

func (r *Repository) classifyStateFailure(ctx context.Context, orderID string) error {
	if _, err := r.peek(ctx, orderID); err != nil {
		return err
	}
	// The order exists but is not held by any carrier.
	return domain.ErrInvalidState
}

func (r *Repository) classifyCancelFailure(ctx context.Context, orderID, customerID string) error {
	order, err := r.peek(ctx, orderID)
	if err != nil {
		return err
	}
	if order.CustomerID != customerID {
		// Do not reveal other customers' orders.
		return ports.ErrNotFound
	}
	if order.IsTerminal() {
		return domain.ErrInvalidState
	}
	return domain.ErrNotCancellable
}

// peek reads the order row without its items, for failure classification.
func (r *Repository) peek(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := r.scanOrder(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *Repository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

// scanOrder reads one order row. cancelable_until is nullable: NULL means
// the order has no cancellation deadline and comes back as the zero time,
// mirroring what nullableTime writes.
func (r *Repository) scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	var cancelableUntil *time.Time
	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.CarrierID,
		&order.Status,
		&order.OrderedAt,
		&order.DeliveryAt,
		&order.DeliveryAddress,
		&order.CouponCode,
		&order.Subtotal,
		&order.VATAmount,
		&order.CouponDiscount,
		&order.LoyaltyDiscount,
		&order.TotalCost,
		&cancelableUntil,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if cancelableUntil != nil {
		order.CancelableUntil = *cancelableUntil
	}
	return &order, nil
}

// nullableTime stores the zero time, which the engine reads as "no
// deadline", as a SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
