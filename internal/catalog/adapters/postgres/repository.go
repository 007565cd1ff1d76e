package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshmart/storefront/internal/catalog/domain"
	"github.com/freshmart/storefront/internal/catalog/ports"
)

// Repository reads catalog products from PostgreSQL. Every call hits the
// database; the pricing rules depend on fresh stock levels.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	// low_stock_threshold is nullable; a NULL scans as zero and
	// EffectiveThreshold maps zero to the default.
	query := `
		SELECT id, name, price_per_kg, stock, COALESCE(low_stock_threshold, 0), created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var product domain.Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.PricePerKg,
		&product.Stock,
		&product.Threshold,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}

	return &product, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id, name, price_per_kg, stock, COALESCE(low_stock_threshold, 0), created_at, updated_at
		FROM products
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.PricePerKg,
			&product.Stock,
			&product.Threshold,
			&product.CreatedAt,
			&product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}
