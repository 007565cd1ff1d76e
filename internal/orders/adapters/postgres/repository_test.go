//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	testpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/freshmart/storefront/internal/database"
	"github.com/freshmart/storefront/internal/orders/adapters/postgres"
	"github.com/freshmart/storefront/internal/orders/domain"
	"github.com/freshmart/storefront/internal/orders/ports"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testpostgres.Run(ctx,
		"postgres:16-alpine",
		testpostgres.WithDatabase("test"),
		testpostgres.WithUsername("test"),
		testpostgres.WithPassword("test"),
		testpostgres.BasicWaitStrategies(),
		testpostgres.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	projectRoot := findProjectRoot(t)
	migrationsPath := filepath.Join(projectRoot, "migrations")

	if err := database.RunMigrations(connStr, migrationsPath); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := database.NewPool(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
	})

	return pool
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, id string, stock int64) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO products (id, name, price_per_kg, stock, low_stock_threshold)
		VALUES ($1, $2, $3, $4, $5)
	`, id, "Apples", decimal.NewFromInt(100), decimal.NewFromInt(stock), decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
}

func productStock(t *testing.T, pool *pgxpool.Pool, id string) decimal.Decimal {
	t.Helper()
	var stock decimal.Decimal
	if err := pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}

func testOrder(id string) domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Order{
		ID:              id,
		CustomerID:      "customer-1",
		Status:          domain.StatusPending,
		OrderedAt:       now,
		DeliveryAt:      now.Add(24 * time.Hour),
		DeliveryAddress: "12 Market Street",
		Subtotal:        decimal.NewFromInt(200),
		VATAmount:       decimal.NewFromInt(40),
		CouponDiscount:  decimal.Zero,
		LoyaltyDiscount: decimal.Zero,
		TotalCost:       decimal.NewFromInt(240),
		CancelableUntil: now.Add(2 * time.Hour),
		Items: []domain.OrderItem{
			{
				ID:        id + "-item-1",
				OrderID:   id,
				ProductID: "prod-1",
				Quantity:  decimal.NewFromInt(2),
				UnitPrice: decimal.NewFromInt(100),
				Subtotal:  decimal.NewFromInt(200),
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepositoryCreate(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	seedProduct(t, pool, "prod-1", 10)
	order := testOrder("order-1")

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	retrieved, err := repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to retrieve order: %v", err)
	}

	if retrieved.Status != domain.StatusPending {
		t.Errorf("expected status %s, got %s", domain.StatusPending, retrieved.Status)
	}
	if !retrieved.TotalCost.Equal(order.TotalCost) {
		t.Errorf("expected total %s, got %s", order.TotalCost, retrieved.TotalCost)
	}
	if len(retrieved.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(retrieved.Items))
	}
	if !retrieved.Items[0].UnitPrice.Equal(order.Items[0].UnitPrice) {
		t.Errorf("expected frozen unit price %s, got %s", order.Items[0].UnitPrice, retrieved.Items[0].UnitPrice)
	}

	if stock := productStock(t, pool, "prod-1"); !stock.Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected stock 8 after reserving 2, got %s", stock)
	}
}

func TestRepositoryCreate_NoCancelDeadline(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	seedProduct(t, pool, "prod-1", 10)
	order := testOrder("order-1")
	order.CancelableUntil = time.Time{}

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	// The zero deadline is stored as NULL and must come back as zero.
	retrieved, err := repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to retrieve order: %v", err)
	}
	if !retrieved.CancelableUntil.IsZero() {
		t.Errorf("expected zero cancel deadline, got %s", retrieved.CancelableUntil)
	}

	// No deadline means the order stays cancellable, however late.
	cancelled, err := repo.CancelByCustomer(ctx, order.ID, order.CustomerID, time.Now().UTC().Add(72*time.Hour))
	if err != nil {
		t.Fatalf("failed to cancel order without deadline: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("expected cancelled status, got %s", cancelled.Status)
	}
}

func TestRepositoryCreate_InsufficientStockRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	seedProduct(t, pool, "prod-1", 1)

	err := repo.Create(ctx, testOrder("order-1"))

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if stockErr.ProductID != "prod-1" {
		t.Errorf("expected product prod-1, got %s", stockErr.ProductID)
	}

	if _, err := repo.GetByID(ctx, "order-1"); !errors.Is(err, ports.ErrNotFound) {
		t.Error("expected the whole checkout to roll back")
	}
	if stock := productStock(t, pool, "prod-1"); !stock.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected stock untouched at 1, got %s", stock)
	}
}

func TestRepositoryGetByID_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "nonexistent-id"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestRepositoryClaim(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	seedProduct(t, pool, "prod-1", 10)
	if err := repo.Create(ctx, testOrder("order-1")); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	claimed, err := repo.Claim(ctx, "order-1", "carrier-1")
	if err != nil {
		t.Fatalf("failed to claim order: %v", err)
	}
	if claimed.Status != domain.StatusAssigned {
		t.Errorf("expected status %s, got %s", domain.StatusAssigned, claimed.Status)
	}
	if claimed.CarrierID == nil || *claimed.CarrierID != "carrier-1" {
		t.Error("expected carrier-1 to hold the order")
	}

	if _, err := repo.Claim(ctx, "order-1", "carrier-2"); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed for second claim, got: %v", err)
	}

	if _, err := repo.Claim(ctx, "nonexistent-id", "carrier-1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown order, got: %v", err)
	}
}

func TestRepositoryDrop(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	seedProduct(t, pool, "prod-1", 10)
	if err := repo.Create(ctx, testOrder("order-1")); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	if _, err := repo.Claim(ctx, "order-1", "carrier-1"); err != nil {
		t.Fatalf("failed to claim order: %v", err)
	}

	stockBefore := productStock(t, pool, "prod-1")

	if _, err := repo.Drop(ctx, "order-1", "carrier-2"); !errors.Is(err, domain.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner for foreign carrier, got: %v", err)
	}

	dropped, err := repo.Drop(ctx, "order-1", "carrier-1")
	if err != nil {
		t.Fatalf("failed to drop order: %v", err)
	}
	if dropped.Status != domain.StatusPending || dropped.CarrierID != nil {
		t.Errorf("expected order back in the pending pool, got %s", dropped.Status)
	}

	if stockAfter := productStock(t, pool, "prod-1"); !stockBefore.Equal(stockAfter) {
		t.Errorf("expected stock unchanged by drop, got %s -> %s", stockBefore, stockAfter)
	}
}

func TestRepositoryCompleteDelivery(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	seedProduct(t, pool, "prod-1", 10)
	if err := repo.Create(ctx, testOrder("order-1")); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	deliveredAt := time.Now().UTC().Truncate(time.Microsecond)

	if _, err := repo.CompleteDelivery(ctx, "order-1", deliveredAt); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for unclaimed order, got: %v", err)
	}

	if _, err := repo.Claim(ctx, "order-1", "carrier-1"); err != nil {
		t.Fatalf("failed to claim order: %v", err)
	}

	delivered, err := repo.CompleteDelivery(ctx, "order-1", deliveredAt)
	if err != nil {
		t.Fatalf("failed to complete delivery: %v", err)
	}
	if delivered.Status != domain.StatusDelivered {
		t.Errorf("expected status %s, got %s", domain.StatusDelivered, delivered.Status)
	}

	if _, err := repo.Claim(ctx, "order-1", "carrier-2"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected terminal order to reject claims, got: %v", err)
	}
}

func TestRepositoryCancelByCustomer(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	seedProduct(t, pool, "prod-1", 10)
	order := testOrder("order-1")
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	if _, err := repo.CancelByCustomer(ctx, "order-1", "customer-2", time.Now().UTC()); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign customer, got: %v", err)
	}

	if _, err := repo.CancelByCustomer(ctx, "order-1", "customer-1", order.CancelableUntil.Add(time.Hour)); !errors.Is(err, domain.ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable past the deadline, got: %v", err)
	}

	cancelled, err := repo.CancelByCustomer(ctx, "order-1", "customer-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to cancel order: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("expected status %s, got %s", domain.StatusCancelled, cancelled.Status)
	}

	if stock := productStock(t, pool, "prod-1"); !stock.Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected cancellation not to restock, got %s", stock)
	}
}

func TestRepositoryList(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	seedProduct(t, pool, "prod-1", 100)
	for _, id := range []string{"order-1", "order-2", "order-3"} {
		if err := repo.Create(ctx, testOrder(id)); err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
	}
	if _, err := repo.Claim(ctx, "order-1", "carrier-1"); err != nil {
		t.Fatalf("failed to claim order: %v", err)
	}

	pending := domain.StatusPending
	orders, err := repo.List(ctx, ports.ListFilter{Status: &pending})
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("expected 2 pending orders, got %d", len(orders))
	}
	for _, order := range orders {
		if len(order.Items) != 0 {
			t.Error("expected list results without items")
		}
	}

	orders, err = repo.List(ctx, ports.ListFilter{CarrierID: "carrier-1"})
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "order-1" {
		t.Errorf("expected carrier-1 to hold order-1, got %v", orders)
	}
}

func TestRepositoryCountDelivered(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	seedProduct(t, pool, "prod-1", 100)
	for _, id := range []string{"order-1", "order-2"} {
		if err := repo.Create(ctx, testOrder(id)); err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
		if _, err := repo.Claim(ctx, id, "carrier-1"); err != nil {
			t.Fatalf("failed to claim order: %v", err)
		}
		if _, err := repo.CompleteDelivery(ctx, id, time.Now().UTC()); err != nil {
			t.Fatalf("failed to complete delivery: %v", err)
		}
	}

	count, err := repo.CountDelivered(ctx, "customer-1")
	if err != nil {
		t.Fatalf("failed to count delivered orders: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 delivered orders, got %d", count)
	}
}

func TestRepositoryInvoice(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	seedProduct(t, pool, "prod-1", 10)
	if err := repo.Create(ctx, testOrder("order-1")); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	if _, err := repo.GetInvoice(ctx, "order-1"); !errors.Is(err, ports.ErrNoInvoice) {
		t.Errorf("expected ErrNoInvoice before storing, got: %v", err)
	}

	if err := repo.StoreInvoice(ctx, "order-1", []byte("INVOICE order-1")); err != nil {
		t.Fatalf("failed to store invoice: %v", err)
	}

	invoice, err := repo.GetInvoice(ctx, "order-1")
	if err != nil {
		t.Fatalf("failed to get invoice: %v", err)
	}
	if string(invoice) != "INVOICE order-1" {
		t.Errorf("unexpected invoice content: %s", invoice)
	}

	if err := repo.StoreInvoice(ctx, "nonexistent-id", []byte("x")); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown order, got: %v", err)
	}
}
