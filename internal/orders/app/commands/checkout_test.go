package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	catalogdomain "github.com/freshmart/storefront/internal/catalog/domain"
	"github.com/freshmart/storefront/internal/orders/app/commands"
	"github.com/freshmart/storefront/internal/orders/domain"
	"github.com/freshmart/storefront/internal/orders/ports"
)

type mockRepository struct {
	createFn       func(ctx context.Context, order domain.Order) error
	storeInvoiceFn func(ctx context.Context, orderID string, invoice []byte) error
}

func (m *mockRepository) Create(ctx context.Context, order domain.Order) error {
	if m.createFn != nil {
		return m.createFn(ctx, order)
	}
	return nil
}

func (m *mockRepository) GetByID(context.Context, string) (*domain.Order, error) {
	return nil, ports.ErrNotFound
}

func (m *mockRepository) List(context.Context, ports.ListFilter) ([]domain.Order, error) {
	return nil, nil
}

func (m *mockRepository) Claim(context.Context, string, string) (*domain.Order, error) {
	return nil, nil
}

func (m *mockRepository) Drop(context.Context, string, string) (*domain.Order, error) {
	return nil, nil
}

func (m *mockRepository) CompleteDelivery(context.Context, string, time.Time) (*domain.Order, error) {
	return nil, nil
}

func (m *mockRepository) CancelByCustomer(context.Context, string, string, time.Time) (*domain.Order, error) {
	return nil, nil
}

func (m *mockRepository) CountDelivered(context.Context, string) (int, error) {
	return 0, nil
}

func (m *mockRepository) StoreInvoice(ctx context.Context, orderID string, invoice []byte) error {
	if m.storeInvoiceFn != nil {
		return m.storeInvoiceFn(ctx, orderID, invoice)
	}
	return nil
}

func (m *mockRepository) GetInvoice(context.Context, string) ([]byte, error) {
	return nil, ports.ErrNoInvoice
}

type mockCatalog struct {
	getByIDFn func(ctx context.Context, id string) (*catalogdomain.Product, error)
}

func (m *mockCatalog) GetByID(ctx context.Context, id string) (*catalogdomain.Product, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, errors.New("no product configured")
}

type mockCoupons struct {
	discountFn func(ctx context.Context, code, customerID string, subtotal decimal.Decimal) (decimal.Decimal, error)
	markUsedFn func(ctx context.Context, code, customerID string) error
}

func (m *mockCoupons) Discount(ctx context.Context, code, customerID string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if m.discountFn != nil {
		return m.discountFn(ctx, code, customerID, subtotal)
	}
	return decimal.Zero, domain.ErrCouponInvalid
}

func (m *mockCoupons) MarkUsed(ctx context.Context, code, customerID string) error {
	if m.markUsedFn != nil {
		return m.markUsedFn(ctx, code, customerID)
	}
	return nil
}

type mockLoyalty struct {
	countFn   func(ctx context.Context, customerID string) (int, error)
	threshold int
	percent   decimal.Decimal
}

func (m *mockLoyalty) CompletedOrderCount(ctx context.Context, customerID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, customerID)
	}
	return 0, nil
}

func (m *mockLoyalty) Threshold() int {
	if m.threshold > 0 {
		return m.threshold
	}
	return 5
}

func (m *mockLoyalty) DiscountPercent() decimal.Decimal {
	if m.percent.Sign() > 0 {
		return m.percent
	}
	return decimal.NewFromInt(5)
}

type mockInvoices struct {
	renderFn func(order domain.Order) ([]byte, error)
}

func (m *mockInvoices) Render(order domain.Order) ([]byte, error) {
	if m.renderFn != nil {
		return m.renderFn(order)
	}
	return []byte("invoice"), nil
}

type mockEventBus struct {
	publishOrderCreatedFn func(ctx context.Context, orderID string) error
}

func (m *mockEventBus) PublishOrderCreated(ctx context.Context, orderID string) error {
	if m.publishOrderCreatedFn != nil {
		return m.publishOrderCreatedFn(ctx, orderID)
	}
	return nil
}

func (m *mockEventBus) PublishOrderClaimed(context.Context, string, string) error { return nil }
func (m *mockEventBus) PublishOrderDropped(context.Context, string, string) error { return nil }
func (m *mockEventBus) PublishOrderDelivered(context.Context, string) error       { return nil }
func (m *mockEventBus) PublishOrderCancelled(context.Context, string) error       { return nil }

var checkoutNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func stockedProduct(price, stock int64) *catalogdomain.Product {
	return &catalogdomain.Product{
		ID:         "prod-1",
		Name:       "Apples",
		PricePerKg: decimal.NewFromInt(price),
		Stock:      decimal.NewFromInt(stock),
		Threshold:  decimal.NewFromInt(5),
	}
}

func newHandler(deps commands.CheckoutDeps) *commands.CheckoutHandler {
	if deps.Orders == nil {
		deps.Orders = &mockRepository{}
	}
	if deps.Catalog == nil {
		deps.Catalog = &mockCatalog{
			getByIDFn: func(context.Context, string) (*catalogdomain.Product, error) {
				return stockedProduct(100, 50), nil
			},
		}
	}
	if deps.Coupons == nil {
		deps.Coupons = &mockCoupons{}
	}
	if deps.Loyalty == nil {
		deps.Loyalty = &mockLoyalty{}
	}
	if deps.Invoices == nil {
		deps.Invoices = &mockInvoices{}
	}
	if deps.Events == nil {
		deps.Events = &mockEventBus{}
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return checkoutNow }
	}
	return commands.NewCheckoutHandler(deps)
}

func validCommand() commands.CheckoutCommand {
	return commands.CheckoutCommand{
		CustomerID: "customer-1",
		Items: []commands.CheckoutItem{
			{ProductID: "prod-1", Quantity: decimal.NewFromInt(2)},
		},
		DeliveryAddress: "12 Market Street",
		DeliveryAt:      checkoutNow.Add(24 * time.Hour),
	}
}

func TestCheckout(t *testing.T) {
	t.Run("creates pending order with frozen prices and totals", func(t *testing.T) {
		var created *domain.Order
		repo := &mockRepository{
			createFn: func(_ context.Context, order domain.Order) error {
				created = &order
				return nil
			},
		}
		handler := newHandler(commands.CheckoutDeps{Orders: repo})

		order, err := handler.Handle(context.Background(), validCommand())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if order == nil {
			t.Fatal("expected order to be returned, got nil")
		}
		if created == nil {
			t.Fatal("expected order to be persisted")
		}

		if order.Status != domain.StatusPending {
			t.Errorf("expected status %s, got %s", domain.StatusPending, order.Status)
		}
		if order.CarrierID != nil {
			t.Errorf("expected no carrier, got %s", *order.CarrierID)
		}
		// 2kg at 100/kg (stock 50, well above threshold): 200 + 20% VAT.
		if order.Subtotal.String() != "200" {
			t.Errorf("expected subtotal 200, got %s", order.Subtotal)
		}
		if order.VATAmount.String() != "40" {
			t.Errorf("expected VAT 40, got %s", order.VATAmount)
		}
		if order.TotalCost.String() != "240" {
			t.Errorf("expected total 240, got %s", order.TotalCost)
		}
		if !order.CancelableUntil.Equal(checkoutNow.Add(commands.CancelWindow)) {
			t.Errorf("expected cancellation deadline %s, got %s",
				checkoutNow.Add(commands.CancelWindow), order.CancelableUntil)
		}
	})

	t.Run("doubles unit price when stock is at or below threshold", func(t *testing.T) {
		catalog := &mockCatalog{
			getByIDFn: func(context.Context, string) (*catalogdomain.Product, error) {
				return stockedProduct(100, 3), nil
			},
		}
		handler := newHandler(commands.CheckoutDeps{Catalog: catalog})

		order, err := handler.Handle(context.Background(), validCommand())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if order.Items[0].UnitPrice.String() != "200" {
			t.Errorf("expected doubled unit price 200, got %s", order.Items[0].UnitPrice)
		}
		if order.Subtotal.String() != "400" {
			t.Errorf("expected subtotal 400, got %s", order.Subtotal)
		}
	})

	t.Run("rejects empty cart", func(t *testing.T) {
		handler := newHandler(commands.CheckoutDeps{})
		cmd := validCommand()
		cmd.Items = nil

		_, err := handler.Handle(context.Background(), cmd)
		if !errors.Is(err, domain.ErrEmptyOrder) {
			t.Errorf("expected ErrEmptyOrder, got: %v", err)
		}
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		handler := newHandler(commands.CheckoutDeps{})
		cmd := validCommand()
		cmd.Items[0].Quantity = decimal.Zero

		_, err := handler.Handle(context.Background(), cmd)
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("expected ErrInvalidQuantity, got: %v", err)
		}
	})

	t.Run("rejects delivery in the past", func(t *testing.T) {
		handler := newHandler(commands.CheckoutDeps{})
		cmd := validCommand()
		cmd.DeliveryAt = checkoutNow.Add(-time.Hour)

		_, err := handler.Handle(context.Background(), cmd)
		if !errors.Is(err, domain.ErrInvalidDelivery) {
			t.Errorf("expected ErrInvalidDelivery, got: %v", err)
		}
	})

	t.Run("rejects delivery beyond the window", func(t *testing.T) {
		handler := newHandler(commands.CheckoutDeps{})
		cmd := validCommand()
		cmd.DeliveryAt = checkoutNow.Add(commands.DeliveryWindow + time.Hour)

		_, err := handler.Handle(context.Background(), cmd)
		if !errors.Is(err, domain.ErrInvalidDelivery) {
			t.Errorf("expected ErrInvalidDelivery, got: %v", err)
		}
	})

	t.Run("rejects totals below the minimum order value", func(t *testing.T) {
		createCalled := false
		repo := &mockRepository{
			createFn: func(context.Context, domain.Order) error {
				createCalled = true
				return nil
			},
		}
		catalog := &mockCatalog{
			getByIDFn: func(context.Context, string) (*catalogdomain.Product, error) {
				// 2kg at 10/kg: total 24, far below the 200 floor.
				return stockedProduct(10, 50), nil
			},
		}
		handler := newHandler(commands.CheckoutDeps{Orders: repo, Catalog: catalog})

		_, err := handler.Handle(context.Background(), validCommand())
		if !errors.Is(err, domain.ErrBelowMinimum) {
			t.Errorf("expected ErrBelowMinimum, got: %v", err)
		}
		if createCalled {
			t.Error("expected no order to be persisted")
		}
	})

	t.Run("reports insufficient stock before persisting", func(t *testing.T) {
		catalog := &mockCatalog{
			getByIDFn: func(context.Context, string) (*catalogdomain.Product, error) {
				return stockedProduct(100, 1), nil
			},
		}
		handler := newHandler(commands.CheckoutDeps{Catalog: catalog})

		_, err := handler.Handle(context.Background(), validCommand())

		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected InsufficientStockError, got: %v", err)
		}
		if stockErr.ProductID != "prod-1" {
			t.Errorf("expected product prod-1, got %s", stockErr.ProductID)
		}
	})

	t.Run("surfaces insufficient stock from the repository", func(t *testing.T) {
		repo := &mockRepository{
			createFn: func(context.Context, domain.Order) error {
				return &domain.InsufficientStockError{ProductID: "prod-1"}
			},
		}
		handler := newHandler(commands.CheckoutDeps{Orders: repo})

		_, err := handler.Handle(context.Background(), validCommand())

		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Errorf("expected InsufficientStockError, got: %v", err)
		}
	})

	t.Run("aborts checkout on invalid coupon", func(t *testing.T) {
		createCalled := false
		repo := &mockRepository{
			createFn: func(context.Context, domain.Order) error {
				createCalled = true
				return nil
			},
		}
		handler := newHandler(commands.CheckoutDeps{Orders: repo})
		cmd := validCommand()
		cmd.CouponCode = "BOGUS"

		_, err := handler.Handle(context.Background(), cmd)
		if !errors.Is(err, domain.ErrCouponInvalid) {
			t.Errorf("expected ErrCouponInvalid, got: %v", err)
		}
		if createCalled {
			t.Error("expected no order to be persisted")
		}
	})

	t.Run("wraps unreachable coupon gate as collaborator error", func(t *testing.T) {
		coupons := &mockCoupons{
			discountFn: func(context.Context, string, string, decimal.Decimal) (decimal.Decimal, error) {
				return decimal.Zero, errors.New("connection refused")
			},
		}
		handler := newHandler(commands.CheckoutDeps{Coupons: coupons})
		cmd := validCommand()
		cmd.CouponCode = "SAVE30"

		_, err := handler.Handle(context.Background(), cmd)

		var collabErr *domain.CollaboratorError
		if !errors.As(err, &collabErr) {
			t.Fatalf("expected CollaboratorError, got: %v", err)
		}
		if collabErr.Collaborator != "coupon" {
			t.Errorf("expected coupon collaborator, got %s", collabErr.Collaborator)
		}
	})

	t.Run("applies coupon discount and marks it used", func(t *testing.T) {
		markedUsed := false
		coupons := &mockCoupons{
			discountFn: func(context.Context, string, string, decimal.Decimal) (decimal.Decimal, error) {
				return decimal.NewFromInt(30), nil
			},
			markUsedFn: func(_ context.Context, code, customerID string) error {
				markedUsed = true
				if code != "SAVE30" || customerID != "customer-1" {
					t.Errorf("unexpected mark-used args: %s %s", code, customerID)
				}
				return nil
			},
		}
		handler := newHandler(commands.CheckoutDeps{Coupons: coupons})
		cmd := validCommand()
		cmd.CouponCode = "SAVE30"

		order, err := handler.Handle(context.Background(), cmd)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if order.CouponDiscount.String() != "30" {
			t.Errorf("expected coupon discount 30, got %s", order.CouponDiscount)
		}
		// 200 + 40 VAT - 30 coupon.
		if order.TotalCost.String() != "210" {
			t.Errorf("expected total 210, got %s", order.TotalCost)
		}
		if !markedUsed {
			t.Error("expected coupon to be marked used after commit")
		}
	})

	t.Run("applies loyalty discount once the threshold is met", func(t *testing.T) {
		loyalty := &mockLoyalty{
			countFn: func(context.Context, string) (int, error) { return 7, nil },
		}
		handler := newHandler(commands.CheckoutDeps{Loyalty: loyalty})

		order, err := handler.Handle(context.Background(), validCommand())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		// 5% of the 200 subtotal.
		if order.LoyaltyDiscount.String() != "10" {
			t.Errorf("expected loyalty discount 10, got %s", order.LoyaltyDiscount)
		}
		if order.TotalCost.String() != "230" {
			t.Errorf("expected total 230, got %s", order.TotalCost)
		}
	})

	t.Run("skips loyalty discount below the threshold", func(t *testing.T) {
		loyalty := &mockLoyalty{
			countFn: func(context.Context, string) (int, error) { return 4, nil },
		}
		handler := newHandler(commands.CheckoutDeps{Loyalty: loyalty})

		order, err := handler.Handle(context.Background(), validCommand())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if order.LoyaltyDiscount.Sign() != 0 {
			t.Errorf("expected no loyalty discount, got %s", order.LoyaltyDiscount)
		}
	})

	t.Run("tolerates invoice rendering failure", func(t *testing.T) {
		invoices := &mockInvoices{
			renderFn: func(domain.Order) ([]byte, error) {
				return nil, errors.New("renderer crashed")
			},
		}
		handler := newHandler(commands.CheckoutDeps{Invoices: invoices})

		order, err := handler.Handle(context.Background(), validCommand())
		if err != nil {
			t.Fatalf("expected order to commit despite invoice failure, got: %v", err)
		}
		if order == nil {
			t.Fatal("expected order to be returned")
		}
	})

	t.Run("tolerates event publish failure", func(t *testing.T) {
		events := &mockEventBus{
			publishOrderCreatedFn: func(context.Context, string) error {
				return errors.New("broker unavailable")
			},
		}
		handler := newHandler(commands.CheckoutDeps{Events: events})

		_, err := handler.Handle(context.Background(), validCommand())
		if err != nil {
			t.Fatalf("expected order to commit despite publish failure, got: %v", err)
		}
	})
}
