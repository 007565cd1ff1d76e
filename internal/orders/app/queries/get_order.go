package queries

import (
	"context"
	"strings"

	"github.com/freshmart/storefront/internal/orders/domain"
	"github.com/freshmart/storefront/internal/orders/ports"
)

// GetOrderQuery asks for one order aggregate, items included.
type GetOrderQuery struct {
	OrderID string
}

func (q GetOrderQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return domain.Invalid("order_id is required")
	}
	return nil
}

// GetOrderQueryHandler resolves GetOrderQuery against the order repository.
type GetOrderQueryHandler struct {
	repo ports.OrderRepository
}

func NewGetOrderQueryHandler(repo ports.OrderRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{repo: repo}
}

// Handle validates the query and loads the order; a missing order surfaces
// as ports.ErrNotFound from the repository.
func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return h.repo.GetByID(ctx, query.OrderID)
}
