package kafka

import (
	"context"
	"log/slog"
)

// NoopEventBus logs events without sending them anywhere. Used when no Kafka
// brokers are configured.
type NoopEventBus struct{}

// NewNoopEventBus returns a new no-op event publisher.
func NewNoopEventBus() *NoopEventBus {
	return &NoopEventBus{}
}

func (n *NoopEventBus) PublishOrderCreated(_ context.Context, orderID string) error {
	slog.Debug("event::order_created", "order_id", orderID)
	return nil
}

func (n *NoopEventBus) PublishOrderClaimed(_ context.Context, orderID, carrierID string) error {
	slog.Debug("event::order_claimed", "order_id", orderID, "carrier_id", carrierID)
	return nil
}

func (n *NoopEventBus) PublishOrderDropped(_ context.Context, orderID, carrierID string) error {
	slog.Debug("event::order_dropped", "order_id", orderID, "carrier_id", carrierID)
	return nil
}

func (n *NoopEventBus) PublishOrderDelivered(_ context.Context, orderID string) error {
	slog.Debug("event::order_delivered", "order_id", orderID)
	return nil
}

func (n *NoopEventBus) PublishOrderCancelled(_ context.Context, orderID string) error {
	slog.Debug("event::order_cancelled", "order_id", orderID)
	return nil
}
