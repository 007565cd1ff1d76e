package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Topic carries every order lifecycle event, keyed by order ID so events for
// one order stay in partition order.
const Topic = "orders.lifecycle"

type lifecycleEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	CarrierID string    `json:"carrier_id,omitempty"`
	At        time.Time `json:"at"`
}

// EventBus publishes order lifecycle events to Kafka.
type EventBus struct {
	writer *kafkago.Writer
}

// NewEventBus constructs an EventBus writing to the given brokers.
func NewEventBus(brokers []string) *EventBus {
	return &EventBus{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        Topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
		},
	}
}

// Close flushes and closes the underlying writer.
func (b *EventBus) Close() error {
	return b.writer.Close()
}

func (b *EventBus) PublishOrderCreated(ctx context.Context, orderID string) error {
	return b.publish(ctx, lifecycleEvent{Type: "order.created", OrderID: orderID})
}

func (b *EventBus) PublishOrderClaimed(ctx context.Context, orderID, carrierID string) error {
	return b.publish(ctx, lifecycleEvent{Type: "order.claimed", OrderID: orderID, CarrierID: carrierID})
}

func (b *EventBus) PublishOrderDropped(ctx context.Context, orderID, carrierID string) error {
	return b.publish(ctx, lifecycleEvent{Type: "order.dropped", OrderID: orderID, CarrierID: carrierID})
}

func (b *EventBus) PublishOrderDelivered(ctx context.Context, orderID string) error {
	return b.publish(ctx, lifecycleEvent{Type: "order.delivered", OrderID: orderID})
}

func (b *EventBus) PublishOrderCancelled(ctx context.Context, orderID string) error {
	return b.publish(ctx, lifecycleEvent{Type: "order.cancelled", OrderID: orderID})
}

func (b *EventBus) publish(ctx context.Context, event lifecycleEvent) error {
	event.At = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	err = b.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.OrderID),
		Value: payload,
		Time:  event.At,
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}

	return nil
}
