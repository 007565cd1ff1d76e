package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/freshmart/storefront/internal/kafka"
	"github.com/freshmart/storefront/internal/orders/ports"
	"github.com/freshmart/storefront/internal/telemetry"
)

// ObservableEventBus decorates an EventBus with spans and publish latency
// metrics.
type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) PublishOrderCreated(ctx context.Context, orderID string) error {
	return e.publish(ctx, "order.created", orderID, nil, func(ctx context.Context) error {
		return e.bus.PublishOrderCreated(ctx, orderID)
	})
}

func (e *ObservableEventBus) PublishOrderClaimed(ctx context.Context, orderID, carrierID string) error {
	carrier := carrierID
	return e.publish(ctx, "order.claimed", orderID, &carrier, func(ctx context.Context) error {
		return e.bus.PublishOrderClaimed(ctx, orderID, carrierID)
	})
}

func (e *ObservableEventBus) PublishOrderDropped(ctx context.Context, orderID, carrierID string) error {
	carrier := carrierID
	return e.publish(ctx, "order.dropped", orderID, &carrier, func(ctx context.Context) error {
		return e.bus.PublishOrderDropped(ctx, orderID, carrierID)
	})
}

func (e *ObservableEventBus) PublishOrderDelivered(ctx context.Context, orderID string) error {
	return e.publish(ctx, "order.delivered", orderID, nil, func(ctx context.Context) error {
		return e.bus.PublishOrderDelivered(ctx, orderID)
	})
}

func (e *ObservableEventBus) PublishOrderCancelled(ctx context.Context, orderID string) error {
	return e.publish(ctx, "order.cancelled", orderID, nil, func(ctx context.Context) error {
		return e.bus.PublishOrderCancelled(ctx, orderID)
	})
}

func (e *ObservableEventBus) publish(ctx context.Context, eventType, orderID string, carrierID *string, fn func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.Publish")
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("order.id", orderID),
		attribute.String("event.type", eventType),
	}
	if carrierID != nil {
		attrs = append(attrs, attribute.String("carrier.id", *carrierID))
	}
	telemetry.AddSpanAttributes(span, attrs...)

	start := time.Now()
	err := fn(ctx)
	e.metrics.RecordPublish(ctx, eventType, time.Since(start).Seconds(), err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
