package kafka

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks event publish latency. Publishes are best-effort in the
// order flow, so failures show up here rather than as request errors.
type Metrics struct {
	producerLatency metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	producerLatency, err := meter.Float64Histogram(
		"kafka_producer_latency_seconds",
		metric.WithDescription("Latency of lifecycle event publishes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka_producer_latency_seconds histogram: %w", err)
	}

	return &Metrics{producerLatency: producerLatency}, nil
}

// RecordPublish records one publish attempt, labelled by event type and
// outcome.
func (m *Metrics) RecordPublish(ctx context.Context, eventType string, durationSeconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.producerLatency.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("status", status),
	))
}
