package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
)

func newBufferedLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})
	return slog.New(&traceHandler{inner: inner}), &buf
}

func parseLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestLoggerRespectsLevel(t *testing.T) {
	tests := []struct {
		name      string
		level     slog.Level
		log       func(*slog.Logger, context.Context)
		shouldLog bool
	}{
		{"debug passes at debug", slog.LevelDebug, func(l *slog.Logger, ctx context.Context) { l.DebugContext(ctx, "m") }, true},
		{"debug filtered at info", slog.LevelInfo, func(l *slog.Logger, ctx context.Context) { l.DebugContext(ctx, "m") }, false},
		{"info passes at info", slog.LevelInfo, func(l *slog.Logger, ctx context.Context) { l.InfoContext(ctx, "m") }, true},
		{"info filtered at warn", slog.LevelWarn, func(l *slog.Logger, ctx context.Context) { l.InfoContext(ctx, "m") }, false},
		{"warn filtered at error", slog.LevelError, func(l *slog.Logger, ctx context.Context) { l.WarnContext(ctx, "m") }, false},
		{"error passes at error", slog.LevelError, func(l *slog.Logger, ctx context.Context) { l.ErrorContext(ctx, "m") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferedLogger(tt.level)
			tt.log(logger, context.Background())

			if tt.shouldLog && buf.Len() == 0 {
				t.Error("expected log output but got none")
			}
			if !tt.shouldLog && buf.Len() > 0 {
				t.Errorf("expected no log output but got: %s", buf.String())
			}
		})
	}
}

func TestLoggerIncludesTraceIDs(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelInfo)

	_, cleanup := setupTracerProvider(t)
	defer cleanup()

	ctx, span := otel.Tracer("test").Start(context.Background(), "checkout")
	defer span.End()

	logger.InfoContext(ctx, "order created", "order_id", "order-1")

	entry := parseLogEntry(t, buf)
	if id, ok := entry["trace_id"].(string); !ok || id == "" {
		t.Error("expected non-empty trace_id")
	}
	if id, ok := entry["span_id"].(string); !ok || id == "" {
		t.Error("expected non-empty span_id")
	}
	if entry["order_id"] != "order-1" {
		t.Errorf("expected order_id attribute, got %v", entry["order_id"])
	}
}

func TestLoggerWithoutSpanOmitsTraceIDs(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelInfo)

	logger.InfoContext(context.Background(), "no span here")

	entry := parseLogEntry(t, buf)
	if _, exists := entry["trace_id"]; exists {
		t.Error("expected trace_id to be absent")
	}
	if _, exists := entry["span_id"]; exists {
		t.Error("expected span_id to be absent")
	}
}

func TestLoggerKeepsTraceIDsOutsideGroups(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelInfo)

	_, cleanup := setupTracerProvider(t)
	defer cleanup()

	ctx, span := otel.Tracer("test").Start(context.Background(), "request")
	defer span.End()

	logger.With("request_id", "req-9").WithGroup("http").
		InfoContext(ctx, "request", "method", "POST", "path", "/v1/orders")

	entry := parseLogEntry(t, buf)

	if _, ok := entry["trace_id"].(string); !ok {
		t.Error("expected trace_id at the root level")
	}
	if entry["request_id"] != "req-9" {
		t.Errorf("expected request_id at the root level, got %v", entry["request_id"])
	}

	group, ok := entry["http"].(map[string]any)
	if !ok {
		t.Fatal("expected http group")
	}
	if group["method"] != "POST" || group["path"] != "/v1/orders" {
		t.Errorf("expected method/path inside the http group, got %v", group)
	}
	if _, exists := group["trace_id"]; exists {
		t.Error("trace_id must not leak into the group")
	}
}

func TestLoggerChainsAttrsAndGroups(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelInfo)

	_, cleanup := setupTracerProvider(t)
	defer cleanup()

	ctx, span := otel.Tracer("test").Start(context.Background(), "nested")
	defer span.End()

	logger.With("a", "1").With("b", "2").WithGroup("outer").WithGroup("inner").
		InfoContext(ctx, "nested", "c", "3")

	entry := parseLogEntry(t, buf)
	if entry["a"] != "1" || entry["b"] != "2" {
		t.Errorf("expected chained attrs at root, got %v", entry)
	}

	outer, ok := entry["outer"].(map[string]any)
	if !ok {
		t.Fatal("expected outer group")
	}
	inner, ok := outer["inner"].(map[string]any)
	if !ok {
		t.Fatal("expected inner group inside outer")
	}
	if inner["c"] != "3" {
		t.Errorf("expected record attr in innermost group, got %v", inner)
	}
}

func TestLoggerEnabled(t *testing.T) {
	tests := []struct {
		name         string
		handlerLevel slog.Level
		checkLevel   slog.Level
		want         bool
	}{
		{"info handler disables debug", slog.LevelInfo, slog.LevelDebug, false},
		{"info handler enables info", slog.LevelInfo, slog.LevelInfo, true},
		{"warn handler disables info", slog.LevelWarn, slog.LevelInfo, false},
		{"error handler enables error", slog.LevelError, slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: tt.handlerLevel})
			handler := &traceHandler{inner: inner}

			if got := handler.Enabled(context.Background(), tt.checkLevel); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
