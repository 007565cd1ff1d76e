package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	catalogpostgres "github.com/freshmart/storefront/internal/catalog/adapters/postgres"
	"github.com/freshmart/storefront/internal/config"
	"github.com/freshmart/storefront/internal/database"
	idemmemory "github.com/freshmart/storefront/internal/idempotency/memory"
	idempostgres "github.com/freshmart/storefront/internal/idempotency/postgres"
	idemredis "github.com/freshmart/storefront/internal/idempotency/redis"
	"github.com/freshmart/storefront/internal/invoice"
	"github.com/freshmart/storefront/internal/kafka"
	"github.com/freshmart/storefront/internal/orders/adapters"
	httpadapter "github.com/freshmart/storefront/internal/orders/adapters/http"
	orderspostgres "github.com/freshmart/storefront/internal/orders/adapters/postgres"
	ordersapp "github.com/freshmart/storefront/internal/orders/app"
	ordersmetrics "github.com/freshmart/storefront/internal/orders/metrics"
	"github.com/freshmart/storefront/internal/orders/ports"
	couponspostgres "github.com/freshmart/storefront/internal/promotions/coupons/postgres"
	"github.com/freshmart/storefront/internal/promotions/loyalty"
	"github.com/freshmart/storefront/internal/telemetry"
)

const meterName = "github.com/freshmart/storefront"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(parseLogLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations completed successfully")
	}

	meter := otel.Meter(meterName)

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create database metrics", "error", err)
		os.Exit(1)
	}
	kafkaMetrics, err := kafka.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create kafka metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create http metrics", "error", err)
		os.Exit(1)
	}
	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create order metrics", "error", err)
		os.Exit(1)
	}

	repo := adapters.NewObservableRepository(orderspostgres.NewRepository(pool), dbMetrics)
	catalogRepo := catalogpostgres.NewRepository(pool)
	couponGate := couponspostgres.NewGate(pool)

	loyaltySettings := loyalty.NewSettings(cfg.Engine.LoyaltyThreshold, cfg.Engine.LoyaltyPercent)
	loyaltyGate := loyalty.NewGate(loyaltySettings, repo)

	emitter := invoice.NewEmitter(cfg.Engine.SellerName)

	var bus ports.EventBus
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaBus := kafka.NewEventBus(cfg.Kafka.Brokers)
		defer func() {
			if err := kafkaBus.Close(); err != nil {
				logger.Error("kafka writer close failed", "error", err)
			}
		}()
		bus = kafkaBus
		logger.Info("kafka event bus enabled", "brokers", cfg.Kafka.Brokers)
	} else {
		bus = kafka.NewNoopEventBus()
		logger.Info("kafka brokers not configured, lifecycle events disabled")
	}
	eventBus := adapters.NewObservableEventBus(bus, kafkaMetrics)

	var idemStore ports.IdempotencyStore
	switch cfg.Engine.IdempotencyBackend {
	case "redis":
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("redis client close failed", "error", err)
			}
		}()
		idemStore = idemredis.NewStore(redisClient)
	case "memory":
		idemStore = idemmemory.NewStore()
	default:
		idemStore = idempostgres.NewStore(pool)
	}

	service := ordersapp.NewService(ordersapp.Deps{
		Repo:          repo,
		Catalog:       catalogRepo,
		Coupons:       couponGate,
		Loyalty:       loyaltyGate,
		Invoices:      emitter,
		Events:        eventBus,
		IdemStore:     idemStore,
		Logger:        logger,
		Metrics:       orderMetrics,
		MinOrderValue: cfg.Engine.MinOrderValue,
	})

	handler := httpadapter.NewHandler(service, loyaltySettings, catalogRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.CheckHealth(r.Context(), pool); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc(cfg.HTTP.MetricsPath, func(w http.ResponseWriter, _ *http.Request) {
		// Metrics are exported over OTLP; this endpoint exists for probes.
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics are exported via OTLP\n"))
	})

	handler.Register(mux)

	root := withRecovery(withLogging(httpadapter.WithMetrics(mux, httpMetrics)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("http server stopped")
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		slog.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start),
		)
	})
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(r.Context(), "panic recovered", "error", rec)
				respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
