package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashendes/order-service/internal/api"
	"github.com/ashendes/order-service/internal/config"
	"github.com/ashendes/order-service/internal/events"
	"github.com/ashendes/order-service/internal/metrics"
	"github.com/ashendes/order-service/internal/orders"
	"github.com/ashendes/order-service/internal/pricing"
	"github.com/ashendes/order-service/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func init() {
	// Initialize logger
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)

	decimal.MarshalJSONWithoutQuotes = true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orderStore, closeStore, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to open order store: ", err)
	}
	defer closeStore()

	publisher := newPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("Failed to close event publisher: ", err)
		}
	}()

	pipeline := orders.NewPipeline(cfg.Pipeline)
	service := orders.NewService(
		pricing.NewClient(cfg.ProductServiceURL, cfg.ProductServiceTimeout),
		orderStore,
		publisher,
		pipeline,
	)

	router := gin.Default()
	router.Use(api.RequestID())

	// Add Prometheus middleware
	router.Use(metrics.PrometheusMiddleware("order-service"))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api.NewHandler(service, pipeline.Breaker).Register(router)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":        cfg.Port,
			"product_url": cfg.ProductServiceURL,
			"persistence": persistenceKind(cfg.DatabaseURL),
			"events":      len(cfg.KafkaBrokers) > 0,
		}).Info("Order Service starting")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down Order Service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed: ", err)
	}
}

// openStore connects to PostgreSQL when a database URL is configured and
// falls back to the in-memory store otherwise
func openStore(ctx context.Context, databaseURL string) (store.Store, func(), error) {
	if databaseURL == "" {
		return store.NewMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	pg := store.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}

type closablePublisher interface {
	orders.EventPublisher
	Close() error
}

func newPublisher(cfg *config.Config) closablePublisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NoopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

func persistenceKind(databaseURL string) string {
	if databaseURL == "" {
		return "memory"
	}
	return "postgres"
}
