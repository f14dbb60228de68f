package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/TheKaito2/Hybrid-complete/internal/cache"
	"github.com/TheKaito2/Hybrid-complete/internal/cart"
	"github.com/TheKaito2/Hybrid-complete/internal/catalog"
	"github.com/TheKaito2/Hybrid-complete/internal/checkout"
	"github.com/TheKaito2/Hybrid-complete/internal/domain"
	"github.com/TheKaito2/Hybrid-complete/internal/httpapi"
	"github.com/TheKaito2/Hybrid-complete/internal/publisher"
	"github.com/TheKaito2/Hybrid-complete/internal/repository"
	"github.com/TheKaito2/Hybrid-complete/internal/ws"
)

type Config struct {
	HTTPPort        string
	DBPath          string
	MigrationsPath  string
	SeedPath        string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    string
	TaxRate         float64
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8000"),
		DBPath:          getEnv("DB_PATH", "./station.db"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		SeedPath:        getEnv("PRODUCT_SEED", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    getEnv("KAFKA_BROKERS", ""),
		TaxRate:         checkout.DefaultTaxRate,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log.Println("checkout station starting...")

	cfg := loadConfig()

	repo, err := repository.NewRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	if cfg.SeedPath != "" {
		if err := seedProducts(context.Background(), repo, cfg.SeedPath); err != nil {
			log.Fatalf("Failed to seed products: %v", err)
		}
	}

	// Redis is optional; without it catalog lookups always hit sqlite.
	var productCache cache.ProductCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Redis connection failed:", err)
		}
		log.Printf("Redis ping succeeded")
		productCache = cache.NewRedisCache(redisClient)
	}

	hub := ws.NewHub()
	store := cart.NewStore(hub)
	catalogSvc := catalog.NewService(repo, productCache)

	// Kafka is optional; without it settled sales live only in sqlite.
	var salePublisher checkout.SalePublisher
	if cfg.KafkaBrokers != "" {
		kp := publisher.NewSalePublisher(strings.Split(cfg.KafkaBrokers, ",")...)
		defer kp.Close()
		salePublisher = kp
		log.Printf("Publishing sales to kafka at %s", cfg.KafkaBrokers)
	}

	checkoutSvc := checkout.NewService(store, catalogSvc, repo, salePublisher, checkout.Config{
		TaxRate: cfg.TaxRate,
	})
	defer checkoutSvc.Close()

	router := httpapi.NewRouter(httpapi.Handlers{
		Cart:      httpapi.NewCartHandler(store, catalogSvc),
		Checkout:  httpapi.NewCheckoutHandler(checkoutSvc),
		Catalog:   httpapi.NewCatalogHandler(catalogSvc, repo),
		Status:    httpapi.NewStatusHandler(hub, store),
		Detection: ws.NewHandler(hub, ws.NoopDetector{}),
	}, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: otelhttp.NewHandler(router, "station"),
		// No Read/WriteTimeout: the websocket endpoint is long-lived.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Station listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down station...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("station exited")
}

// seedProducts loads a JSON catalog file and upserts every entry, so a
// station can be re-seeded idempotently on every boot.
func seedProducts(ctx context.Context, repo *repository.Repository, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return err
	}

	for i := range products {
		if err := repo.UpsertProduct(ctx, &products[i]); err != nil {
			return err
		}
	}

	log.Printf("Seeded %d products from %s", len(products), path)
	return nil
}
