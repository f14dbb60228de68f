package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
	"github.com/TheKaito2/Hybrid-complete/pkg/client"
)

// monitor tails a station's cart from another terminal or machine: it holds
// the push channel open, polls the REST API as a safety net and prints every
// cart transition.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	stationURL := getEnv("STATION_URL", "http://localhost:8000")
	wsURL := getEnv("STATION_WS_URL", "ws://localhost:8000/ws/detection")
	pollInterval, err := time.ParseDuration(getEnv("POLL_INTERVAL", "10s"))
	if err != nil {
		log.Fatalf("Invalid POLL_INTERVAL: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reconciler := client.NewReconciler(
		&client.HTTPFetcher{BaseURL: stationURL},
		pollInterval,
		func(old, current domain.CartSummary) {
			log.Printf("cart changed: %d -> %d items (%d lines)",
				old.TotalItems, current.TotalItems, current.UniqueItems)
			for _, line := range current.Items {
				log.Printf("  %dx %s @ %.2f", line.Quantity, line.ProductName, line.Price)
			}
		},
	)

	conn := client.NewConnManager(client.Config{
		URL:        wsURL,
		OnEnvelope: reconciler.Notify,
		OnStatus: func(s client.Status) {
			log.Printf("station link %s", s)
		},
	})

	go reconciler.Run(ctx)

	log.Printf("monitoring station at %s", stationURL)
	if err := conn.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("connection manager stopped: %v", err)
	}

	log.Println("monitor exited")
}
