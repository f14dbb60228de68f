package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
	"github.com/TheKaito2/Hybrid-complete/internal/ws"
)

const DefaultPollInterval = 10 * time.Second

// CartFetcher retrieves the authoritative cart state from the station.
type CartFetcher interface {
	FetchCart(ctx context.Context) (domain.CartSummary, error)
}

// HTTPFetcher fetches the cart over the station's REST API.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

func (f *HTTPFetcher) FetchCart(ctx context.Context) (domain.CartSummary, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/api/cart", nil)
	if err != nil {
		return domain.CartSummary{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return domain.CartSummary{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.CartSummary{}, fmt.Errorf("fetch cart: unexpected status %d", resp.StatusCode)
	}

	var summary domain.CartSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return domain.CartSummary{}, err
	}
	return summary, nil
}

// Reconciler keeps a local copy of the cart consistent with the station.
// It refetches on a fixed interval and immediately after any push
// notification; server state always wins, the local copy is replaced
// wholesale on every successful fetch.
type Reconciler struct {
	fetcher  CartFetcher
	interval time.Duration
	onChange func(old, new domain.CartSummary)

	// kick has capacity one so a burst of push notifications coalesces
	// into at most one extra in-flight fetch.
	kick chan struct{}

	mu      sync.RWMutex
	summary domain.CartSummary
}

func NewReconciler(fetcher CartFetcher, interval time.Duration, onChange func(old, new domain.CartSummary)) *Reconciler {
	if interval == 0 {
		interval = DefaultPollInterval
	}
	return &Reconciler{
		fetcher:  fetcher,
		interval: interval,
		onChange: onChange,
		kick:     make(chan struct{}, 1),
	}
}

// Notify schedules a refetch when a cart-affecting push message arrives.
// Other message types are ignored.
func (r *Reconciler) Notify(env ws.Envelope) {
	switch env.Type {
	case ws.TypeCartUpdated, ws.TypeBatchAdded, ws.TypeItemRemoved, ws.TypeCartCleared:
		select {
		case r.kick <- struct{}{}:
		default:
		}
	}
}

// Cart returns the most recently fetched snapshot.
func (r *Reconciler) Cart() domain.CartSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.summary
}

// Run fetches once immediately, then loops until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		case <-r.kick:
			r.refresh(ctx)
		}
	}
}

func (r *Reconciler) refresh(ctx context.Context) {
	summary, err := r.fetcher.FetchCart(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("cart refresh failed: %v", err)
		}
		return
	}

	r.mu.Lock()
	old := r.summary
	r.summary = summary
	r.mu.Unlock()

	if r.onChange != nil && old.TotalItems != summary.TotalItems {
		r.onChange(old, summary)
	}
}
