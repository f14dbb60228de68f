package cache

import (
	"context"
	"errors"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// ProductCache is a read-through cache for catalog lookups. Implementations
// must treat a missing key as ErrCacheMiss; any other error is an
// infrastructure failure the caller logs and ignores.
type ProductCache interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
	Set(ctx context.Context, productID string, product *domain.Product) error
	Delete(ctx context.Context, productID string) error
}
