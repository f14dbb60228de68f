package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/TheKaito2/Hybrid-complete/internal/cache"
	"github.com/TheKaito2/Hybrid-complete/internal/domain"
	"github.com/TheKaito2/Hybrid-complete/internal/repository"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be greater than 0")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Service resolves products for the cart and owns stock adjustments. Lookups
// go through an optional read-through cache; concurrent misses for the same
// id are collapsed with singleflight.
type Service struct {
	repo  repository.ProductRepository
	cache cache.ProductCache
	sfg   singleflight.Group
}

// NewService builds a catalog. cache may be nil; lookups then always hit the
// repository.
func NewService(repo repository.ProductRepository, cache cache.ProductCache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// Lookup resolves a product id the way scanners actually send them: exact id
// first, then dash/underscore/case variants, then a normalized comparison
// against the full catalog.
func (s *Service) Lookup(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := s.get(ctx, productID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrProductNotFound) {
		return nil, err
	}

	for _, variant := range idVariants(productID) {
		p, err := s.get(ctx, variant)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
	}

	// Last resort: scan the catalog for a normalized match.
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	want := normalizeID(productID)
	for i := range products {
		if normalizeID(products[i].ID) == want ||
			strings.Contains(strings.ToLower(products[i].ID), strings.ToLower(productID)) {
			return &products[i], nil
		}
	}

	return nil, repository.ErrProductNotFound
}

// List returns the full catalog, uncached.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// CheckStock verifies the product can cover the requested quantity.
func (s *Service) CheckStock(p *domain.Product, quantity int) error {
	if p.Stock < quantity {
		return fmt.Errorf("%w for %s: available %d, requested %d",
			ErrInsufficientStock, p.Name, p.Stock, quantity)
	}
	return nil
}

// Restock increases on-hand stock.
func (s *Service) Restock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.repo.AddStock(ctx, productID, quantity); err != nil {
		return err
	}
	s.invalidate(productID)
	return nil
}

// DeductForSale decrements stock for every sold line. A line whose stock
// cannot cover the sold quantity is logged and skipped; the sale record
// stands either way.
func (s *Service) DeductForSale(ctx context.Context, items []domain.CartLine) {
	for _, item := range items {
		deducted, err := s.repo.DeductStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			log.Printf("failed to deduct stock for %s: %v", item.ProductID, err)
			continue
		}
		if !deducted {
			log.Printf("stock for %s below sold quantity %d, not deducted", item.ProductID, item.Quantity)
		}
		s.invalidate(item.ProductID)
	}
}

func (s *Service) get(ctx context.Context, productID string) (*domain.Product, error) {
	v, err, _ := s.sfg.Do(productID, func() (interface{}, error) {
		if s.cache != nil {
			p, err := s.cache.Get(ctx, productID)
			if err == nil {
				return p, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				log.Printf("cache get error: %v", err) // log cache error but continue
			}
		}

		p, err := s.repo.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			go func() {
				if err := s.cache.Set(context.Background(), productID, p); err != nil {
					log.Printf("cache set error: %v", err)
				}
			}()
		}

		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (s *Service) invalidate(productID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(context.Background(), productID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

func idVariants(id string) []string {
	lower := strings.ToLower(id)
	return []string{
		strings.ReplaceAll(id, "_", "-"),
		strings.ReplaceAll(id, "-", "_"),
		lower,
		strings.ReplaceAll(lower, "_", "-"),
		strings.ReplaceAll(lower, "-", "_"),
	}
}

func normalizeID(id string) string {
	id = strings.ToLower(id)
	id = strings.ReplaceAll(id, "-", "")
	return strings.ReplaceAll(id, "_", "")
}
