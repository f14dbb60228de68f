package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
)

var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Notifier receives a signal after every effective cart mutation. The hub
// implements it; tests plug in a recorder. Notifications fire once the
// mutation is fully applied, so a re-fetch triggered by one observes at
// least that mutation.
type Notifier interface {
	CartUpdated(productName string, cartSize int)
	BatchAdded(itemsCount, cartSize int)
	ItemRemoved(productID string, cartSize int)
	CartCleared()
}

// BatchItem is one resolved entry of a bulk add.
type BatchItem struct {
	Product  domain.Product
	Quantity int
}

// Store is the single authoritative cart for a station. All mutations pass
// through it; everything else reads snapshots. Lines keep insertion order.
type Store struct {
	mu          sync.RWMutex
	lines       map[string]*domain.CartLine
	order       []string
	lastUpdated *time.Time

	notifier Notifier
}

func NewStore(notifier Notifier) *Store {
	return &Store{
		lines:    make(map[string]*domain.CartLine),
		notifier: notifier,
	}
}

// Add inserts a new line for the product or increments the existing one.
// Product identity (name, category, price) is captured at add time.
func (s *Store) Add(p domain.Product, quantity int) (domain.CartSummary, error) {
	if quantity <= 0 {
		return domain.CartSummary{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	s.add(p, quantity)
	summary := s.summaryLocked()
	s.mu.Unlock()

	s.notifier.CartUpdated(p.Name, summary.TotalItems)
	return summary, nil
}

// AddBatch applies all items as one action and emits a single batch
// notification. Items with non-positive quantities were filtered by the
// caller; an empty batch is a no-op.
func (s *Store) AddBatch(items []BatchItem) (domain.CartSummary, int) {
	s.mu.Lock()
	added := 0
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		s.add(item.Product, item.Quantity)
		added += item.Quantity
	}
	summary := s.summaryLocked()
	s.mu.Unlock()

	if added > 0 {
		s.notifier.BatchAdded(added, summary.TotalItems)
	}
	return summary, added
}

// RemoveOne decrements the line's quantity, deleting it at zero. Removing a
// product that is not in the cart is an idempotent no-op, not an error.
func (s *Store) RemoveOne(productID string) (domain.CartSummary, bool) {
	s.mu.Lock()
	line, ok := s.lines[productID]
	if !ok {
		summary := s.summaryLocked()
		s.mu.Unlock()
		return summary, false
	}

	line.Quantity--
	if line.Quantity <= 0 {
		delete(s.lines, productID)
		for i, id := range s.order {
			if id == productID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.touch()
	summary := s.summaryLocked()
	s.mu.Unlock()

	s.notifier.ItemRemoved(productID, summary.TotalItems)
	return summary, true
}

// Clear empties the cart unconditionally.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = make(map[string]*domain.CartLine)
	s.order = nil
	s.touch()
	s.mu.Unlock()

	s.notifier.CartCleared()
}

// Summary returns an immutable copy of the current cart state.
func (s *Store) Summary() domain.CartSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaryLocked()
}

func (s *Store) add(p domain.Product, quantity int) {
	if line, ok := s.lines[p.ID]; ok {
		line.Quantity += quantity
	} else {
		s.lines[p.ID] = &domain.CartLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Category:    p.Category,
			Price:       p.Price,
			Quantity:    quantity,
		}
		s.order = append(s.order, p.ID)
	}
	s.touch()
}

func (s *Store) touch() {
	now := time.Now()
	s.lastUpdated = &now
}

func (s *Store) summaryLocked() domain.CartSummary {
	items := make([]domain.CartLine, 0, len(s.order))
	total := 0
	for _, id := range s.order {
		line := s.lines[id]
		items = append(items, *line)
		total += line.Quantity
	}

	var updated *time.Time
	if s.lastUpdated != nil {
		t := *s.lastUpdated
		updated = &t
	}

	return domain.CartSummary{
		Items:       items,
		TotalItems:  total,
		UniqueItems: len(items),
		LastUpdated: updated,
	}
}
