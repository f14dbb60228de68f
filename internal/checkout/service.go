package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
	"github.com/TheKaito2/Hybrid-complete/internal/repository"
)

const (
	// DefaultTaxRate matches the station settings default.
	DefaultTaxRate = 0.07

	// DefaultSessionTTL is how long a pending payment stays claimable
	// before it auto-expires and releases the station for a new checkout.
	DefaultSessionTTL = 5 * time.Minute

	// DefaultCleanupInterval is how often the background expiry sweep runs.
	DefaultCleanupInterval = 30 * time.Second
)

var (
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrSessionNotFound = errors.New("payment session not found")
	ErrSessionExpired  = errors.New("payment session expired")
)

// CartStore is the slice of the cart the state machine needs: a snapshot to
// seed a session and a clear after settlement.
type CartStore interface {
	Summary() domain.CartSummary
	Clear()
}

// StockDeducter removes sold quantities from the catalog.
type StockDeducter interface {
	DeductForSale(ctx context.Context, items []domain.CartLine)
}

// SalePublisher pushes a settled sale to downstream consumers. Best-effort;
// the repository record is the source of truth.
type SalePublisher interface {
	PublishSale(ctx context.Context, sale *domain.Sale) error
}

// Config tunes the state machine. Zero values fall back to the defaults.
type Config struct {
	TaxRate         float64
	SessionTTL      time.Duration
	CleanupInterval time.Duration
}

// Service drives Idle -> PaymentPending -> {Confirmed, Cancelled, Expired}.
// At most one session is pending per station; a session snapshots the cart
// at creation time and later cart mutations never touch it.
type Service struct {
	mu        sync.Mutex
	sessions  map[string]*domain.PaymentSession
	pendingID string

	store     CartStore
	stock     StockDeducter
	sales     repository.SaleRepository
	publisher SalePublisher // may be nil

	taxRate float64
	ttl     time.Duration

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

// NewService builds the state machine and starts its expiry sweep. publisher
// may be nil when no broker is configured.
func NewService(store CartStore, stock StockDeducter, sales repository.SaleRepository, publisher SalePublisher, cfg Config) *Service {
	if cfg.TaxRate == 0 {
		cfg.TaxRate = DefaultTaxRate
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	s := &Service{
		sessions:    make(map[string]*domain.PaymentSession),
		store:       store,
		stock:       stock,
		sales:       sales,
		publisher:   publisher,
		taxRate:     cfg.TaxRate,
		ttl:         cfg.SessionTTL,
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop(cfg.CleanupInterval)

	return s
}

// Close stops the expiry sweep and waits for it to finish.
func (s *Service) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}

// CreatePayment snapshots the cart into a pending session. If a live pending
// session already exists it is returned unchanged: duplicate checkout taps
// must be idempotent.
func (s *Service) CreatePayment(ctx context.Context) (*domain.PaymentSession, error) {
	snapshot := s.store.Summary()
	if snapshot.TotalItems == 0 {
		return nil, ErrEmptyCart
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingID != "" {
		if existing := s.sessions[s.pendingID]; existing != nil &&
			existing.Status == domain.SessionStatusPending && !existing.IsExpired() {
			copied := *existing
			return &copied, nil
		}
		s.pendingID = ""
	}

	subtotal := round2(snapshot.Subtotal())
	tax := round2(subtotal * s.taxRate)
	total := round2(subtotal + subtotal*s.taxRate)

	id := uuid.New().String()
	qr, err := qrDataURL(fmt.Sprintf("PAYMENT|%.2f|%s", total, id))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment QR: %w", err)
	}

	now := time.Now()
	session := &domain.PaymentSession{
		ID:        id,
		Items:     snapshot.Items,
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     total,
		QRCode:    qr,
		Status:    domain.SessionStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[id] = session
	s.pendingID = id

	log.Printf("payment session %s created, total %.2f for %d items", id, total, snapshot.TotalItems)

	copied := *session
	return &copied, nil
}

// ConfirmPayment settles a pending session: the sale is recorded exactly
// once, stock is deducted, the live cart is cleared and the cleared state is
// broadcast. Unknown ids and already-terminal sessions fail with
// ErrSessionNotFound so a double confirmation can never mint a second sale.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID string) (*domain.Sale, error) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Status != domain.SessionStatusPending {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		session.Status = domain.SessionStatusExpired
		if s.pendingID == sessionID {
			s.pendingID = ""
		}
		s.mu.Unlock()
		return nil, ErrSessionExpired
	}

	// Claim the session before releasing the lock so a concurrent confirm
	// sees it as terminal.
	session.Status = domain.SessionStatusConfirmed
	sale := &domain.Sale{
		ID:        uuid.New().String(),
		PaymentID: session.ID,
		Items:     append([]domain.CartLine(nil), session.Items...),
		Subtotal:  session.Subtotal,
		Tax:       session.Tax,
		Total:     session.Total,
		Timestamp: time.Now(),
	}
	s.mu.Unlock()

	if err := s.sales.CreateSale(ctx, sale); err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			// Another path already settled this payment.
			return nil, ErrSessionNotFound
		}
		s.mu.Lock()
		session.Status = domain.SessionStatusPending
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to record sale: %w", err)
	}

	s.mu.Lock()
	if s.pendingID == sessionID {
		s.pendingID = ""
	}
	s.mu.Unlock()

	s.stock.DeductForSale(ctx, sale.Items)
	s.store.Clear()

	if s.publisher != nil {
		if err := s.publisher.PublishSale(ctx, sale); err != nil {
			log.Printf("failed to publish sale %s: %v", sale.ID, err)
		}
	}

	log.Printf("payment %s confirmed, sale %s for %.2f", session.ID, sale.ID, sale.Total)
	return sale, nil
}

// CancelPayment aborts a pending session. The cart is untouched.
func (s *Service) CancelPayment(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.Status != domain.SessionStatusPending {
		return ErrSessionNotFound
	}

	session.Status = domain.SessionStatusCancelled
	if s.pendingID == sessionID {
		s.pendingID = ""
	}
	log.Printf("payment session %s cancelled", sessionID)
	return nil
}

// Session returns a copy of the identified session.
func (s *Service) Session(sessionID string) (*domain.PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

// PendingSession returns the live pending session, or nil when the station
// is idle.
func (s *Service) PendingSession() *domain.PaymentSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingID == "" {
		return nil
	}
	session := s.sessions[s.pendingID]
	if session == nil || session.Status != domain.SessionStatusPending {
		return nil
	}
	copied := *session
	return &copied
}

func (s *Service) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireSessions()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Service) expireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		if session.Status == domain.SessionStatusPending && session.IsExpired() {
			session.Status = domain.SessionStatusExpired
			if s.pendingID == id {
				s.pendingID = ""
			}
			log.Printf("payment session %s expired", id)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
