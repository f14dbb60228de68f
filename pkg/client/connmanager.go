package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheKaito2/Hybrid-complete/internal/ws"
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

const (
	DefaultBaseDelay = 3 * time.Second
	DefaultMaxDelay  = 48 * time.Second
)

// Config tunes the connection manager. OnEnvelope receives every decoded
// push message; OnStatus fires on connect/disconnect transitions. Both may
// be nil.
type Config struct {
	URL         string
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // consecutive failed dials before giving up; 0 retries forever
	OnEnvelope  func(ws.Envelope)
	OnStatus    func(Status)
}

// ConnManager owns one logical push-channel connection and keeps it alive:
// on close it redials with capped, jittered exponential backoff. Malformed
// or unknown messages are dropped without failing the channel.
type ConnManager struct {
	cfg Config

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func NewConnManager(cfg Config) *ConnManager {
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	return &ConnManager{cfg: cfg}
}

// Run dials and reads until ctx is cancelled or MaxAttempts dials in a row
// have failed.
func (m *ConnManager) Run(ctx context.Context) error {
	attempts := 0
	delay := m.cfg.BaseDelay

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.cfg.URL, nil)
		if err != nil {
			attempts++
			if m.cfg.MaxAttempts > 0 && attempts >= m.cfg.MaxAttempts {
				return fmt.Errorf("giving up after %d connection attempts: %w", attempts, err)
			}
			log.Printf("connection attempt %d failed: %v, retrying in %v", attempts, err, delay)
			if !sleep(ctx, withJitter(delay)) {
				return ctx.Err()
			}
			delay = nextDelay(delay, m.cfg.MaxDelay)
			continue
		}

		attempts = 0
		delay = m.cfg.BaseDelay

		m.setConn(conn)
		m.readLoop(conn)
		m.clearConn()

		if !sleep(ctx, withJitter(m.cfg.BaseDelay)) {
			return ctx.Err()
		}
	}
}

// Send pushes an envelope to the server. While disconnected it is a silent
// no-op: frames are droppable by design, never queued.
func (m *ConnManager) Send(env ws.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected || m.conn == nil {
		return nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return m.conn.WriteMessage(websocket.TextMessage, data)
}

// Connected reports the current transport state.
func (m *ConnManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *ConnManager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("push channel read error: %v", err)
			}
			return
		}

		env, err := ws.Decode(data)
		if err != nil {
			// Unknown types are forward compatibility, not failures.
			if !errors.Is(err, ws.ErrUnknownType) {
				log.Printf("dropping push message: %v", err)
			}
			continue
		}

		if m.cfg.OnEnvelope != nil {
			m.cfg.OnEnvelope(env)
		}
	}
}

func (m *ConnManager) setConn(conn *websocket.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.connected = true
	m.mu.Unlock()

	if m.cfg.OnStatus != nil {
		m.cfg.OnStatus(StatusConnected)
	}
}

func (m *ConnManager) clearConn() {
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.conn = nil
	m.connected = false
	m.mu.Unlock()

	if m.cfg.OnStatus != nil {
		m.cfg.OnStatus(StatusDisconnected)
	}
}

// nextDelay doubles the backoff up to the cap.
func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// withJitter spreads a delay by +-20% so a fleet of kiosks does not redial
// in lockstep.
func withJitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
