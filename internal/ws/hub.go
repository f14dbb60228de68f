package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one registered push-channel connection. Writes are serialized
// through the client's own mutex because gorilla connections allow a single
// concurrent writer.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *Client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans out envelopes to every registered connection. Delivery is
// best-effort: a failed send is logged and swallowed so one broken client
// never blocks the rest. Dead connections are unregistered by their own
// read loops.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := &Client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("websocket connected, total connections: %d", total)
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("websocket disconnected, total connections: %d", total)
}

// Count returns the number of currently registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast marshals env once and pushes it to all clients.
func (h *Hub) Broadcast(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("failed to marshal envelope %q: %v", env.Type, err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(data); err != nil {
			log.Printf("failed to push %q to client: %v", env.Type, err)
		}
	}
}

// Send delivers env to a single client.
func (h *Hub) Send(c *Client, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.send(data)
}

// Cart mutation notifications. These fire after the mutation is fully
// applied, so a client reacting with a re-fetch observes at least that
// mutation.

func (h *Hub) CartUpdated(productName string, cartSize int) {
	h.Broadcast(Envelope{Type: TypeCartUpdated, ProductName: productName, CartSize: cartSize})
}

func (h *Hub) BatchAdded(itemsCount, cartSize int) {
	h.Broadcast(Envelope{Type: TypeBatchAdded, ItemsCount: itemsCount, CartSize: cartSize})
}

func (h *Hub) ItemRemoved(productID string, cartSize int) {
	h.Broadcast(Envelope{Type: TypeItemRemoved, ProductID: productID, CartSize: cartSize})
}

func (h *Hub) CartCleared() {
	h.Broadcast(Envelope{Type: TypeCartCleared})
}
