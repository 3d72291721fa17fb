package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"credledger/internal/models"
	"credledger/internal/observability"
)

const (
	// Max connections per account
	maxConnsPerAccount = 8
	// Max total connections
	maxTotalConns = 10000
	// Outbound buffer per client
	sendBuffer = 256
)

var (
	ErrHubClosed        = errors.New("event hub is shut down")
	ErrServerConnLimit  = errors.New("server connection limit reached")
	ErrAccountConnLimit = errors.New("account connection limit reached")
)

// Envelope is the wire form of an event sent to stream clients.
type Envelope struct {
	Type    string             `json:"type"`
	Payload models.LedgerEvent `json:"payload"`
}

// Hub fans ledger events out to connected event stream clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	perAcct map[string]int
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		perAcct: make(map[string]int),
	}
}

// Register attaches a connection. account may be empty for anonymous
// viewers; filter may be nil.
func (h *Hub) Register(conn Conn, account string, filter func(eventType, account string) bool) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= maxTotalConns {
		return nil, ErrServerConnLimit
	}
	if account != "" && h.perAcct[account] >= maxConnsPerAccount {
		return nil, ErrAccountConnLimit
	}

	c := &Client{
		hub:     h,
		conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Account: account,
		Filter:  filter,
	}
	h.clients[c] = struct{}{}
	if account != "" {
		h.perAcct[account]++
	}
	observability.WebSocketConnectionsTotal.Inc()
	return c, nil
}

// UnregisterClient detaches c and closes its send channel.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if c.Account != "" {
		if h.perAcct[c.Account]--; h.perAcct[c.Account] <= 0 {
			delete(h.perAcct, c.Account)
		}
	}
	close(c.Send)
	observability.WebSocketConnectionsTotal.Dec()
}

// Publish broadcasts evt to every client whose filter accepts it.
func (h *Hub) Publish(_ context.Context, evt models.LedgerEvent) error {
	data, err := json.Marshal(Envelope{Type: evt.Type, Payload: evt})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.Filter != nil && !c.Filter(evt.Type, evt.Account) {
			continue
		}
		c.TrySend(data)
	}
	return nil
}

// Deliver is Publish shaped as a subscriber callback.
func (h *Hub) Deliver(evt models.LedgerEvent) {
	_ = h.Publish(context.Background(), evt)
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown detaches every client and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.Send)
		observability.WebSocketConnectionsTotal.Dec()
	}
	h.perAcct = make(map[string]int)
}
