// Package websocket relays workspace change events to connected browsers.
//
// Every connection holds its own subscription to the event bus for as long
// as it is open, so each event emitted while a client is connected is sent
// to that client as one JSON text message.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/conneroisu/manuscript/internal/events"
	"github.com/conneroisu/manuscript/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 64
	maxMessageSize = 512
)

// Client is one connected browser.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
}

// Manager accepts websocket connections and relays bus events to them.
type Manager struct {
	bus    *events.Bus
	logger logging.Logger

	mu       sync.RWMutex
	clients  map[string]*Client
	shutdown bool
}

// NewManager creates a manager relaying events from bus.
func NewManager(bus *events.Bus, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		bus:     bus,
		logger:  logger.WithComponent("websocket"),
		clients: make(map[string]*Client),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	closed := m.shutdown
	m.mu.RUnlock()
	if closed {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		m.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if !m.register(client) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer m.unregister(client)

	// the bus delivers synchronously, so the listener only enqueues
	unsubscribe := m.bus.Subscribe(func(e events.WatchEvent) {
		data, err := e.Marshal()
		if err != nil {
			m.logger.Error(r.Context(), err, "Dropping unencodable event", "event", e.String())
			return
		}
		select {
		case client.send <- data:
		default:
			m.logger.Warn(r.Context(), nil, "Client send buffer full, dropping event", "client", client.ID, "event", e.String())
		}
	})
	defer unsubscribe()

	m.logger.Info(r.Context(), "Client connected", "client", client.ID, "clients", m.ConnectedClients())

	// CloseRead discards incoming messages and cancels ctx once the peer
	// goes away.
	ctx := conn.CloseRead(r.Context())
	m.writeToClient(ctx, client)
}

func (m *Manager) writeToClient(ctx context.Context, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-client.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := client.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				m.logger.Debug(ctx, "WebSocket write failed", "client", client.ID, "error", err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := client.conn.Ping(pctx)
			cancel()
			if err != nil {
				m.logger.Debug(ctx, "WebSocket ping failed", "client", client.ID, "error", err)
				return
			}
		}
	}
}

func (m *Manager) register(c *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return false
	}
	m.clients[c.ID] = c
	return true
}

func (m *Manager) unregister(c *Client) {
	m.mu.Lock()
	_, ok := m.clients[c.ID]
	delete(m.clients, c.ID)
	m.mu.Unlock()

	if ok {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
		m.logger.Info(context.Background(), "Client disconnected", "client", c.ID)
	}
}

// ConnectedClients returns the number of open connections.
func (m *Manager) ConnectedClients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Shutdown closes every connection and rejects new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shutdown = true
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	var wg conc.WaitGroup
	for _, c := range clients {
		c := c
		wg.Go(func() {
			_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		})
	}
	wg.Wait()
}
