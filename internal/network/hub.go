package network

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MRamiBalles/coinrush/server/internal/platform/logger"
	"github.com/MRamiBalles/coinrush/server/internal/platform/metrics"
)

// outbound is a frame routed by the hub. An empty to means every client
// except exclude.
type outbound struct {
	to      string
	exclude string
	msg     []byte
}

// ConnectionInfo describes a live connection in the registry.
type ConnectionInfo struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	ConnectedAt   time.Time `json:"connectedAt"`
	LastSeen      time.Time `json:"lastSeen"`
}

// Hub is the connection registry. It owns every client's send channel and
// routes frames to all, all-but-one, or one connection.
type Hub struct {
	clients    map[string]*Client
	outbound   chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logger.Logger
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		outbound:   make(chan outbound, 1024),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run starts the Hub's main loop. On exit every client is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Infof("WebSocket client %s connected", client.id)
		case client := <-h.unregister:
			h.remove(client, "disconnected")
		case out := <-h.outbound:
			h.route(out)
		}
	}
}

func (h *Hub) remove(client *Client, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[client.id]; ok && cur == client {
		delete(h.clients, client.id)
		close(client.send)
		metrics.Get().RecordWSConnection(-1)
		h.logger.Infof("WebSocket client %s %s", client.id, reason)
	}
}

func (h *Hub) route(out outbound) {
	if out.to != "" {
		h.mu.RLock()
		client, ok := h.clients[out.to]
		h.mu.RUnlock()
		if ok {
			h.deliver(client, out.msg)
		}
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		if id != out.exclude {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.deliver(client, out.msg)
	}
}

// deliver drops a client whose buffer is full rather than stall the loop.
func (h *Hub) deliver(client *Client, msg []byte) {
	select {
	case client.send <- msg:
		metrics.Get().RecordWSMessage(false)
	default:
		metrics.Get().RecordWSDropped()
		h.remove(client, "dropped: send buffer full")
	}
}

func (h *Hub) enqueue(out outbound) {
	select {
	case h.outbound <- out:
	case <-h.done:
	}
}

// Broadcast sends msg to every connection.
func (h *Hub) Broadcast(msg []byte) {
	h.enqueue(outbound{msg: msg})
}

// BroadcastExcept sends msg to every connection but excludeID.
func (h *Hub) BroadcastExcept(excludeID string, msg []byte) {
	h.enqueue(outbound{exclude: excludeID, msg: msg})
}

// SendTo sends msg to one connection. Unknown ids are dropped.
func (h *Hub) SendTo(id string, msg []byte) {
	h.enqueue(outbound{to: id, msg: msg})
}

// Connections lists live connections ordered by connect time.
func (h *Hub) Connections() []ConnectionInfo {
	h.mu.RLock()
	out := make([]ConnectionInfo, 0, len(h.clients))
	for _, client := range h.clients {
		out = append(out, client.info())
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
