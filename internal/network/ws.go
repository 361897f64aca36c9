package network

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/coinrush/server/internal/platform/logger"
	"github.com/MRamiBalles/coinrush/server/internal/platform/metrics"
)

// Options tunes per-connection buffers and the inbound limiter.
type Options struct {
	SendBuffer   int
	InboundRate  float64
	InboundBurst int
}

// DefaultOptions returns the production connection limits.
func DefaultOptions() Options {
	return Options{
		SendBuffer:   256,
		InboundRate:  60,
		InboundBurst: 120,
	}
}

// WSHandler upgrades /ws requests and runs the client pumps.
type WSHandler struct {
	hub      *Hub
	sink     CommandSink
	opts     Options
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewWSHandler creates the WebSocket endpoint.
func NewWSHandler(hub *Hub, sink CommandSink, opts Options, log *logger.Logger) *WSHandler {
	return &WSHandler{
		hub:  hub,
		sink: sink,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // The browser client may be served from a CDN
			},
		},
		logger: log,
	}
}

// ServeHTTP blocks in the read pump for the lifetime of the connection.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.Get().RecordWSError()
		h.logger.Warnf("Failed to upgrade websocket connection: %v", err)
		return
	}

	client := NewClient(uuid.NewString(), h.hub, h.sink, conn, h.opts)
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(r.Context())
}
