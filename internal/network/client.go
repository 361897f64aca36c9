package network

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MRamiBalles/coinrush/server/internal/engine"
	"github.com/MRamiBalles/coinrush/server/internal/events"
	"github.com/MRamiBalles/coinrush/server/internal/platform/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer. Voice SDP offers need room.
	maxMessageSize = 16 * 1024
	// Time allowed to queue the Leave command on disconnect.
	leaveWait = 5 * time.Second
)

// CommandSink accepts engine commands. *engine.Engine satisfies it.
type CommandSink interface {
	Submit(ctx context.Context, cmd engine.Command) error
}

// Client is one WebSocket connection.
type Client struct {
	id      string
	hub     *Hub
	sink    CommandSink
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	mu          sync.Mutex
	identity    string
	connectedAt time.Time
	lastSeen    time.Time
}

// NewClient creates a client with its own inbound rate limiter.
func NewClient(id string, hub *Hub, sink CommandSink, conn *websocket.Conn, opts Options) *Client {
	now := time.Now()
	return &Client{
		id:          id,
		hub:         hub,
		sink:        sink,
		conn:        conn,
		send:        make(chan []byte, opts.SendBuffer),
		limiter:     rate.NewLimiter(rate.Limit(opts.InboundRate), opts.InboundBurst),
		connectedAt: now,
		lastSeen:    now,
	}
}

func (c *Client) info() ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionInfo{
		ID:            c.id,
		WalletAddress: c.identity,
		ConnectedAt:   c.connectedAt,
		LastSeen:      c.lastSeen,
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Client) setIdentity(identity string) {
	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()
}

// ReadPump decodes frames into engine commands until the connection fails.
// On exit the player is removed and the connection unregistered.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), leaveWait)
		if err := c.sink.Submit(leaveCtx, engine.Leave{ConnID: c.id}); err != nil && !errors.Is(err, engine.ErrStopped) {
			c.hub.logger.Warnf("Leave for %s not delivered: %v", c.id, err)
		}
		cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.Get().RecordWSError()
				c.hub.logger.Warnf("WebSocket read error on %s: %v", c.id, err)
			}
			return
		}
		metrics.Get().RecordWSMessage(true)
		c.touch()

		if !c.limiter.Allow() {
			metrics.Get().RecordWSDropped()
			c.hub.logger.Warnf("Rate limit exceeded on %s, frame dropped", c.id)
			continue
		}

		env, err := events.Decode(message)
		if err != nil {
			c.hub.logger.Warnf("Malformed frame from %s: %v", c.id, err)
			continue
		}

		if err := c.handle(ctx, env); err != nil {
			if errors.Is(err, engine.ErrStopped) || errors.Is(err, context.Canceled) {
				return
			}
			c.hub.logger.Warnf("Rejected %s from %s: %v", env.Type, c.id, err)
		}
	}
}

// handle maps a frame to an engine command, or relays it for voiceSignal.
func (c *Client) handle(ctx context.Context, env events.Envelope) error {
	switch env.Type {
	case events.EventTypeLogin:
		identity, err := events.DecodeLogin(env.Payload)
		if err != nil {
			return err
		}
		if identity != "" {
			c.setIdentity(identity)
		}
		return c.sink.Submit(ctx, engine.Login{ConnID: c.id, Identity: identity})

	case events.EventTypeMove:
		p, err := events.DecodeMove(env.Payload)
		if err != nil {
			return err
		}
		return c.sink.Submit(ctx, engine.Move{ConnID: c.id, X: p.X, Y: p.Y})

	case events.EventTypeKill:
		p, err := events.DecodeKill(env.Payload)
		if err != nil {
			return err
		}
		return c.sink.Submit(ctx, engine.Kill{ConnID: c.id, TargetID: p.TargetID})

	case events.EventTypeTaskCompleted:
		p, err := events.DecodeTaskCompleted(env.Payload)
		if err != nil {
			return err
		}
		return c.sink.Submit(ctx, engine.CompleteTasks{ConnID: c.id, Tasks: p.Tasks})

	case events.EventTypeVoiceSignal:
		return c.relayVoice(env.Payload)

	default:
		return errors.New("unknown event type")
	}
}

// relayVoice forwards signalling data verbatim; the engine is not involved.
func (c *Client) relayVoice(raw json.RawMessage) error {
	var in events.VoiceSignalIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	if in.To == "" || in.To == c.id {
		return errors.New("voice signal without a valid recipient")
	}
	msg, err := events.Encode(events.EventTypeVoiceSignal, events.VoiceSignalOut{From: c.id, Signal: in.Signal})
	if err != nil {
		return err
	}
	c.hub.SendTo(in.To, msg)
	return nil
}

// WritePump writes one frame per queued message and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				metrics.Get().RecordWSError()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
