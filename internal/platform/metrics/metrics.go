// Package metrics provides observability for the session server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance counters. All fields are updated atomically.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Session metrics
	SessionsStarted  int64
	SessionsEnded    int64
	CoinsCollected   int64
	SabotageWindows  int64
	PlayersConnected int64

	// Store metrics
	StoreWrites      int64
	StoreWriteLatSum int64
	StoreWriteLatMax int64
	StoreWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSMessagesDropped   int64
	WSErrors            int64

	StartTime time.Time
	mu        sync.RWMutex
}

var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the process-wide collector.
func Get() *Collector {
	return collector
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// RecordTick records a simulation tick.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))
	storeMax(&c.TickLatencyMax, int64(latency))

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordSessionStart counts a new session.
func (c *Collector) RecordSessionStart() {
	atomic.AddInt64(&c.SessionsStarted, 1)
}

// RecordSessionEnd counts a settled session.
func (c *Collector) RecordSessionEnd() {
	atomic.AddInt64(&c.SessionsEnded, 1)
}

// RecordCoinCollected counts a coin pickup.
func (c *Collector) RecordCoinCollected() {
	atomic.AddInt64(&c.CoinsCollected, 1)
}

// RecordSabotage counts an opened sabotage window.
func (c *Collector) RecordSabotage() {
	atomic.AddInt64(&c.SabotageWindows, 1)
}

// SetPlayers stores the current player count of the live session.
func (c *Collector) SetPlayers(n int) {
	atomic.StoreInt64(&c.PlayersConnected, int64(n))
}

// RecordStoreWrite records a call to the external player store.
func (c *Collector) RecordStoreWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.StoreWrites, 1)
	atomic.AddInt64(&c.StoreWriteLatSum, int64(latency))
	storeMax(&c.StoreWriteLatMax, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.StoreWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSDropped records an inbound frame dropped by the rate limiter or
// an outbound frame dropped on a full send buffer.
func (c *Collector) RecordWSDropped() {
	atomic.AddInt64(&c.WSMessagesDropped, 1)
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	lastTick := c.LastTickTime
	c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	writes := atomic.LoadInt64(&c.StoreWrites)

	var tickAvg, writeAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}
	if writes > 0 {
		writeAvg = float64(atomic.LoadInt64(&c.StoreWriteLatSum)) / float64(writes) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      lastTick.Format(time.RFC3339),
		},

		"session": map[string]interface{}{
			"started":          atomic.LoadInt64(&c.SessionsStarted),
			"ended":            atomic.LoadInt64(&c.SessionsEnded),
			"coins_collected":  atomic.LoadInt64(&c.CoinsCollected),
			"sabotage_windows": atomic.LoadInt64(&c.SabotageWindows),
			"players":          atomic.LoadInt64(&c.PlayersConnected),
		},

		"store": map[string]interface{}{
			"writes":           writes,
			"avg_write_lat_ms": writeAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.StoreWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.StoreWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"messages_dropped":   atomic.LoadInt64(&c.WSMessagesDropped),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(collector.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP coinrush_tick_count Total simulation ticks\n")
		fmt.Fprintf(w, "# TYPE coinrush_tick_count counter\n")
		fmt.Fprintf(w, "coinrush_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP coinrush_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE coinrush_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "coinrush_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP coinrush_sessions_total Sessions by lifecycle edge\n")
		fmt.Fprintf(w, "# TYPE coinrush_sessions_total counter\n")
		fmt.Fprintf(w, "coinrush_sessions_total{edge=\"started\"} %d\n", atomic.LoadInt64(&c.SessionsStarted))
		fmt.Fprintf(w, "coinrush_sessions_total{edge=\"ended\"} %d\n\n", atomic.LoadInt64(&c.SessionsEnded))

		fmt.Fprintf(w, "# HELP coinrush_coins_collected Total coin pickups\n")
		fmt.Fprintf(w, "# TYPE coinrush_coins_collected counter\n")
		fmt.Fprintf(w, "coinrush_coins_collected %d\n\n", atomic.LoadInt64(&c.CoinsCollected))

		fmt.Fprintf(w, "# HELP coinrush_players Players in the live session\n")
		fmt.Fprintf(w, "# TYPE coinrush_players gauge\n")
		fmt.Fprintf(w, "coinrush_players %d\n\n", atomic.LoadInt64(&c.PlayersConnected))

		fmt.Fprintf(w, "# HELP coinrush_store_write_errors Total store write errors\n")
		fmt.Fprintf(w, "# TYPE coinrush_store_write_errors counter\n")
		fmt.Fprintf(w, "coinrush_store_write_errors %d\n\n", atomic.LoadInt64(&c.StoreWriteErrors))

		fmt.Fprintf(w, "# HELP coinrush_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE coinrush_ws_connections gauge\n")
		fmt.Fprintf(w, "coinrush_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP coinrush_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE coinrush_ws_messages_total counter\n")
		fmt.Fprintf(w, "coinrush_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "coinrush_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
		fmt.Fprintf(w, "coinrush_ws_messages_total{direction=\"dropped\"} %d\n", atomic.LoadInt64(&c.WSMessagesDropped))
	}
}
