// Package main - loadbot
// Load generator: N concurrent bots log in with random wallets and stream
// move frames at a fixed interval against a running session server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/coinrush/server/internal/domain/rules"
	"github.com/MRamiBalles/coinrush/server/internal/events"
)

// Config for the load run
type Config struct {
	ServerURL    string
	NumClients   int
	MoveInterval time.Duration
	TestDuration time.Duration
	Output       string
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	CoinRespawns     int64
	GameStates       int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

func main() {
	serverURL := flag.String("url", "ws://localhost:5000/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent bots")
	interval := flag.Duration("interval", 50*time.Millisecond, "Move interval per bot")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	output := flag.String("out", "", "Optional path for a JSON results file")
	flag.Parse()

	config := Config{
		ServerURL:    *serverURL,
		NumClients:   *numClients,
		MoveInterval: *interval,
		TestDuration: *duration,
		Output:       *output,
	}

	fmt.Println("=========================================")
	fmt.Println("COINRUSH LOADBOT")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.ServerURL)
	fmt.Printf("Clients:  %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.MoveInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := runLoad(ctx, config)
	printResults(stats, config)
}

func runLoad(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup
	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(botID int) {
			defer wg.Done()
			runBot(ctx, botID, config, stats)
		}(i)

		// Stagger connects
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("All %d bots started\n\n", config.NumClients)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: sent=%d recv=%d errors=%d\n",
					atomic.LoadInt64(&stats.MessagesSent),
					atomic.LoadInt64(&stats.MessagesReceived),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

func runBot(ctx context.Context, botID int, config Config, stats *Stats) {
	wallet := "0x" + uuid.NewString()[:8]
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(botID)))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("Bot %d: connection failed: %v", botID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			env, err := events.Decode(data)
			if err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			switch env.Type {
			case events.EventTypeCoinRespawn:
				atomic.AddInt64(&stats.CoinRespawns, 1)
			case events.EventTypeGameState:
				atomic.AddInt64(&stats.GameStates, 1)
			}
		}
	}()

	if err := send(conn, events.EventTypeLogin, wallet); err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	atomic.AddInt64(&stats.MessagesSent, 1)

	pos := rules.RandomPoint(rng)
	ticker := time.NewTicker(config.MoveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			pos = wander(rng, pos)
			start := time.Now()
			if err := send(conn, events.EventTypeMove, events.MovePayload{X: pos.X, Y: pos.Y}); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			latency := time.Since(start)
			atomic.AddInt64(&stats.MessagesSent, 1)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, latency)
			stats.mu.Unlock()
		}
	}
}

func send(conn *websocket.Conn, t events.EventType, payload interface{}) error {
	msg, err := events.Encode(t, payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// wander takes one base-speed step in a random direction, clamped to the field.
func wander(rng *rand.Rand, p rules.Point) rules.Point {
	dx := (rng.Float64()*2 - 1) * 5
	dy := (rng.Float64()*2 - 1) * 5
	p.X = min(max(p.X+dx, 0), rules.FieldWidth)
	p.Y = min(max(p.Y+dy, 0), rules.FieldHeight)
	return p
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)
	throughput := float64(sent) / config.TestDuration.Seconds()

	fmt.Printf("Messages Sent:     %d\n", sent)
	fmt.Printf("Messages Received: %d\n", recv)
	fmt.Printf("Game States:       %d\n", atomic.LoadInt64(&stats.GameStates))
	fmt.Printf("Coin Respawns:     %d\n", atomic.LoadInt64(&stats.CoinRespawns))
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)
	fmt.Printf("Throughput:        %.2f msg/sec\n", throughput)

	stats.mu.Lock()
	latencies := stats.Latencies
	stats.mu.Unlock()
	if len(latencies) > 0 {
		var total time.Duration
		lo, hi := latencies[0], latencies[0]
		for _, l := range latencies {
			total += l
			lo = min(lo, l)
			hi = max(hi, l)
		}
		fmt.Printf("\nWrite latency:\n")
		fmt.Printf("  Min: %v\n", lo)
		fmt.Printf("  Avg: %v\n", total/time.Duration(len(latencies)))
		fmt.Printf("  Max: %v\n", hi)
	}
	fmt.Println("=========================================")

	if config.Output == "" {
		return
	}
	results := map[string]interface{}{
		"messages_sent":      sent,
		"messages_received":  recv,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.MoveInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}
	if err := writeResults(config.Output, results); err != nil {
		log.Printf("write results: %v", err)
		return
	}
	fmt.Printf("\nResults saved to %s\n", config.Output)
}

func writeResults(path string, results interface{}) error {
	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return os.WriteFile(path, jsonData, 0o644)
}
