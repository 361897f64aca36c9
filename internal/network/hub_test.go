package network

import (
	"context"
	"testing"
	"time"

	"github.com/MRamiBalles/coinrush/server/internal/platform/logger"
)

func newTestClient(id string, buffer int, connectedAt time.Time) *Client {
	return &Client{
		id:          id,
		send:        make(chan []byte, buffer),
		connectedAt: connectedAt,
		lastSeen:    connectedAt,
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	return hub
}

func recv(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatalf("send channel of %s closed", c.id)
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame on %s", c.id)
	}
	return ""
}

func waitCount(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, have %d", n, hub.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubRouting(t *testing.T) {
	hub := startHub(t)
	now := time.Now()
	a := newTestClient("a", 8, now)
	b := newTestClient("b", 8, now.Add(time.Millisecond))
	hub.register <- a
	hub.register <- b

	hub.Broadcast([]byte("all"))
	hub.BroadcastExcept("a", []byte("not-a"))
	hub.SendTo("a", []byte("only-a"))
	hub.SendTo("ghost", []byte("lost"))
	hub.Broadcast([]byte("end"))

	for _, want := range []string{"all", "only-a", "end"} {
		if got := recv(t, a); got != want {
			t.Errorf("client a: expected %q, got %q", want, got)
		}
	}
	for _, want := range []string{"all", "not-a", "end"} {
		if got := recv(t, b); got != want {
			t.Errorf("client b: expected %q, got %q", want, got)
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := newTestClient("slow", 1, time.Now())
	hub.register <- slow

	fast := newTestClient("fast", 8, time.Now())
	hub.register <- fast

	// Nothing reads slow.send until the hub has routed every frame.
	hub.Broadcast([]byte("one"))
	hub.Broadcast([]byte("two"))
	hub.Broadcast([]byte("three"))
	waitCount(t, hub, 1)

	if got := recv(t, slow); got != "one" {
		t.Fatalf("expected buffered first frame, got %q", got)
	}
	if _, ok := <-slow.send; ok {
		t.Error("expected send channel closed after overflow")
	}

	for _, want := range []string{"one", "two", "three"} {
		if got := recv(t, fast); got != want {
			t.Errorf("fast client: expected %q, got %q", want, got)
		}
	}
	if conns := hub.Connections(); len(conns) != 1 || conns[0].ID != "fast" {
		t.Errorf("expected only the fast client registered, got %+v", conns)
	}
}

func TestHubConnectionsAndUnregister(t *testing.T) {
	hub := startHub(t)
	now := time.Now()
	first := newTestClient("z-first", 1, now)
	second := newTestClient("a-second", 1, now.Add(time.Second))
	first.setIdentity("0xaaa")
	hub.register <- second
	hub.register <- first
	waitCount(t, hub, 2)

	conns := hub.Connections()
	if len(conns) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(conns))
	}
	if conns[0].ID != "z-first" || conns[0].WalletAddress != "0xaaa" {
		t.Errorf("expected oldest connection first with identity, got %+v", conns[0])
	}

	hub.unregister <- first
	hub.unregister <- first
	if _, ok := <-first.send; ok {
		t.Error("expected send channel closed on unregister")
	}
	if hub.Count() != 1 {
		t.Errorf("expected 1 connection left, got %d", hub.Count())
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	c := newTestClient("c", 1, time.Now())
	hub.register <- c

	cancel()
	<-hub.done

	if _, ok := <-c.send; ok {
		t.Error("expected send channel closed on shutdown")
	}
	// Must not block once the hub is gone.
	hub.Broadcast([]byte("late"))
}
