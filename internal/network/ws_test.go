package network

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/coinrush/server/internal/engine"
	"github.com/MRamiBalles/coinrush/server/internal/events"
	"github.com/MRamiBalles/coinrush/server/internal/platform/logger"
)

type sinkRecorder struct {
	cmds chan engine.Command
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{cmds: make(chan engine.Command, 64)}
}

func (s *sinkRecorder) Submit(ctx context.Context, cmd engine.Command) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func next[T engine.Command](t *testing.T, s *sinkRecorder) T {
	t.Helper()
	select {
	case cmd := <-s.cmds:
		v, ok := cmd.(T)
		if !ok {
			t.Fatalf("unexpected command %T (%+v)", cmd, cmd)
		}
		return v
	case <-time.After(2 * time.Second):
		var zero T
		t.Fatalf("timed out waiting for %T", zero)
		return zero
	}
}

func startServer(t *testing.T, opts Options) (*Hub, *sinkRecorder, string) {
	t.Helper()
	hub := startHub(t)
	sink := newSinkRecorder()
	srv := httptest.NewServer(NewWSHandler(hub, sink, opts, logger.Discard()))
	t.Cleanup(srv.Close)
	return hub, sink, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, typ events.EventType, payload interface{}) {
	t.Helper()
	msg, err := events.Encode(typ, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSocketFramesBecomeCommands(t *testing.T) {
	_, sink, url := startServer(t, DefaultOptions())
	conn := dial(t, url)

	sendFrame(t, conn, events.EventTypeLogin, "0xaaa")
	login := next[engine.Login](t, sink)
	if login.Identity != "0xaaa" || login.ConnID == "" {
		t.Errorf("unexpected login %+v", login)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
	for _, raw := range []string{
		`{"type":"move","payload":null}`,
		`{"type":"move","payload":{}}`,
		`{"type":"move","payload":{"x":5}}`,
		`{"type":"kill","payload":{}}`,
		`{"type":"taskCompleted","payload":{}}`,
		`{"type":"taskCompleted","payload":null}`,
	} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write %s: %v", raw, err)
		}
	}
	sendFrame(t, conn, events.EventTypeMove, events.MovePayload{X: 12.5, Y: 40})
	move := next[engine.Move](t, sink)
	if move.ConnID != login.ConnID || move.X != 12.5 || move.Y != 40 {
		t.Errorf("unexpected move %+v", move)
	}

	sendFrame(t, conn, events.EventTypeKill, events.KillPayload{TargetID: "victim"})
	if kill := next[engine.Kill](t, sink); kill.TargetID != "victim" {
		t.Errorf("unexpected kill %+v", kill)
	}

	sendFrame(t, conn, events.EventTypeTaskCompleted, events.TaskCompletedPayload{Tasks: 4})
	if tasks := next[engine.CompleteTasks](t, sink); tasks.Tasks != 4 {
		t.Errorf("unexpected tasks %+v", tasks)
	}

	conn.Close()
	if leave := next[engine.Leave](t, sink); leave.ConnID != login.ConnID {
		t.Errorf("expected leave for %s, got %+v", login.ConnID, leave)
	}
}

func TestBroadcastReachesSocket(t *testing.T) {
	hub, _, url := startServer(t, DefaultOptions())
	conn := dial(t, url)
	waitCount(t, hub, 1)

	msg, _ := events.Encode(events.EventTypeSabotage, events.SabotagePayload{Active: true, Duration: 5000})
	hub.Broadcast(msg)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != string(msg) {
		t.Errorf("expected %s, got %s", msg, data)
	}
}

func TestVoiceSignalRelay(t *testing.T) {
	hub, sink, url := startServer(t, DefaultOptions())
	a := dial(t, url)
	sendFrame(t, a, events.EventTypeLogin, "0xa")
	aID := next[engine.Login](t, sink).ConnID
	b := dial(t, url)
	sendFrame(t, b, events.EventTypeLogin, "0xb")
	bID := next[engine.Login](t, sink).ConnID
	waitCount(t, hub, 2)

	sendFrame(t, a, events.EventTypeVoiceSignal, events.VoiceSignalIn{
		To:     bID,
		Signal: json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})

	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := b.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := events.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var out events.VoiceSignalOut
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if env.Type != events.EventTypeVoiceSignal || out.From != aID {
		t.Errorf("expected voiceSignal from %s, got %s from %s", aID, env.Type, out.From)
	}
	if string(out.Signal) != `{"type":"offer","sdp":"v=0"}` {
		t.Errorf("signal not relayed verbatim: %s", out.Signal)
	}

	select {
	case cmd := <-sink.cmds:
		t.Errorf("voice relay must not reach the engine, got %T", cmd)
	default:
	}
}

func TestInboundRateLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.InboundRate = 0.5
	opts.InboundBurst = 1
	_, sink, url := startServer(t, opts)
	conn := dial(t, url)

	for i := 0; i < 5; i++ {
		sendFrame(t, conn, events.EventTypeMove, events.MovePayload{X: float64(i)})
	}

	if move := next[engine.Move](t, sink); move.X != 0 {
		t.Errorf("expected first frame through, got %+v", move)
	}
	select {
	case cmd := <-sink.cmds:
		t.Errorf("expected excess frames dropped, got %T", cmd)
	case <-time.After(200 * time.Millisecond):
	}
}
