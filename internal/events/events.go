// Package events defines the wire vocabulary between clients and the session server.
// Every frame is a JSON envelope {"type": ..., "payload": ...}.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/MRamiBalles/coinrush/server/internal/domain/player"
	"github.com/MRamiBalles/coinrush/server/internal/domain/rules"
)

// EventType names a frame on the socket.
type EventType string

// Client -> server
const (
	EventTypeLogin         EventType = "login"
	EventTypeMove          EventType = "move"
	EventTypeKill          EventType = "kill"
	EventTypeTaskCompleted EventType = "taskCompleted"
	EventTypeVoiceSignal   EventType = "voiceSignal"
)

// Server -> client
const (
	EventTypePlayerJoined     EventType = "playerJoined"
	EventTypePlayerMoved      EventType = "playerMoved"
	EventTypePlayerLeft       EventType = "playerLeft"
	EventTypeCoinRespawn      EventType = "coinRespawn"
	EventTypeSabotage         EventType = "sabotage"
	EventTypeGameState        EventType = "gameState"
	EventTypeGameOver         EventType = "gameOver"
	EventTypeNewGame          EventType = "newGame"
	EventTypePlayerKilled     EventType = "playerKilled"
	EventTypePlayerTaskUpdate EventType = "playerTaskUpdate"
)

// Message is an outbound frame.
type Message struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is an inbound frame with its payload left undecoded.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode marshals an outbound frame.
func Encode(t EventType, payload interface{}) ([]byte, error) {
	b, err := json.Marshal(Message{Type: t, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return b, nil
}

// Decode parses an inbound frame header.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// Players is the snapshot form of the session's player map, keyed by connection id.
type Players map[string]*player.Player

// PlayerJoinedPayload announces a new player.
type PlayerJoinedPayload struct {
	ID     string         `json:"id"`
	Player *player.Player `json:"player"`
}

// PlayerMovedPayload is relayed to everyone but the mover.
type PlayerMovedPayload struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// PlayerLeftPayload announces a disconnect.
type PlayerLeftPayload struct {
	ID string `json:"id"`
}

// SabotagePayload carries the window length in ms on activation only.
type SabotagePayload struct {
	Active   bool  `json:"active"`
	Duration int64 `json:"duration,omitempty"`
}

// GameStatePayload is the per-tick snapshot. TimeLeft is in ms.
type GameStatePayload struct {
	Players  Players     `json:"players"`
	Coin     rules.Point `json:"coin"`
	TimeLeft int64       `json:"timeLeft"`
}

// GameOverPayload is the final snapshot of a round.
type GameOverPayload struct {
	Players Players `json:"players"`
}

// NewGamePayload starts a round. Duration is in ms.
type NewGamePayload struct {
	Coin     rules.Point `json:"coin"`
	Duration int64       `json:"duration"`
}

// PlayerKilledPayload names the eliminated player.
type PlayerKilledPayload struct {
	ID string `json:"id"`
}

// PlayerTaskUpdatePayload reports crewmate progress.
type PlayerTaskUpdatePayload struct {
	ID    string `json:"id"`
	Tasks int    `json:"tasks"`
}

// MovePayload is the client-reported absolute position.
type MovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// KillPayload targets a connection id.
type KillPayload struct {
	TargetID string `json:"targetId"`
}

// TaskCompletedPayload is the absolute task count reported by a crewmate.
type TaskCompletedPayload struct {
	Tasks int `json:"tasks"`
}

// VoiceSignalIn is what a client sends; To is the recipient connection id.
type VoiceSignalIn struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

// VoiceSignalOut is what the recipient receives.
type VoiceSignalOut struct {
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// DecodeLogin accepts either a bare JSON string or {"walletAddress": "..."}.
func DecodeLogin(raw json.RawMessage) (string, error) {
	var identity string
	if err := json.Unmarshal(raw, &identity); err == nil {
		return identity, nil
	}
	var obj struct {
		WalletAddress string `json:"walletAddress"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("decode login: %w", err)
	}
	return obj.WalletAddress, nil
}

// DecodeMove requires both coordinates. A null payload or a missing axis is an error.
func DecodeMove(raw json.RawMessage) (MovePayload, error) {
	var in struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return MovePayload{}, fmt.Errorf("decode move: %w", err)
	}
	if in.X == nil || in.Y == nil {
		return MovePayload{}, fmt.Errorf("decode move: x and y are required")
	}
	return MovePayload{X: *in.X, Y: *in.Y}, nil
}

// DecodeKill requires a non-empty target id.
func DecodeKill(raw json.RawMessage) (KillPayload, error) {
	var in KillPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return KillPayload{}, fmt.Errorf("decode kill: %w", err)
	}
	if in.TargetID == "" {
		return KillPayload{}, fmt.Errorf("decode kill: targetId is required")
	}
	return in, nil
}

// DecodeTaskCompleted requires the task count.
func DecodeTaskCompleted(raw json.RawMessage) (TaskCompletedPayload, error) {
	var in struct {
		Tasks *int `json:"tasks"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return TaskCompletedPayload{}, fmt.Errorf("decode taskCompleted: %w", err)
	}
	if in.Tasks == nil {
		return TaskCompletedPayload{}, fmt.Errorf("decode taskCompleted: tasks is required")
	}
	return TaskCompletedPayload{Tasks: *in.Tasks}, nil
}
