package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/coinrush/server/internal/domain/player"
	"github.com/MRamiBalles/coinrush/server/internal/domain/rules"
	"github.com/MRamiBalles/coinrush/server/internal/events"
)

// Phase is the lifecycle state of a Session.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseEnded
	PhaseRestarting
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseEnded:
		return "ended"
	case PhaseRestarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// Session is one timed round. A restart replaces it wholesale.
type Session struct {
	ID          string
	Generation  uint64
	Coin        rules.Point
	StartTime   time.Time
	Duration    time.Duration
	Phase       Phase
	Elimination bool
	Players     map[string]*player.Player
}

func newSession(generation uint64, coin rules.Point, start time.Time, duration time.Duration, elimination bool) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Generation:  generation,
		Coin:        coin,
		StartTime:   start,
		Duration:    duration,
		Phase:       PhaseRunning,
		Elimination: elimination,
		Players:     make(map[string]*player.Player),
	}
}

// TimeLeft may be negative once the round has run over.
func (s *Session) TimeLeft(now time.Time) time.Duration {
	return s.Duration - now.Sub(s.StartTime)
}

// Player looks up the player for a connection.
func (s *Session) Player(connID string) (*player.Player, bool) {
	p, ok := s.Players[connID]
	return p, ok
}

func (s *Session) snapshot() events.Players {
	return events.Players(s.Players)
}

// topScorer counts dead players too. Ties go to the smaller wallet address.
func (s *Session) topScorer() (string, int) {
	var wallet string
	best := -1
	for _, p := range s.Players {
		if p.Score > best || (p.Score == best && p.Identity < wallet) {
			wallet, best = p.Identity, p.Score
		}
	}
	if best < 0 {
		return "", 0
	}
	return wallet, best
}

// Status is a read-only view of the live session.
type Status struct {
	SessionID       string `json:"sessionId"`
	Phase           string `json:"phase"`
	Players         int    `json:"players"`
	TimeLeftMs      int64  `json:"timeLeftMs"`
	SabotageActive  bool   `json:"sabotageActive"`
	EliminationMode bool   `json:"eliminationMode"`
}
