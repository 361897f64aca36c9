package engine

import (
	"context"

	"github.com/MRamiBalles/coinrush/server/internal/domain/player"
	"github.com/MRamiBalles/coinrush/server/internal/domain/rules"
	"github.com/MRamiBalles/coinrush/server/internal/events"
	"github.com/MRamiBalles/coinrush/server/internal/platform/metrics"
)

// Command is anything the engine goroutine can execute.
type Command interface {
	apply(e *Engine)
}

// Login creates a player for the connection.
type Login struct {
	ConnID   string
	Identity string
}

// Move reports a client-side position.
type Move struct {
	ConnID string
	X, Y   float64
}

// Kill eliminates a target in elimination mode.
type Kill struct {
	ConnID   string
	TargetID string
}

// CompleteTasks reports a crewmate's absolute task count.
type CompleteTasks struct {
	ConnID string
	Tasks  int
}

// Leave tears down the connection's player.
type Leave struct {
	ConnID string
}

type restartSession struct {
	generation uint64
}

type endSabotage struct {
	window uint64
}

type statusQuery struct {
	reply chan Status
}

func (c Login) apply(e *Engine) {
	if c.Identity == "" {
		e.logger.Warnf("Rejected login with empty identity from %s", c.ConnID)
		return
	}
	s := e.session
	now := e.now()

	p := player.New(c.Identity, rules.RandomSprite(e.rng), e.elimination.AssignRole(e.rng))
	s.Players[c.ConnID] = p
	metrics.Get().SetPlayers(len(s.Players))

	e.logger.Event("LOGIN", c.ConnID, "wallet "+c.Identity+" role "+string(p.Role))
	e.emit(events.EventTypePlayerJoined, events.PlayerJoinedPayload{ID: c.ConnID, Player: p})

	identity := c.Identity
	e.persistAsync("touch player "+identity, func(ctx context.Context, st Store) error {
		return timedWrite(func() error { return st.TouchPlayer(ctx, identity, now) })
	})
}

func (c Move) apply(e *Engine) {
	p, ok := e.session.Player(c.ConnID)
	if !ok {
		return
	}
	// Positions are client-authoritative; the speed is tracked but never enforced.
	p.SetEffectiveSpeed(rules.EffectiveSpeed(p.BaseSpeed, e.sabotage.Active(), p.Energy))
	p.X, p.Y = c.X, c.Y
	e.emitExcept(c.ConnID, events.EventTypePlayerMoved, events.PlayerMovedPayload{ID: c.ConnID, X: c.X, Y: c.Y})
}

func (c Kill) apply(e *Engine) {
	if !e.elimination.Enabled() {
		return
	}
	if !e.elimination.Kill(e.session, c.TargetID) {
		return
	}
	e.logger.Event("KILL", c.ConnID, "eliminated "+c.TargetID)
	e.emit(events.EventTypePlayerKilled, events.PlayerKilledPayload{ID: c.TargetID})
}

func (c CompleteTasks) apply(e *Engine) {
	if !e.elimination.Enabled() {
		return
	}
	p, ok := e.session.Player(c.ConnID)
	if !ok {
		return
	}
	if !e.elimination.CompleteTasks(p, c.Tasks) {
		return
	}
	e.emit(events.EventTypePlayerTaskUpdate, events.PlayerTaskUpdatePayload{ID: c.ConnID, Tasks: p.TasksCompleted})
}

func (c Leave) apply(e *Engine) {
	s := e.session
	if _, ok := s.Players[c.ConnID]; !ok {
		return
	}
	delete(s.Players, c.ConnID)
	metrics.Get().SetPlayers(len(s.Players))
	e.emit(events.EventTypePlayerLeft, events.PlayerLeftPayload{ID: c.ConnID})
}

func (c restartSession) apply(e *Engine) {
	e.restart(c.generation)
}

func (c endSabotage) apply(e *Engine) {
	if !e.sabotage.End(c.window) {
		return
	}
	e.emit(events.EventTypeSabotage, events.SabotagePayload{Active: false})
}

func (c statusQuery) apply(e *Engine) {
	s := e.session
	c.reply <- Status{
		SessionID:       s.ID,
		Phase:           s.Phase.String(),
		Players:         len(s.Players),
		TimeLeftMs:      max(s.TimeLeft(e.now()), 0).Milliseconds(),
		SabotageActive:  e.sabotage.Active(),
		EliminationMode: s.Elimination,
	}
}

