package engine

import (
	"time"

	"github.com/MRamiBalles/coinrush/server/internal/events"
	"github.com/MRamiBalles/coinrush/server/internal/platform/metrics"
)

// tick is one simulation step. The end-of-round check runs first so a
// round that has run over never produces another snapshot.
func (e *Engine) tick() {
	started := time.Now()
	defer func() { metrics.Get().RecordTick(time.Since(started)) }()

	s := e.session
	if s.Phase != PhaseRunning {
		return
	}

	now := e.now()
	left := s.TimeLeft(now)
	if left <= 0 {
		e.endSession(now)
		return
	}

	e.economy.Step(s, e.rng)

	e.emit(events.EventTypeGameState, events.GameStatePayload{
		Players:  s.snapshot(),
		Coin:     s.Coin,
		TimeLeft: left.Milliseconds(),
	})
}
