package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/coinrush/server/internal/domain/rules"
	"github.com/MRamiBalles/coinrush/server/internal/events"
	"github.com/MRamiBalles/coinrush/server/internal/platform/metrics"
)

type settlement struct {
	identity string
	score    int
}

// endSession moves Running to Ended, publishes the final snapshot, settles
// scores in the background and schedules the restart.
func (e *Engine) endSession(now time.Time) {
	s := e.session
	s.Phase = PhaseEnded
	metrics.Get().RecordSessionEnd()

	e.emit(events.EventTypeGameOver, events.GameOverPayload{Players: s.snapshot()})

	results := make([]settlement, 0, len(s.Players))
	for _, p := range s.Players {
		results = append(results, settlement{identity: p.Identity, score: p.Score})
	}
	topWallet, topScore := s.topScorer()
	summary := SessionSummary{
		ID:              s.ID,
		StartedAt:       s.StartTime,
		EndedAt:         now,
		PlayerCount:     len(results),
		TopWallet:       topWallet,
		TopScore:        topScore,
		EliminationMode: s.Elimination,
	}
	e.logger.Event("GAME_OVER", "SYSTEM",
		fmt.Sprintf("session %s ended with %d players, top %s (%d)", s.ID, len(results), topWallet, topScore))

	e.settle(results, summary)

	gen := s.Generation
	e.after(e.settings.RestartDelay, func() {
		e.post(restartSession{generation: gen})
	})
}

// settle writes each player's score and the session summary. Individual
// failures are logged and the rest still run.
func (e *Engine) settle(results []settlement, summary SessionSummary) {
	limit := e.settings.SettleConcurrency
	e.persistAsync("settle session "+summary.ID, func(ctx context.Context, st Store) error {
		var g errgroup.Group
		g.SetLimit(limit)

		for _, r := range results {
			g.Go(func() error {
				err := timedWrite(func() error {
					return st.AddSessionScore(ctx, r.identity, r.score, summary.EndedAt)
				})
				if err != nil {
					e.logger.Errorf("Score for %s not saved: %v", r.identity, err)
					return fmt.Errorf("add score %s: %w", r.identity, err)
				}
				return nil
			})
		}
		g.Go(func() error {
			return timedWrite(func() error { return st.RecordSession(ctx, summary) })
		})

		return g.Wait()
	})
}

// restart replaces an Ended session. Stale timers from older generations are ignored.
func (e *Engine) restart(generation uint64) {
	s := e.session
	if s.Generation != generation || s.Phase != PhaseEnded {
		return
	}
	s.Phase = PhaseRestarting

	next := newSession(generation+1, rules.RandomPoint(e.rng), e.now(), e.settings.SessionDuration, e.settings.EliminationMode)
	e.session = next
	metrics.Get().RecordSessionStart()
	metrics.Get().SetPlayers(0)

	e.logger.Infof("New session %s started", next.ID)
	e.emit(events.EventTypeNewGame, events.NewGamePayload{
		Coin:     next.Coin,
		Duration: next.Duration.Milliseconds(),
	})
}
