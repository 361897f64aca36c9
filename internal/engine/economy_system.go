package engine

import (
	"math/rand"

	"github.com/MRamiBalles/coinrush/server/internal/domain/rules"
	"github.com/MRamiBalles/coinrush/server/internal/events"
	"github.com/MRamiBalles/coinrush/server/internal/platform/logger"
	"github.com/MRamiBalles/coinrush/server/internal/platform/metrics"
)

// EconomySystem runs coin collision and energy drain once per tick.
type EconomySystem struct {
	emit   func(events.EventType, interface{})
	logger *logger.Logger
}

// NewEconomySystem creates the collision and economy system.
func NewEconomySystem(emit func(events.EventType, interface{}), log *logger.Logger) *EconomySystem {
	return &EconomySystem{
		emit:   emit,
		logger: log,
	}
}

// Step evaluates every eligible player against the coin, relocating it on each
// pickup, then applies drain. Returns the number of pickups.
func (es *EconomySystem) Step(s *Session, rng *rand.Rand) int {
	pickups := 0
	for _, p := range s.Players {
		if s.Elimination && !p.Alive {
			continue
		}

		if rules.TouchesCoin(p, s.Coin) {
			rules.ApplyPickup(p)
			s.Coin = rules.RandomPoint(rng)
			pickups++
			metrics.Get().RecordCoinCollected()
			es.emit(events.EventTypeCoinRespawn, s.Coin)
		}

		rules.ApplyDrain(p)
	}
	return pickups
}
