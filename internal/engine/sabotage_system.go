package engine

import (
	"time"

	"github.com/MRamiBalles/coinrush/server/internal/events"
	"github.com/MRamiBalles/coinrush/server/internal/platform/metrics"
)

// SabotageSystem holds the global debuff flag. It is not part of the Session
// and keeps its phase across restarts.
type SabotageSystem struct {
	active   bool
	window   uint64
	duration time.Duration
}

// NewSabotageSystem creates an idle sabotage system.
func NewSabotageSystem(duration time.Duration) *SabotageSystem {
	return &SabotageSystem{duration: duration}
}

// Active reports whether a debuff window is open.
func (ss *SabotageSystem) Active() bool {
	return ss.active
}

// Begin opens a new window and returns its id.
func (ss *SabotageSystem) Begin() uint64 {
	ss.window++
	ss.active = true
	return ss.window
}

// End closes the window if it is still the latest one.
func (ss *SabotageSystem) End(window uint64) bool {
	if window != ss.window || !ss.active {
		return false
	}
	ss.active = false
	return true
}

// beginSabotage runs on each period tick and schedules the matching end.
func (e *Engine) beginSabotage() {
	w := e.sabotage.Begin()
	metrics.Get().RecordSabotage()
	e.logger.Event("SABOTAGE", "SYSTEM", "speed debuff active")
	e.emit(events.EventTypeSabotage, events.SabotagePayload{
		Active:   true,
		Duration: e.sabotage.duration.Milliseconds(),
	})
	e.after(e.sabotage.duration, func() {
		e.post(endSabotage{window: w})
	})
}
