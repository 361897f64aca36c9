package engine

import (
	"math/rand"

	"github.com/MRamiBalles/coinrush/server/internal/domain/player"
	"github.com/MRamiBalles/coinrush/server/internal/domain/rules"
)

// EliminationSystem implements roles, kills and crewmate task progress.
// When disabled every operation is a no-op and no role is assigned.
type EliminationSystem struct {
	enabled        bool
	imposterChance float64
}

// NewEliminationSystem creates the role system.
func NewEliminationSystem(enabled bool, imposterChance float64) *EliminationSystem {
	return &EliminationSystem{
		enabled:        enabled,
		imposterChance: imposterChance,
	}
}

// Enabled reports whether elimination mode is on.
func (el *EliminationSystem) Enabled() bool {
	return el.enabled
}

// AssignRole draws a role for a new player.
func (el *EliminationSystem) AssignRole(rng *rand.Rand) player.Role {
	if !el.enabled {
		return player.RoleNone
	}
	return rules.ChooseRole(rng, el.imposterChance)
}

// Kill marks the target dead. Missing or already dead targets are a no-op.
// The caller's own role is not checked.
func (el *EliminationSystem) Kill(s *Session, targetID string) bool {
	target, ok := s.Player(targetID)
	if !ok || !target.Alive {
		return false
	}
	target.Alive = false
	return true
}

// CompleteTasks overwrites the crewmate's task count. Dead players,
// imposters and regressions are rejected.
func (el *EliminationSystem) CompleteTasks(p *player.Player, tasks int) bool {
	if !p.Alive || !p.IsCrewmate() {
		return false
	}
	if tasks < p.TasksCompleted {
		return false
	}
	p.TasksCompleted = tasks
	return true
}
