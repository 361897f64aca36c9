// Package player defines the per-connection simulation entity.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package player

// Role is the elimination-mode role of a player.
type Role string

const (
	RoleNone     Role = ""
	RoleCrewmate Role = "crewmate"
	RoleImposter Role = "imposter"
)

// Spawn and starting stats.
const (
	SpawnX        = 400.0
	SpawnY        = 300.0
	StartEnergy   = 100.0
	MaxEnergy     = 100.0
	MinEnergy     = 0.0
	BaseMoveSpeed = 5.0
)

// Player is the simulation state of one logged-in connection.
// JSON names match the client protocol.
type Player struct {
	Identity  string  `json:"walletAddress"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Score     int     `json:"score"`
	Energy    float64 `json:"energy"`
	Sprite    string  `json:"sprite"`
	BaseSpeed float64 `json:"baseSpeed"`

	// Elimination mode
	Role           Role `json:"role,omitempty"`
	Alive          bool `json:"alive"`
	TasksCompleted int  `json:"tasksCompleted"`

	// Last effective speed computed on move. Positions are client-reported,
	// so this is informational only.
	speed float64
}

// New creates a player at the spawn point with full energy.
func New(identity, sprite string, role Role) *Player {
	return &Player{
		Identity:  identity,
		X:         SpawnX,
		Y:         SpawnY,
		Energy:    StartEnergy,
		Sprite:    sprite,
		BaseSpeed: BaseMoveSpeed,
		Role:      role,
		Alive:     true,
		speed:     BaseMoveSpeed,
	}
}

// IsCrewmate reports whether the player holds the crewmate role.
func (p *Player) IsCrewmate() bool {
	return p.Role == RoleCrewmate
}

// EffectiveSpeed returns the speed computed on the last accepted move.
func (p *Player) EffectiveSpeed() float64 {
	return p.speed
}

// SetEffectiveSpeed stores the speed computed for the current move.
func (p *Player) SetEffectiveSpeed(v float64) {
	p.speed = v
}

// AddEnergy adds delta and clamps the result into [MinEnergy, MaxEnergy].
func (p *Player) AddEnergy(delta float64) {
	e := p.Energy + delta
	if e > MaxEnergy {
		e = MaxEnergy
	}
	if e < MinEnergy {
		e = MinEnergy
	}
	p.Energy = e
}
