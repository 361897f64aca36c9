// Package rules contains the pure calculation logic for game mechanics.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/MRamiBalles/coinrush/server/internal/domain/player"
)

// Playfield bounds and economy constants.
const (
	FieldWidth  = 800.0
	FieldHeight = 600.0

	PickupRadius       = 30.0
	PickupScore        = 1
	PickupEnergy       = 10.0
	EnergyDrainPerTick = 0.05

	LowEnergyThreshold = 20.0
	SlowFactor         = 0.5

	SpriteCount = 1000
)

// Point is a position on the playfield.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RandomPoint returns a uniformly random point inside the playfield.
func RandomPoint(rng *rand.Rand) Point {
	return Point{X: rng.Float64() * FieldWidth, Y: rng.Float64() * FieldHeight}
}

// Distance returns the euclidean distance between two points.
func Distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(ax-bx, ay-by)
}

// TouchesCoin reports whether a player stands within pickup range of the coin.
func TouchesCoin(p *player.Player, coin Point) bool {
	return Distance(p.X, p.Y, coin.X, coin.Y) < PickupRadius
}

// ApplyPickup awards score and energy for one coin.
func ApplyPickup(p *player.Player) {
	p.Score += PickupScore
	p.AddEnergy(PickupEnergy)
}

// ApplyDrain removes one tick of energy. Energy at or below zero is left alone.
func ApplyDrain(p *player.Player) {
	if p.Energy > 0 {
		p.AddEnergy(-EnergyDrainPerTick)
	}
}

// EffectiveSpeed halves the base speed during sabotage and again on low energy.
func EffectiveSpeed(baseSpeed float64, sabotageActive bool, energy float64) float64 {
	speed := baseSpeed
	if sabotageActive {
		speed *= SlowFactor
	}
	if energy < LowEnergyThreshold {
		speed *= SlowFactor
	}
	return speed
}

// ChooseRole draws imposter with probability imposterChance, crewmate otherwise.
func ChooseRole(rng *rand.Rand, imposterChance float64) player.Role {
	if rng.Float64() < imposterChance {
		return player.RoleImposter
	}
	return player.RoleCrewmate
}

// RandomSprite picks one of the NFT sprites shipped with the client.
func RandomSprite(rng *rand.Rand) string {
	return fmt.Sprintf("assets/nfts/%d.png", rng.Intn(SpriteCount)+1)
}
