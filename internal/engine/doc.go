// Package engine contains the authoritative session loop.
//
// ARCHITECTURAL RULE: only the goroutine running Engine.Run touches the Session.
// Inbound client events, the simulation tick, the sabotage timer and delayed
// work (sabotage end, session restart) all arrive as commands on one inbox and
// each runs to completion before the next.
package engine
