// Package agent bridges the markets of adjacent hierarchy levels. An
// inter-area agent mirrors orders across a parent/child market boundary and
// routes the resulting trades, changes and deletions back to their origin,
// making the two books behave as one liquidity pool while every participant
// only ever sees local order identifiers.
package agent

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gridsim/internal/market"
)

// InterAreaAgent connects a lower (child side) and an upper (parent side)
// market. It lives for the whole simulation; its order mappings are
// discarded and rebuilt at every market cycle because order identifiers are
// only valid within a single time slot.
type InterAreaAgent struct {
	name string
	fee  float64

	up   *engine
	down *engine

	log zerolog.Logger
}

// New creates an agent named after the boundary it bridges. feeFraction is
// the forwarding fee: offers crossing the boundary are marked up by it in
// either direction, which is the agent's spread.
func New(name string, lower, upper *market.Market, feeFraction float64) *InterAreaAgent {
	a := &InterAreaAgent{
		name: name,
		fee:  feeFraction,
		log:  log.With().Str("agent", name).Logger(),
	}
	a.up = newEngine(a.name, "up", feeFraction)
	a.down = newEngine(a.name, "down", feeFraction)
	a.Rebind(lower, upper)
	return a
}

// Name is the trading identity the agent uses in both markets.
func (a *InterAreaAgent) Name() string { return a.name }

// Rebind attaches the agent to a fresh market pair at a market cycle. All
// order mappings are dropped; only configuration survives the slot boundary.
func (a *InterAreaAgent) Rebind(lower, upper *market.Market) {
	a.up.rebind(lower, upper)
	a.down.rebind(upper, lower)
}
