// Package strategy contains the trading behaviors attached to leaf areas.
// The simulation core only depends on the Strategy interface; everything a
// behavior needs from its surrounding area arrives through Context.
package strategy

import (
	"math/rand"
	"time"

	"gridsim/internal/market"
)

// Context is the view a strategy gets of the area it trades for. The market
// accessors return the markets of the area's parent, which is where a leaf
// participant trades.
type Context interface {
	// ActorName is the name trades are attributed to.
	ActorName() string
	// Market returns the current primary market, or nil before the first
	// market cycle.
	Market() *market.Market
	// FutureMarkets returns the books already open for upcoming slots, in
	// slot order. Empty unless the run opens more than one slot ahead.
	FutureMarkets() []*market.Market
	// BalancingMarket returns the current balancing market, or nil.
	BalancingMarket() *market.Market
	// Rand is the simulation-owned deterministic source.
	Rand() *rand.Rand
	// Slot is the currently open time slot.
	Slot() time.Time
	// Tick is the tick index within the current slot.
	Tick() int
	// TicksPerSlot is the number of ticks in every slot.
	TicksPerSlot() int
}

// Strategy is the contract between the simulation core and a trading
// behavior. The core invokes each method at most once per corresponding
// clock event, in the order
// ACTIVATE -> (MARKET_CYCLE -> BALANCING_MARKET_CYCLE -> TICK*)*.
type Strategy interface {
	Name() string

	// OnActivate runs once before any tick. A returned error is a
	// configuration error and aborts simulation startup.
	OnActivate(ctx Context) error

	OnMarketCycle(ctx Context)
	OnBalancingMarketCycle(ctx Context)
	OnTick(ctx Context)

	// OnTrade fires for every trade in the area's primary market, including
	// trades the strategy did not participate in.
	OnTrade(ctx Context, m *market.Market, trade *market.Trade)

	// OnOfferChanged fires when a partial fill replaced oldOffer with
	// newOffer in the given market.
	OnOfferChanged(ctx Context, m *market.Market, oldOffer, newOffer *market.Offer)
}
