package area

import (
	"math/rand"
	"time"

	"gridsim/internal/market"
	"gridsim/internal/strategy"
)

// areaContext adapts an area to the strategy.Context interface. Leaf areas
// trade in their parent's markets, so the market accessors climb one level.
type areaContext struct {
	area *Area
}

func (a *Area) strategyContext() strategy.Context { return areaContext{area: a} }

func (c areaContext) ActorName() string { return c.area.Name }

func (c areaContext) Market() *market.Market {
	if c.area.parent == nil {
		return nil
	}
	return c.area.parent.CurrentMarket()
}

func (c areaContext) FutureMarkets() []*market.Market {
	if c.area.parent == nil {
		return nil
	}
	return c.area.parent.FutureMarkets()
}

func (c areaContext) BalancingMarket() *market.Market {
	if c.area.parent == nil {
		return nil
	}
	return c.area.parent.CurrentBalancingMarket()
}

func (c areaContext) Rand() *rand.Rand { return c.area.clock.Rand }

func (c areaContext) Slot() time.Time { return c.area.clock.Slot }

func (c areaContext) Tick() int { return c.area.clock.Tick }

func (c areaContext) TicksPerSlot() int { return c.area.clock.TicksPerSlot }
