// Package area implements the simulation hierarchy: a tree of areas, each
// non-leaf area owning a sequence of time-sliced markets, with inter-area
// agents bridging every parent/child market boundary. The package dispatches
// the clock's lifecycle events through the tree in a deterministic order.
package area

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gridsim/internal/agent"
	"gridsim/internal/ledger"
	"gridsim/internal/market"
	"gridsim/internal/strategy"
)

// TickState is the shared clock view handed to every area at activation.
// The simulation owns and advances it; areas and strategies only read it.
// Beyond the clock proper it carries the run-wide market settings every
// area needs when opening books.
type TickState struct {
	Slot         time.Time
	Tick         int
	TicksPerSlot int
	Rand         *rand.Rand

	// SlotLength spaces the future slots opened ahead of the spot market.
	SlotLength time.Duration
	// MarketCount is the number of concurrently open slots per area: the
	// spot market plus MarketCount-1 future books. Values below 1 mean
	// spot only.
	MarketCount int
	// TwoSided opens every primary market with a bid book cleared each
	// tick under Clearing.
	TwoSided bool
	Clearing market.ClearingPolicy
}

// Area is one node of the simulation hierarchy. Topology is immutable after
// construction; only market and strategy state changes across ticks.
type Area struct {
	Name string
	ID   string

	parent   *Area
	Children []*Area
	Strategy strategy.Strategy

	// TransferFee is the forwarding fee fraction of the agent bridging this
	// area's market to its parent's.
	TransferFee float64

	mu         sync.RWMutex
	current    *market.Market
	future     map[time.Time]*market.Market
	past       map[time.Time]*market.Market
	currentBal *market.Market
	pastBal    map[time.Time]*market.Market

	iaa        *agent.InterAreaAgent
	settlement ledger.Ledger
	clock      *TickState
	active     bool

	log zerolog.Logger
}

// New builds an area node. A node with children is a market owner; a node
// with a strategy is a trader in its parent's market.
func New(name string, strat strategy.Strategy, children ...*Area) *Area {
	a := &Area{
		Name:     name,
		ID:       uuid.New().String(),
		Children: children,
		Strategy: strat,
		future:   make(map[time.Time]*market.Market),
		past:     make(map[time.Time]*market.Market),
		pastBal:  make(map[time.Time]*market.Market),
		log:      log.With().Str("area", name).Logger(),
	}
	for _, c := range children {
		c.parent = a
	}
	return a
}

// Parent returns the owning area, nil for the root.
func (a *Area) Parent() *Area { return a.parent }

// IsLeaf reports whether the area has no children (and therefore no markets
// of its own).
func (a *Area) IsLeaf() bool { return len(a.Children) == 0 }

// SetSettlement attaches the optional settlement ledger; it is propagated to
// every market this subtree opens.
func (a *Area) SetSettlement(l ledger.Ledger) {
	a.settlement = l
	for _, c := range a.Children {
		c.SetSettlement(l)
	}
}

// Activate transitions the tree from UNINITIALIZED to ACTIVE, root to
// leaves, exactly once. Configuration errors found here abort simulation
// startup: correctness cannot be guaranteed afterwards.
func (a *Area) Activate(clock *TickState) error {
	if a.parent == nil {
		seen := make(map[string]bool)
		if err := a.checkNames(seen); err != nil {
			return err
		}
	}
	if a.active {
		return fmt.Errorf("area %q already active", a.Name)
	}
	if a.Strategy != nil && a.parent == nil {
		return fmt.Errorf("root area %q cannot carry a strategy: it has no parent market to trade in", a.Name)
	}
	if a.Strategy != nil && !a.IsLeaf() {
		return fmt.Errorf("area %q has both children and a strategy", a.Name)
	}
	a.clock = clock
	a.active = true
	if a.Strategy != nil {
		if err := a.Strategy.OnActivate(a.strategyContext()); err != nil {
			return fmt.Errorf("activate strategy of %q: %w", a.Name, err)
		}
	}
	for _, c := range a.Children {
		if err := c.Activate(clock); err != nil {
			return err
		}
	}
	a.log.Debug().Msg("area active")
	return nil
}

func (a *Area) checkNames(seen map[string]bool) error {
	if seen[a.Name] {
		return fmt.Errorf("duplicate area name %q in topology", a.Name)
	}
	seen[a.Name] = true
	for _, c := range a.Children {
		if err := c.checkNames(seen); err != nil {
			return err
		}
	}
	return nil
}

// MarketCycle rotates the primary markets of the whole subtree for a new
// slot. It runs in three phases so that every market an agent bridges
// already exists when the agent rebinds, and every agent listens before any
// strategy submits: open all markets, rebind all agents, then notify
// strategies.
func (a *Area) MarketCycle() {
	slot := a.clock.Slot
	a.cyclePrimaryMarkets(slot)
	a.rebindAgents()
	a.notifyMarketCycle()
	a.log.Debug().Time("slot", slot).Msg("market cycle complete")
}

func (a *Area) cyclePrimaryMarkets(slot time.Time) {
	if !a.IsLeaf() {
		a.mu.Lock()
		if a.current != nil {
			a.current.Close()
			a.past[a.current.TimeSlot] = a.current
		}
		// The new spot market is the future book opened for this slot in an
		// earlier cycle, if one exists; orders posted into it ahead of time
		// carry over.
		if promoted, ok := a.future[slot]; ok {
			delete(a.future, slot)
			a.current = promoted
		} else {
			a.current = a.newPrimaryMarket(slot)
		}
		for i := 1; i < a.clock.MarketCount; i++ {
			futureSlot := slot.Add(time.Duration(i) * a.clock.SlotLength)
			if _, ok := a.future[futureSlot]; !ok {
				a.future[futureSlot] = a.newPrimaryMarket(futureSlot)
			}
		}
		a.mu.Unlock()
	}
	for _, c := range a.Children {
		c.cyclePrimaryMarkets(slot)
	}
}

// newPrimaryMarket opens a book of the run's market type with settlement and
// event routing attached. Callers hold a.mu.
func (a *Area) newPrimaryMarket(slot time.Time) *market.Market {
	var m *market.Market
	if a.clock.TwoSided {
		m = market.NewTwoSidedMarket(a.Name, slot, a.clock.Clearing)
	} else {
		m = market.NewMarket(a.Name, slot)
	}
	if a.settlement != nil {
		m.SetSettlement(a.settlement)
	}
	m.AddListener(a.routeToStrategies)
	return m
}

func (a *Area) rebindAgents() {
	if !a.IsLeaf() && a.parent != nil {
		lower := a.CurrentMarket()
		upper := a.parent.CurrentMarket()
		if a.iaa == nil {
			a.iaa = agent.New("IAA "+a.Name, lower, upper, a.TransferFee)
		} else {
			a.iaa.Rebind(lower, upper)
		}
	}
	for _, c := range a.Children {
		c.rebindAgents()
	}
}

func (a *Area) notifyMarketCycle() {
	if a.Strategy != nil {
		a.Strategy.OnMarketCycle(a.strategyContext())
	}
	for _, c := range a.Children {
		c.notifyMarketCycle()
	}
}

// BalancingMarketCycle rotates the balancing-layer markets. It is
// dispatched after the primary cycle of the same slot.
func (a *Area) BalancingMarketCycle() {
	slot := a.clock.Slot
	a.cycleBalancingMarkets(slot)
	a.notifyBalancingMarketCycle()
}

func (a *Area) cycleBalancingMarkets(slot time.Time) {
	if !a.IsLeaf() {
		a.mu.Lock()
		if a.currentBal != nil {
			a.currentBal.Close()
			a.pastBal[a.currentBal.TimeSlot] = a.currentBal
		}
		a.currentBal = market.NewMarket(a.Name+" balancing", slot)
		a.mu.Unlock()
	}
	for _, c := range a.Children {
		c.cycleBalancingMarkets(slot)
	}
}

func (a *Area) notifyBalancingMarketCycle() {
	if a.Strategy != nil {
		a.Strategy.OnBalancingMarketCycle(a.strategyContext())
	}
	for _, c := range a.Children {
		c.notifyBalancingMarketCycle()
	}
}

// Shutdown closes and archives every open market in the subtree. Future
// books that never matured into a spot market are closed and discarded, so
// reporting only ever sees slots that actually traded. Called once at
// simulation end so the final slot is visible to reporting.
func (a *Area) Shutdown() {
	a.mu.Lock()
	if a.current != nil {
		a.current.Close()
		a.past[a.current.TimeSlot] = a.current
		a.current = nil
	}
	for slot, m := range a.future {
		m.Close()
		delete(a.future, slot)
	}
	if a.currentBal != nil {
		a.currentBal.Close()
		a.pastBal[a.currentBal.TimeSlot] = a.currentBal
		a.currentBal = nil
	}
	a.mu.Unlock()
	for _, c := range a.Children {
		c.Shutdown()
	}
}

// Tick gives every strategy the opportunity to act, then clears two-sided
// books. Both phases dispatch pre-order over the tree, which is
// deterministic for a fixed topology; ticks within one area never
// interleave.
func (a *Area) Tick() {
	a.notifyTick()
	a.clearMarkets()
}

func (a *Area) notifyTick() {
	if a.Strategy != nil {
		a.Strategy.OnTick(a.strategyContext())
	}
	for _, c := range a.Children {
		c.notifyTick()
	}
}

// clearMarkets runs the matching pass of every open two-sided spot market,
// once all strategies of the tick have posted their orders.
func (a *Area) clearMarkets() {
	if m := a.CurrentMarket(); m != nil && m.TwoSided() {
		if _, err := m.MatchBids(); err != nil {
			a.log.Error().Err(err).Msg("clearing market failed")
		}
	}
	for _, c := range a.Children {
		c.clearMarkets()
	}
}

// routeToStrategies fans market notifications out to the trading children
// of this area, which are the local participants of the market.
func (a *Area) routeToStrategies(ev market.Event) {
	switch ev.Type {
	case market.EventTrade:
		for _, c := range a.Children {
			if c.Strategy != nil {
				c.Strategy.OnTrade(c.strategyContext(), ev.Market, ev.Trade)
			}
		}
	case market.EventOfferChanged:
		for _, c := range a.Children {
			if c.Strategy != nil {
				c.Strategy.OnOfferChanged(c.strategyContext(), ev.Market, ev.ExistingOffer, ev.NewOffer)
			}
		}
	}
}

// CurrentMarket returns the open primary market, nil for leaves and before
// the first cycle.
func (a *Area) CurrentMarket() *market.Market {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// CurrentBalancingMarket returns the open balancing market, or nil.
func (a *Area) CurrentBalancingMarket() *market.Market {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentBal
}

// FutureMarkets returns the open future books beyond the spot market in
// slot order. Empty unless the run opens more than one slot ahead.
func (a *Area) FutureMarkets() []*market.Market {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*market.Market, 0, len(a.future))
	for _, m := range a.future {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSlot.Before(out[j].TimeSlot) })
	return out
}

// PastMarket returns the closed market of the given slot, or nil.
func (a *Area) PastMarket(slot time.Time) *market.Market {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.past[slot]
}

// PastSlots returns the archived slots in chronological order.
func (a *Area) PastSlots() []time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	slots := make([]time.Time, 0, len(a.past))
	for s := range a.past {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

// PastBalancingMarket returns the closed balancing market of a slot, or nil.
func (a *Area) PastBalancingMarket(slot time.Time) *market.Market {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pastBal[slot]
}

// Walk visits the subtree pre-order.
func (a *Area) Walk(fn func(*Area)) {
	fn(a)
	for _, c := range a.Children {
		c.Walk(fn)
	}
}

// FindArea resolves a dotted path like "grid.house-1.pv" starting at this
// area, or a bare name anywhere in the subtree.
func (a *Area) FindArea(name string) *Area {
	var found *Area
	a.Walk(func(n *Area) {
		if found == nil && n.Name == name {
			found = n
		}
	})
	return found
}
