package strategy

import "gridsim/internal/market"

// BalancingTraderParams bound the secondary-market procurement policy.
type BalancingTraderParams struct {
	// NeedFraction of every primary trade's energy is procured from the
	// balancing market for grid regulation.
	NeedFraction float64
	// CapFraction of the primary market's total trading volume is the hard
	// per-slot purchase limit.
	CapFraction float64
}

// DefaultBalancingTraderParams are the standard regulation settings: buy 10%
// of traded volume, never more than 15% of it.
func DefaultBalancingTraderParams() BalancingTraderParams {
	return BalancingTraderParams{NeedFraction: 0.1, CapFraction: 0.15}
}

// BalancingTrader observes completed trades in the primary market and buys a
// bounded fraction of the traded volume from the balancing market's cheapest
// offers. Purchases beyond the cap or against vanished offers are skipped;
// both are expected, non-fatal conditions.
type BalancingTrader struct {
	*Base
	params BalancingTraderParams

	bought float64
	spent  float64
}

func NewBalancingTrader(name string, params BalancingTraderParams) *BalancingTrader {
	return &BalancingTrader{Base: NewBase(name), params: params}
}

// Bought reports the balancing energy procured in the current slot.
func (s *BalancingTrader) Bought() float64 { return s.bought }

func (s *BalancingTrader) OnMarketCycle(Context) {
	// Purchase bookkeeping does not survive the slot boundary. Missing
	// state therefore always reads as zero bought so far.
	s.bought, s.spent = 0, 0
}

func (s *BalancingTrader) OnTrade(ctx Context, m *market.Market, trade *market.Trade) {
	if !s.Enabled() || trade.Buyer == s.Name() {
		return
	}
	bm := ctx.BalancingMarket()
	if bm == nil {
		return
	}

	var need, totalVolume float64
	for _, t := range m.Trades() {
		if t.Buyer == s.Name() {
			continue
		}
		need += t.Energy * s.params.NeedFraction
		totalVolume += t.Energy
	}

	limit := totalVolume * s.params.CapFraction
	if s.bought >= limit {
		return
	}
	need -= s.bought
	if need <= 0 {
		return
	}

	for _, offer := range bm.CheapestOffers() {
		if offer.Seller == s.Name() {
			continue
		}
		if offer.Energy <= need {
			if trade, ok := s.acceptOffer(bm, offer.ID, offer.Energy); ok {
				s.bought += trade.Energy
				s.spent += trade.Price
				need -= trade.Energy
			}
			continue
		}
		// The offer is larger than the remaining need; take only as much as
		// still fits under the cap.
		room := limit - s.bought
		if room <= 0 {
			return
		}
		energy := need
		if energy > room {
			energy = room
		}
		if trade, ok := s.acceptOffer(bm, offer.ID, energy); ok {
			s.bought += trade.Energy
			s.spent += trade.Price
		}
		return
	}
}
