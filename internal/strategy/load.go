package strategy

import "gridsim/internal/market"

// LoadParams configure a consumer that must cover a fixed demand per slot.
type LoadParams struct {
	// EnergyPerSlot is the demand to cover in every slot.
	EnergyPerSlot float64
	// MaxUnitPrice is the most the load will ever pay per unit. The
	// acceptable price ramps up linearly over the slot's ticks, so cheap
	// offers are taken early and expensive ones only near the slot close.
	MaxUnitPrice float64
}

// Load buys its per-slot demand from the cheapest acceptable offers. In a
// two-sided market it posts a bid for the open demand instead and lets the
// matching pass clear it.
type Load struct {
	*Base
	params LoadParams
	bought float64
	bidID  string
}

func NewLoad(name string, params LoadParams) *Load {
	return &Load{Base: NewBase(name), params: params}
}

func (s *Load) OnMarketCycle(Context) {
	s.bought = 0
	s.bidID = ""
}

func (s *Load) OnTick(ctx Context) {
	if !s.Enabled() {
		return
	}
	m := ctx.Market()
	if m == nil {
		return
	}
	if m.TwoSided() {
		s.updateBid(m, s.acceptableUnitPrice(ctx))
		return
	}
	need := s.params.EnergyPerSlot - s.bought
	if need <= 0 {
		return
	}
	limit := s.acceptableUnitPrice(ctx)
	for _, offer := range m.CheapestOffers() {
		if need <= 0 {
			return
		}
		if offer.Seller == s.Name() || offer.UnitPrice() > limit {
			continue
		}
		energy := offer.Energy
		if energy > need {
			energy = need
		}
		if trade, ok := s.acceptOffer(m, offer.ID, energy); ok {
			s.bought += trade.Energy
			need -= trade.Energy
		}
	}
}

// updateBid keeps a single standing bid for the open demand at the given
// unit price limit, replacing the previous tick's bid.
func (s *Load) updateBid(m *market.Market, limit float64) {
	if s.bidID != "" {
		if err := m.DeleteBid(s.bidID); err != nil && !market.Recoverable(err) {
			s.Log().Error().Err(err).Msg("withdrawing bid failed")
		}
		s.bidID = ""
	}
	need := s.params.EnergyPerSlot - s.bought
	if need <= 0 {
		return
	}
	bid, err := m.Bid(need, need*limit, s.Name())
	if err != nil {
		s.Log().Warn().Err(err).Msg("posting bid failed")
		return
	}
	s.bidID = bid.ID
}

// OnTrade tracks bid-side fills; one-sided purchases are already counted at
// the accept call.
func (s *Load) OnTrade(_ Context, _ *market.Market, trade *market.Trade) {
	if trade.Bid == nil || trade.Buyer != s.Name() {
		return
	}
	s.bought += trade.Energy
	if trade.Bid.ID != s.bidID {
		return
	}
	if trade.ResidualBid != nil {
		s.bidID = trade.ResidualBid.ID
	} else {
		s.bidID = ""
	}
}

// acceptableUnitPrice ramps from a fraction of MaxUnitPrice at the first
// tick to the full maximum at the last tick of the slot.
func (s *Load) acceptableUnitPrice(ctx Context) float64 {
	total := ctx.TicksPerSlot()
	if total <= 1 {
		return s.params.MaxUnitPrice
	}
	frac := float64(ctx.Tick()+1) / float64(total)
	return s.params.MaxUnitPrice * frac
}
