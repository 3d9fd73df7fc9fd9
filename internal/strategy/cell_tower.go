package strategy

// CellTowerLoad is a Load with mandatory uptime: its demand represents
// telecom infrastructure, so the price ramp is skipped and the full maximum
// applies from the first tick. The distinct type also drives area
// classification in reporting.
type CellTowerLoad struct {
	*Load
}

func NewCellTowerLoad(name string, params LoadParams) *CellTowerLoad {
	return &CellTowerLoad{Load: NewLoad(name, params)}
}

func (s *CellTowerLoad) OnTick(ctx Context) {
	if !s.Enabled() {
		return
	}
	m := ctx.Market()
	if m == nil {
		return
	}
	if m.TwoSided() {
		// Mandatory uptime: bid the full maximum from the first tick.
		s.updateBid(m, s.params.MaxUnitPrice)
		return
	}
	need := s.params.EnergyPerSlot - s.bought
	for _, offer := range m.CheapestOffers() {
		if need <= 0 {
			return
		}
		if offer.Seller == s.Name() || offer.UnitPrice() > s.params.MaxUnitPrice {
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
