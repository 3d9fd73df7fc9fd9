package strategy

import "gridsim/internal/market"

// StorageParams configure a battery that arbitrages between slots: charge
// when energy is cheap, re-offer the stored energy at a margin later.
type StorageParams struct {
	// CapacityKWh bounds the stored energy.
	CapacityKWh float64
	// MaxBuyUnitPrice is the highest unit price worth storing.
	MaxBuyUnitPrice float64
	// SellMarginFraction marks the resale price up over the average
	// acquisition cost, e.g. 0.2 for +20%.
	SellMarginFraction float64
	// InitialChargeKWh seeds the battery at activation.
	InitialChargeKWh float64
}

// Storage buys under-priced offers during the slot and posts the stored
// energy as an offer into the next slot's market.
type Storage struct {
	*Base
	params StorageParams

	charge       float64
	costOfCharge float64
	sellOfferID  string
}

func NewStorage(name string, params StorageParams) *Storage {
	return &Storage{Base: NewBase(name), params: params}
}

func (s *Storage) OnActivate(Context) error {
	s.charge = s.params.InitialChargeKWh
	return nil
}

// avgCost is the unit price the current charge was acquired for.
func (s *Storage) avgCost() float64 {
	if s.charge == 0 {
		return 0
	}
	return s.costOfCharge / s.charge
}

func (s *Storage) OnMarketCycle(ctx Context) {
	s.sellOfferID = ""
	if !s.Enabled() || s.charge <= 0 {
		return
	}
	m := ctx.Market()
	if m == nil {
		return
	}
	unit := s.avgCost() * (1 + s.params.SellMarginFraction)
	offer, err := m.Offer(s.charge, s.charge*unit, s.Name())
	if err != nil {
		s.Log().Warn().Err(err).Msg("posting storage offer failed")
		return
	}
	s.sellOfferID = offer.ID
}

func (s *Storage) OnTick(ctx Context) {
	if !s.Enabled() {
		return
	}
	m := ctx.Market()
	if m == nil {
		return
	}
	room := s.params.CapacityKWh - s.charge
	for _, offer := range m.CheapestOffers() {
		if room <= 0 {
			return
		}
		if offer.Seller == s.Name() || offer.UnitPrice() > s.params.MaxBuyUnitPrice {
			continue
		}
		energy := offer.Energy
		if energy > room {
			energy = room
		}
		if trade, ok := s.acceptOffer(m, offer.ID, energy); ok {
			s.charge += trade.Energy
			s.costOfCharge += trade.Price
			room -= trade.Energy
		}
	}
}

func (s *Storage) OnTrade(_ Context, _ *market.Market, trade *market.Trade) {
	if trade.Seller != s.Name() {
		return
	}
	// Stored energy left the battery through the standing sell offer.
	sold := trade.Energy
	if sold > s.charge {
		sold = s.charge
	}
	s.costOfCharge -= s.avgCost() * sold
	s.charge -= sold
	if trade.Residual != nil {
		s.sellOfferID = trade.Residual.ID
	} else if trade.Offer != nil && trade.Offer.ID == s.sellOfferID {
		s.sellOfferID = ""
	}
}

func (s *Storage) OnOfferChanged(_ Context, _ *market.Market, oldOffer, newOffer *market.Offer) {
	if oldOffer.ID == s.sellOfferID {
		s.sellOfferID = newOffer.ID
	}
}
