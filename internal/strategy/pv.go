package strategy

import (
	"math"

	"gridsim/internal/market"
)

// PVParams configure a photovoltaic producer whose ask price decays over the
// slot's ticks toward a floor, approximating convergence to the clearing
// price.
type PVParams struct {
	// PeakEnergyPerSlot is the production at solar noon.
	PeakEnergyPerSlot float64
	// InitialUnitPrice is the ask at the first tick of a slot.
	InitialUnitPrice float64
	// FinalUnitPrice is the floor reached at the last tick.
	FinalUnitPrice float64
	// Risk in [0,100] shifts how quickly the price decays; 100 drops to the
	// floor halfway through the slot.
	Risk float64
}

// PV produces slot-dependent energy and re-prices its standing offer every
// tick.
type PV struct {
	*Base
	params PVParams

	offerID   string
	remaining float64
}

func NewPV(name string, params PVParams) *PV {
	return &PV{Base: NewBase(name), params: params}
}

// production follows a half-sine day profile: zero before 06:00 and after
// 18:00, peak at noon.
func (s *PV) production(ctx Context) float64 {
	h := float64(ctx.Slot().Hour()) + float64(ctx.Slot().Minute())/60
	if h < 6 || h > 18 {
		return 0
	}
	return s.params.PeakEnergyPerSlot * math.Sin((h-6)/12*math.Pi)
}

func (s *PV) OnMarketCycle(ctx Context) {
	s.offerID = ""
	s.remaining = s.production(ctx)
	if !s.Enabled() || s.remaining <= 0 {
		return
	}
	m := ctx.Market()
	if m == nil {
		return
	}
	s.post(m, s.params.InitialUnitPrice)
}

// OnTick withdraws the standing offer and re-posts it at the decayed price.
// A vanished offer means it traded since the last tick; the remainder, if
// any, was re-tracked through OnOfferChanged.
func (s *PV) OnTick(ctx Context) {
	if !s.Enabled() || s.remaining <= 0 || s.offerID == "" {
		return
	}
	m := ctx.Market()
	if m == nil {
		return
	}
	price := s.decayedUnitPrice(ctx)
	if err := m.DeleteOffer(s.offerID); err != nil {
		if !market.Recoverable(err) {
			s.Log().Error().Err(err).Msg("withdrawing pv offer failed")
		}
		return
	}
	s.post(m, price)
}

func (s *PV) post(m *market.Market, unitPrice float64) {
	offer, err := m.Offer(s.remaining, s.remaining*unitPrice, s.Name())
	if err != nil {
		s.Log().Warn().Err(err).Msg("posting pv offer failed")
		return
	}
	s.offerID = offer.ID
}

func (s *PV) decayedUnitPrice(ctx Context) float64 {
	total := ctx.TicksPerSlot()
	if total <= 1 {
		return s.params.FinalUnitPrice
	}
	frac := float64(ctx.Tick()) / float64(total-1)
	if s.params.Risk > 0 {
		frac = math.Min(1, frac*(1+s.params.Risk/100))
	}
	return s.params.InitialUnitPrice - (s.params.InitialUnitPrice-s.params.FinalUnitPrice)*frac
}

func (s *PV) OnTrade(_ Context, _ *market.Market, trade *market.Trade) {
	if trade.Seller != s.Name() {
		return
	}
	s.remaining -= trade.Energy
	if trade.Residual != nil {
		s.offerID = trade.Residual.ID
	} else if trade.Offer != nil && trade.Offer.ID == s.offerID {
		s.offerID = ""
	}
}

func (s *PV) OnOfferChanged(_ Context, _ *market.Market, oldOffer, newOffer *market.Offer) {
	if oldOffer.ID == s.offerID {
		s.offerID = newOffer.ID
	}
}
