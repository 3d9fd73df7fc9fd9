package strategy

import (
	"time"

	"gridsim/internal/market"
)

// CommercialProducerParams configure a producer with effectively unlimited
// supply at a fixed unit price.
type CommercialProducerParams struct {
	// EnergyRate is the unit sell price.
	EnergyRate float64
	// EnergyPerSlot is the energy offered into every slot.
	EnergyPerSlot float64
	// BalancingEnergyPerSlot, if positive, is additionally offered into the
	// balancing market each slot at BalancingRate.
	BalancingEnergyPerSlot float64
	// BalancingRate is the unit price for balancing offers. Defaults to
	// EnergyRate when zero.
	BalancingRate float64
}

// CommercialProducer posts a standing offer into every new market at a fixed
// energy rate, including the future books a lookahead run opens ahead of the
// spot slot. It is the price anchor of a simulation: everything else trades
// below its rate.
type CommercialProducer struct {
	*Base
	params CommercialProducerParams

	// offered tracks the slots already holding this producer's standing
	// offer, so a future book is not topped up again on promotion to spot.
	offered map[time.Time]bool
}

func NewCommercialProducer(name string, params CommercialProducerParams) *CommercialProducer {
	if params.BalancingRate == 0 {
		params.BalancingRate = params.EnergyRate
	}
	return &CommercialProducer{
		Base:    NewBase(name),
		params:  params,
		offered: make(map[time.Time]bool),
	}
}

func (s *CommercialProducer) OnMarketCycle(ctx Context) {
	if !s.Enabled() {
		return
	}
	m := ctx.Market()
	if m == nil {
		return
	}
	s.ensureOffer(m)
	for _, fm := range ctx.FutureMarkets() {
		s.ensureOffer(fm)
	}
}

func (s *CommercialProducer) ensureOffer(m *market.Market) {
	if s.offered[m.TimeSlot] {
		return
	}
	e := s.params.EnergyPerSlot
	if _, err := m.Offer(e, e*s.params.EnergyRate, s.Name()); err != nil {
		s.Log().Warn().Err(err).Msg("posting commercial offer failed")
		return
	}
	s.offered[m.TimeSlot] = true
}

func (s *CommercialProducer) OnBalancingMarketCycle(ctx Context) {
	if !s.Enabled() || s.params.BalancingEnergyPerSlot <= 0 {
		return
	}
	bm := ctx.BalancingMarket()
	if bm == nil {
		return
	}
	e := s.params.BalancingEnergyPerSlot
	if _, err := bm.Offer(e, e*s.params.BalancingRate, s.Name()); err != nil {
		s.Log().Warn().Err(err).Msg("posting balancing offer failed")
	}
}
