package market

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gridsim/internal/ledger"
)

// energyEps absorbs float drift when deciding whether an accept consumes an
// offer fully.
const energyEps = 1e-9

// Market owns the offers and trades of exactly one time slot. It is
// exclusively owned by its area while open; all operations run strictly
// sequentially within the tick that triggers them, so no locking is needed.
// After Close it is shared read-only.
type Market struct {
	TimeSlot time.Time
	Area     string

	offers       map[string]*Offer
	trades       []*Trade
	tradedEnergy map[string]float64
	open         bool
	seq          uint64

	// bids is nil for one-sided markets; NewTwoSidedMarket allocates it
	// together with the clearing policy.
	bids     map[string]*Bid
	clearing ClearingPolicy

	listeners  []Listener
	settlement ledger.Ledger
	extRefs    map[string]string

	log zerolog.Logger
}

// NewMarket creates an open one-sided market for the given area and slot.
func NewMarket(area string, slot time.Time) *Market {
	return &Market{
		TimeSlot:     slot,
		Area:         area,
		offers:       make(map[string]*Offer),
		tradedEnergy: make(map[string]float64),
		open:         true,
		extRefs:      make(map[string]string),
		log: log.With().
			Str("market", area).
			Time("slot", slot).
			Logger(),
	}
}

// SetSettlement attaches an optional settlement side channel. Settlement
// failures are logged and never affect the in-memory book.
func (m *Market) SetSettlement(l ledger.Ledger) { m.settlement = l }

// AddListener subscribes to this market's lifecycle events.
func (m *Market) AddListener(l Listener) {
	m.listeners = append(m.listeners, l)
}

func (m *Market) notify(ev Event) {
	ev.Market = m
	for _, l := range m.listeners {
		l(ev)
	}
}

// IsOpen reports whether the market still accepts mutations.
func (m *Market) IsOpen() bool { return m.open }

// TwoSided reports whether the market carries a bid book.
func (m *Market) TwoSided() bool { return m.bids != nil }

// Close freezes the book. The market is archived by its area afterwards and
// must never be mutated again.
func (m *Market) Close() { m.open = false }

// Offer appends a sell order to the open book. Matching is buyer-initiated,
// so submitting has no matching side effect.
func (m *Market) Offer(energy, price float64, seller string) (*Offer, error) {
	if !m.open {
		return nil, ErrMarketClosed
	}
	if energy <= 0 || price < 0 {
		return nil, ErrInvalidOrder
	}
	m.seq++
	o := &Offer{
		ID:       uuid.New().String(),
		Energy:   energy,
		Price:    price,
		Seller:   seller,
		TimeSlot: m.TimeSlot,
		seq:      m.seq,
	}
	m.offers[o.ID] = o
	m.log.Debug().Stringer("offer", o).Msg("offer submitted")
	m.notify(Event{Type: EventOffer, Offer: o})
	if m.settlement != nil {
		ref, err := m.settlement.RecordOffer(context.Background(), energy, price, seller)
		if err != nil {
			m.log.Warn().Err(err).Msg("settlement: record offer failed")
		} else {
			m.extRefs[o.ID] = ref
		}
	}
	return o, nil
}

// DeleteOffer removes an open offer. Returns ErrNotFound if the offer was
// already matched or never existed; callers tolerate that silently.
func (m *Market) DeleteOffer(id string) error {
	if !m.open {
		return ErrMarketClosed
	}
	o, ok := m.offers[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.offers, id)
	m.log.Debug().Stringer("offer", o).Msg("offer deleted")
	m.notify(Event{Type: EventOfferDeleted, Offer: o})
	if m.settlement != nil {
		if ref, ok := m.extRefs[id]; ok {
			delete(m.extRefs, id)
			if err := m.settlement.CancelOffer(context.Background(), ref); err != nil {
				m.log.Warn().Err(err).Msg("settlement: cancel offer failed")
			}
		}
	}
	return nil
}

// AcceptOffer executes a buy against an open offer. Accepting the full
// remaining energy consumes the offer; accepting less replaces it with a
// residual offer under linear proportional re-pricing and fires OFFER_CHANGED
// before the TRADE notification.
func (m *Market) AcceptOffer(id, buyer string, energy float64) (*Trade, error) {
	if !m.open {
		return nil, ErrMarketClosed
	}
	if energy <= 0 {
		return nil, ErrInvalidOrder
	}
	offer, ok := m.offers[id]
	if !ok {
		return nil, &MarketError{Op: "accept offer", Err: ErrNotFound}
	}
	if energy > offer.Energy+energyEps {
		return nil, &MarketError{Op: "accept offer", Err: errors.New("energy exceeds remaining offer energy")}
	}
	delete(m.offers, id)

	var residual *Offer
	tradeEnergy := energy
	tradePrice := offer.Price
	if energy < offer.Energy-energyEps {
		remaining := offer.Energy - energy
		residual = &Offer{
			ID:       uuid.New().String(),
			Energy:   remaining,
			Price:    offer.Price * remaining / offer.Energy,
			Seller:   offer.Seller,
			TimeSlot: m.TimeSlot,
			seq:      offer.seq,
		}
		m.offers[residual.ID] = residual
		tradePrice = offer.Price * energy / offer.Energy
		m.notify(Event{Type: EventOfferChanged, ExistingOffer: offer, NewOffer: residual})
	} else {
		tradeEnergy = offer.Energy
	}

	trade := &Trade{
		ID:       uuid.New().String(),
		Offer:    offer,
		Seller:   offer.Seller,
		Buyer:    buyer,
		Energy:   tradeEnergy,
		Price:    tradePrice,
		TimeSlot: m.TimeSlot,
		Residual: residual,
	}
	m.recordTrade(trade)
	m.log.Debug().Stringer("trade", trade).Msg("offer accepted")
	m.notify(Event{Type: EventTrade, Trade: trade})
	if m.settlement != nil {
		ref := m.extRefs[id]
		delete(m.extRefs, id)
		if residual != nil && ref != "" {
			m.extRefs[residual.ID] = ref
		}
		if _, err := m.settlement.RecordTrade(context.Background(), ref, tradeEnergy, buyer); err != nil {
			m.log.Warn().Err(err).Msg("settlement: record trade failed")
		}
	}
	return trade, nil
}

func (m *Market) recordTrade(t *Trade) {
	m.trades = append(m.trades, t)
	m.tradedEnergy[t.Seller] += t.Energy
	m.tradedEnergy[t.Buyer] -= t.Energy
}

// FindOffer returns the open offer with the given id, or nil.
func (m *Market) FindOffer(id string) *Offer { return m.offers[id] }

// OfferCount returns the number of open offers.
func (m *Market) OfferCount() int { return len(m.offers) }

// CheapestOffers returns the open offers sorted ascending by unit price,
// ties broken by submission order. The slice is a snapshot.
func (m *Market) CheapestOffers() []*Offer {
	out := make([]*Offer, 0, len(m.offers))
	for _, o := range m.offers {
		out = append(out, o)
	}
	sortOffers(out)
	return out
}

// Trades returns the append-only trade log. Callers must not modify it.
func (m *Market) Trades() []*Trade { return m.trades }

// TradeVolume returns the total traded energy of this market.
func (m *Market) TradeVolume() float64 {
	var sum float64
	for _, t := range m.trades {
		sum += t.Energy
	}
	return sum
}

// TradedEnergy returns the signed net energy traded by name in this market:
// positive for net sellers, negative for net buyers.
func (m *Market) TradedEnergy(name string) float64 { return m.tradedEnergy[name] }

// AvgTradePrice returns the energy-weighted average unit price over all
// trades, or 0 for an empty trade log.
func (m *Market) AvgTradePrice() float64 {
	var price, energy float64
	for _, t := range m.trades {
		price += t.Price
		energy += t.Energy
	}
	if energy == 0 {
		return 0
	}
	return price / energy
}

// MinTradePrice returns the lowest unit price traded, or 0 without trades.
func (m *Market) MinTradePrice() float64 {
	min := 0.0
	for i, t := range m.trades {
		p := unitPrice(t)
		if i == 0 || p < min {
			min = p
		}
	}
	return min
}

// MaxTradePrice returns the highest unit price traded, or 0 without trades.
func (m *Market) MaxTradePrice() float64 {
	max := 0.0
	for _, t := range m.trades {
		if p := unitPrice(t); p > max {
			max = p
		}
	}
	return max
}

func unitPrice(t *Trade) float64 {
	if t.Energy == 0 {
		return 0
	}
	return t.Price / t.Energy
}
