package market

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ClearingPolicy selects the unit clearing price for a matched offer/bid
// pair. It is a property of the market type, not of the matching algorithm.
type ClearingPolicy int

const (
	// ClearingMidpoint prices a match at the midpoint of offer and bid unit
	// prices.
	ClearingMidpoint ClearingPolicy = iota
	// ClearingOfferPrice prices a match at the offer's unit price
	// (pay-as-offered).
	ClearingOfferPrice
)

// NewTwoSidedMarket creates an open market that additionally carries a bid
// book and clears crossing orders with the given clearing-price policy.
func NewTwoSidedMarket(area string, slot time.Time, clearing ClearingPolicy) *Market {
	m := NewMarket(area, slot)
	m.bids = make(map[string]*Bid)
	m.clearing = clearing
	return m
}

// Bid appends a buy order to the open book. Matching happens in MatchBids,
// or through an explicit AcceptBid.
func (m *Market) Bid(energy, price float64, buyer string) (*Bid, error) {
	if !m.open {
		return nil, ErrMarketClosed
	}
	if m.bids == nil {
		return nil, ErrOneSided
	}
	if energy <= 0 || price < 0 {
		return nil, ErrInvalidOrder
	}
	m.seq++
	b := &Bid{
		ID:       uuid.New().String(),
		Energy:   energy,
		Price:    price,
		Buyer:    buyer,
		TimeSlot: m.TimeSlot,
		seq:      m.seq,
	}
	m.bids[b.ID] = b
	m.log.Debug().Stringer("bid", b).Msg("bid submitted")
	m.notify(Event{Type: EventBid, Bid: b})
	return b, nil
}

// DeleteBid removes an open bid, or returns ErrNotFound if it already
// matched or never existed.
func (m *Market) DeleteBid(id string) error {
	if !m.open {
		return ErrMarketClosed
	}
	b, ok := m.bids[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.bids, id)
	m.notify(Event{Type: EventBidDeleted, Bid: b})
	return nil
}

// FindBid returns the open bid with the given id, or nil.
func (m *Market) FindBid(id string) *Bid { return m.bids[id] }

// BidCount returns the number of open bids.
func (m *Market) BidCount() int { return len(m.bids) }

// HighestBids returns the open bids sorted descending by unit price, ties
// broken by submission order. The slice is a snapshot.
func (m *Market) HighestBids() []*Bid {
	out := make([]*Bid, 0, len(m.bids))
	for _, b := range m.bids {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return bidBetter(out[i], out[j]) })
	return out
}

// AcceptBid executes a sell against an open bid, the buy-side counterpart of
// AcceptOffer. The trade settles at the bid's unit price; a partial accept
// replaces the bid with a residual one and fires BID_CHANGED before the
// trade notifications.
func (m *Market) AcceptBid(id, seller string, energy float64) (*Trade, error) {
	if !m.open {
		return nil, ErrMarketClosed
	}
	if energy <= 0 {
		return nil, ErrInvalidOrder
	}
	bid, ok := m.bids[id]
	if !ok {
		return nil, &MarketError{Op: "accept bid", Err: ErrNotFound}
	}
	if energy > bid.Energy+energyEps {
		return nil, &MarketError{Op: "accept bid", Err: errors.New("energy exceeds remaining bid energy")}
	}
	delete(m.bids, id)

	var residual *Bid
	tradeEnergy := energy
	tradePrice := bid.Price
	if energy < bid.Energy-energyEps {
		remaining := bid.Energy - energy
		residual = &Bid{
			ID:       uuid.New().String(),
			Energy:   remaining,
			Price:    bid.Price * remaining / bid.Energy,
			Buyer:    bid.Buyer,
			TimeSlot: m.TimeSlot,
			seq:      bid.seq,
		}
		m.bids[residual.ID] = residual
		tradePrice = bid.Price * energy / bid.Energy
		m.notify(Event{Type: EventBidChanged, ExistingBid: bid, NewBid: residual})
	} else {
		tradeEnergy = bid.Energy
	}

	trade := &Trade{
		ID:          uuid.New().String(),
		Bid:         bid,
		Seller:      seller,
		Buyer:       bid.Buyer,
		Energy:      tradeEnergy,
		Price:       tradePrice,
		TimeSlot:    m.TimeSlot,
		ResidualBid: residual,
	}
	m.recordTrade(trade)
	m.log.Debug().Stringer("trade", trade).Msg("bid accepted")
	m.notify(Event{Type: EventBidTraded, Trade: trade})
	m.notify(Event{Type: EventTrade, Trade: trade})
	return trade, nil
}

// MatchBids clears all crossing bid/offer pairs. Orders match in price-time
// priority: lowest offer unit price against highest bid unit price, equal
// prices in submission order. Partial fills follow the same residual
// replacement rule as AcceptOffer, so a re-run over the same book yields an
// identical trade sequence.
func (m *Market) MatchBids() ([]*Trade, error) {
	if !m.open {
		return nil, ErrMarketClosed
	}
	if m.bids == nil {
		return nil, ErrOneSided
	}
	var cleared []*Trade
	for {
		offer := m.bestOffer()
		bid := m.bestBid()
		if offer == nil || bid == nil || bid.UnitPrice() < offer.UnitPrice()-energyEps {
			break
		}
		trade, err := m.matchPair(offer, bid)
		if err != nil {
			return cleared, err
		}
		cleared = append(cleared, trade)
	}
	return cleared, nil
}

func (m *Market) matchPair(offer *Offer, bid *Bid) (*Trade, error) {
	energy := offer.Energy
	if bid.Energy < energy {
		energy = bid.Energy
	}
	clearingUnit := offer.UnitPrice()
	if m.clearing == ClearingMidpoint {
		clearingUnit = (offer.UnitPrice() + bid.UnitPrice()) / 2
	}

	// Consume the bid side first so the trade references already-final state.
	delete(m.bids, bid.ID)
	var residualBid *Bid
	if bid.Energy > energy+energyEps {
		remaining := bid.Energy - energy
		residualBid = &Bid{
			ID:       uuid.New().String(),
			Energy:   remaining,
			Price:    bid.Price * remaining / bid.Energy,
			Buyer:    bid.Buyer,
			TimeSlot: m.TimeSlot,
			seq:      bid.seq,
		}
		m.bids[residualBid.ID] = residualBid
		m.notify(Event{Type: EventBidChanged, ExistingBid: bid, NewBid: residualBid})
	}

	delete(m.offers, offer.ID)
	var residual *Offer
	if offer.Energy > energy+energyEps {
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
		m.notify(Event{Type: EventOfferChanged, ExistingOffer: offer, NewOffer: residual})
	}

	trade := &Trade{
		ID:          uuid.New().String(),
		Offer:       offer,
		Bid:         bid,
		Seller:      offer.Seller,
		Buyer:       bid.Buyer,
		Energy:      energy,
		Price:       clearingUnit * energy,
		TimeSlot:    m.TimeSlot,
		Residual:    residual,
		ResidualBid: residualBid,
	}
	m.recordTrade(trade)
	m.log.Debug().Stringer("trade", trade).Msg("bid matched")
	m.notify(Event{Type: EventBidTraded, Trade: trade})
	m.notify(Event{Type: EventTrade, Trade: trade})
	return trade, nil
}

func (m *Market) bestOffer() *Offer {
	var best *Offer
	for _, o := range m.offers {
		if best == nil || offerLess(o, best) {
			best = o
		}
	}
	return best
}

func (m *Market) bestBid() *Bid {
	var best *Bid
	for _, b := range m.bids {
		if best == nil || bidBetter(b, best) {
			best = b
		}
	}
	return best
}

func sortOffers(offers []*Offer) {
	sort.Slice(offers, func(i, j int) bool { return offerLess(offers[i], offers[j]) })
}

func offerLess(a, b *Offer) bool {
	ap, bp := a.UnitPrice(), b.UnitPrice()
	if ap != bp {
		return ap < bp
	}
	return a.seq < b.seq
}

func bidBetter(a, b *Bid) bool {
	ap, bp := a.UnitPrice(), b.UnitPrice()
	if ap != bp {
		return ap > bp
	}
	return a.seq < b.seq
}
