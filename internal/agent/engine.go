package agent

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gridsim/internal/market"
)

// pair links an original offer in the source market to its mirror in the
// target market.
type pair struct {
	source *market.Offer
	target *market.Offer
}

// bidPair is the buy-side counterpart of pair.
type bidPair struct {
	source *market.Bid
	target *market.Bid
}

// engine forwards orders in one direction: offers (and bids, when the
// markets are two-sided) submitted to src by a third party are mirrored into
// dst under the agent's name, and effects on the mirror are replayed against
// the original. Two engines, one per direction, make up an agent.
type engine struct {
	agent string
	fee   float64

	src *market.Market
	dst *market.Market

	// forwarded is keyed by both the source and the target offer id; both
	// keys point at the same pair. An id missing from the map means the
	// mirrored effect was already applied (or never existed), which is what
	// makes replays exactly-once.
	forwarded map[string]*pair

	// pendingResidual buffers the OFFER_CHANGED that precedes a TRADE on
	// the target side, so the counterpart accept can remap the residuals.
	pendingResidual map[string]*market.Offer

	// forwardedBids and pendingResidualBid are the bid-side counterparts,
	// used when the bridged markets are two-sided.
	forwardedBids      map[string]*bidPair
	pendingResidualBid map[string]*market.Bid

	log zerolog.Logger
}

func newEngine(agent, direction string, fee float64) *engine {
	return &engine{
		agent: agent,
		fee:   fee,
		log:   log.With().Str("agent", agent).Str("direction", direction).Logger(),
	}
}

// rebind points the engine at a new market pair and resets all per-slot
// state. Orders already standing in the source book, such as offers posted
// into the market while it was still a future slot, are forwarded
// immediately in priority order.
func (e *engine) rebind(src, dst *market.Market) {
	e.src = src
	e.dst = dst
	e.forwarded = make(map[string]*pair)
	e.pendingResidual = make(map[string]*market.Offer)
	e.forwardedBids = make(map[string]*bidPair)
	e.pendingResidualBid = make(map[string]*market.Bid)
	src.AddListener(e.onSourceEvent)
	dst.AddListener(e.onTargetEvent)
	for _, o := range src.CheapestOffers() {
		if o.Seller != e.agent {
			e.forward(o)
		}
	}
	for _, b := range src.HighestBids() {
		if b.Buyer != e.agent {
			e.forwardBid(b)
		}
	}
}

// forward mirrors a source offer into the target market with the fee markup
// and records the id pair.
func (e *engine) forward(o *market.Offer) {
	mirror, err := e.dst.Offer(o.Energy, o.Price*(1+e.fee), e.agent)
	if err != nil {
		e.log.Warn().Err(err).Stringer("offer", o).Msg("forwarding offer failed")
		return
	}
	p := &pair{source: o, target: mirror}
	e.forwarded[o.ID] = p
	e.forwarded[mirror.ID] = p
	e.log.Debug().Stringer("offer", o).Stringer("mirror", mirror).Msg("offer forwarded")
}

func (e *engine) unmap(p *pair) {
	delete(e.forwarded, p.source.ID)
	delete(e.forwarded, p.target.ID)
}

// forwardBid mirrors a source bid into the target market with the fee
// markdown and records the id pair. The markdown is the bid-side spread: the
// agent bids less upstream than the original buyer committed to.
func (e *engine) forwardBid(b *market.Bid) {
	mirror, err := e.dst.Bid(b.Energy, b.Price*(1-e.fee), e.agent)
	if err != nil {
		e.log.Warn().Err(err).Stringer("bid", b).Msg("forwarding bid failed")
		return
	}
	p := &bidPair{source: b, target: mirror}
	e.forwardedBids[b.ID] = p
	e.forwardedBids[mirror.ID] = p
	e.log.Debug().Stringer("bid", b).Stringer("mirror", mirror).Msg("bid forwarded")
}

func (e *engine) unmapBid(p *bidPair) {
	delete(e.forwardedBids, p.source.ID)
	delete(e.forwardedBids, p.target.ID)
}

// onSourceEvent reacts to the original side: new offers are mirrored,
// deletions and partial fills are replayed onto the mirror before the next
// matching pass can trade against stale liquidity.
func (e *engine) onSourceEvent(ev market.Event) {
	switch ev.Type {
	case market.EventOffer:
		o := ev.Offer
		if o.Seller == e.agent {
			// Our own forward from the opposite direction; mirroring it
			// back would bounce liquidity forever.
			return
		}
		if _, ok := e.forwarded[o.ID]; ok {
			return
		}
		e.forward(o)

	case market.EventOfferDeleted:
		p, ok := e.forwarded[ev.Offer.ID]
		if !ok || p.source.ID != ev.Offer.ID {
			return
		}
		e.unmap(p)
		if err := e.dst.DeleteOffer(p.target.ID); err != nil && !market.Recoverable(err) {
			e.log.Error().Err(err).Msg("deleting mirror failed")
		}

	case market.EventOfferChanged:
		// A third party partially consumed the original: replace the mirror
		// with one matching the residual. Partial fills the engine itself
		// caused are already unmapped and fall through here.
		p, ok := e.forwarded[ev.ExistingOffer.ID]
		if !ok || p.source.ID != ev.ExistingOffer.ID {
			return
		}
		e.unmap(p)
		if err := e.dst.DeleteOffer(p.target.ID); err != nil && !market.Recoverable(err) {
			e.log.Error().Err(err).Msg("replacing mirror failed")
		}
		e.forward(ev.NewOffer)

	case market.EventTrade:
		t := ev.Trade
		if t.Offer == nil || t.Buyer == e.agent || t.Residual != nil {
			// A pure bid-side trade, our own counterpart accept, or a
			// partial fill already handled through OFFER_CHANGED.
			return
		}
		p, ok := e.forwarded[t.Offer.ID]
		if !ok || p.source.ID != t.Offer.ID {
			return
		}
		e.unmap(p)
		if err := e.dst.DeleteOffer(p.target.ID); err != nil && !market.Recoverable(err) {
			e.log.Error().Err(err).Msg("withdrawing mirror after local trade failed")
		}

	case market.EventBid:
		b := ev.Bid
		if b.Buyer == e.agent {
			return
		}
		if _, ok := e.forwardedBids[b.ID]; ok {
			return
		}
		e.forwardBid(b)

	case market.EventBidDeleted:
		p, ok := e.forwardedBids[ev.Bid.ID]
		if !ok || p.source.ID != ev.Bid.ID {
			return
		}
		e.unmapBid(p)
		if err := e.dst.DeleteBid(p.target.ID); err != nil && !market.Recoverable(err) {
			e.log.Error().Err(err).Msg("deleting mirror bid failed")
		}

	case market.EventBidChanged:
		p, ok := e.forwardedBids[ev.ExistingBid.ID]
		if !ok || p.source.ID != ev.ExistingBid.ID {
			return
		}
		e.unmapBid(p)
		if err := e.dst.DeleteBid(p.target.ID); err != nil && !market.Recoverable(err) {
			e.log.Error().Err(err).Msg("replacing mirror bid failed")
		}
		e.forwardBid(ev.NewBid)

	case market.EventBidTraded:
		// A local match consumed the source bid. Partial fills arrive through
		// BID_CHANGED first; for a full fill the standing mirror bid has lost
		// its backing. Replay accepts unmap before trading, so they fall
		// through the lookup here.
		t := ev.Trade
		if t.ResidualBid != nil {
			return
		}
		p, ok := e.forwardedBids[t.Bid.ID]
		if !ok || p.source.ID != t.Bid.ID {
			return
		}
		e.unmapBid(p)
		if err := e.dst.DeleteBid(p.target.ID); err != nil && !market.Recoverable(err) {
			e.log.Error().Err(err).Msg("withdrawing mirror bid after local trade failed")
		}
	}
}

// onTargetEvent reacts to the mirror side: a trade against the mirror is
// replayed as an accept of the original for the same energy, exactly once.
func (e *engine) onTargetEvent(ev market.Event) {
	switch ev.Type {
	case market.EventOfferChanged:
		if p, ok := e.forwarded[ev.ExistingOffer.ID]; ok && p.target.ID == ev.ExistingOffer.ID {
			e.pendingResidual[ev.ExistingOffer.ID] = ev.NewOffer
		}

	case market.EventTrade:
		t := ev.Trade
		if t.Offer == nil {
			return
		}
		p, ok := e.forwarded[t.Offer.ID]
		if !ok || p.target.ID != t.Offer.ID {
			return
		}
		// Unmapping before the counterpart accept makes a duplicate
		// notification a no-op: consumed exactly once.
		e.unmap(p)
		residualMirror := e.pendingResidual[t.Offer.ID]
		delete(e.pendingResidual, t.Offer.ID)

		energy := t.Energy
		if energy > p.source.Energy {
			energy = p.source.Energy
		}
		srcTrade, err := e.src.AcceptOffer(p.source.ID, e.agent, energy)
		if err != nil {
			// The original vanished through an unrelated path. Drop the
			// forwarded effect; the mirror side has already traded and must
			// not be resurrected.
			if market.Recoverable(err) {
				e.log.Debug().Err(err).Msg("counterpart offer gone, dropping forwarded trade")
			} else {
				e.log.Error().Err(err).Msg("counterpart accept failed")
			}
			if residualMirror != nil {
				if derr := e.dst.DeleteOffer(residualMirror.ID); derr != nil && !market.Recoverable(derr) {
					e.log.Error().Err(derr).Msg("withdrawing orphaned residual mirror failed")
				}
			}
			return
		}
		e.log.Debug().Stringer("trade", srcTrade).Msg("trade forwarded to source market")

		switch {
		case residualMirror != nil && srcTrade.Residual != nil:
			np := &pair{source: srcTrade.Residual, target: residualMirror}
			e.forwarded[np.source.ID] = np
			e.forwarded[np.target.ID] = np
		case residualMirror != nil:
			// No source energy left to back the residual mirror.
			if derr := e.dst.DeleteOffer(residualMirror.ID); derr != nil && !market.Recoverable(derr) {
				e.log.Error().Err(derr).Msg("withdrawing unbacked residual mirror failed")
			}
		case srcTrade.Residual != nil:
			// Source leftover without a residual mirror: re-mirror it so the
			// remaining energy stays visible on the target side.
			e.forward(srcTrade.Residual)
		}

	case market.EventOfferDeleted:
		if p, ok := e.forwarded[ev.Offer.ID]; ok && p.target.ID == ev.Offer.ID {
			e.unmap(p)
			delete(e.pendingResidual, ev.Offer.ID)
		}

	case market.EventBidChanged:
		if p, ok := e.forwardedBids[ev.ExistingBid.ID]; ok && p.target.ID == ev.ExistingBid.ID {
			e.pendingResidualBid[ev.ExistingBid.ID] = ev.NewBid
		}

	case market.EventBidTraded:
		t := ev.Trade
		p, ok := e.forwardedBids[t.Bid.ID]
		if !ok || p.target.ID != t.Bid.ID {
			return
		}
		e.unmapBid(p)
		residualMirror := e.pendingResidualBid[t.Bid.ID]
		delete(e.pendingResidualBid, t.Bid.ID)

		energy := t.Energy
		if energy > p.source.Energy {
			energy = p.source.Energy
		}
		srcTrade, err := e.src.AcceptBid(p.source.ID, e.agent, energy)
		if err != nil {
			// The original bid vanished through an unrelated path; drop the
			// forwarded effect and clean up any now-unbacked residual.
			if market.Recoverable(err) {
				e.log.Debug().Err(err).Msg("counterpart bid gone, dropping forwarded trade")
			} else {
				e.log.Error().Err(err).Msg("counterpart bid accept failed")
			}
			if residualMirror != nil {
				if derr := e.dst.DeleteBid(residualMirror.ID); derr != nil && !market.Recoverable(derr) {
					e.log.Error().Err(derr).Msg("withdrawing orphaned residual mirror bid failed")
				}
			}
			return
		}
		e.log.Debug().Stringer("trade", srcTrade).Msg("bid trade forwarded to source market")

		switch {
		case residualMirror != nil && srcTrade.ResidualBid != nil:
			np := &bidPair{source: srcTrade.ResidualBid, target: residualMirror}
			e.forwardedBids[np.source.ID] = np
			e.forwardedBids[np.target.ID] = np
		case residualMirror != nil:
			// No source demand left to back the residual mirror bid.
			if derr := e.dst.DeleteBid(residualMirror.ID); derr != nil && !market.Recoverable(derr) {
				e.log.Error().Err(derr).Msg("withdrawing unbacked residual mirror bid failed")
			}
		case srcTrade.ResidualBid != nil:
			// Source demand left over without a residual mirror: re-mirror it
			// so the remaining demand stays visible on the target side.
			e.forwardBid(srcTrade.ResidualBid)
		}

	case market.EventBidDeleted:
		if p, ok := e.forwardedBids[ev.Bid.ID]; ok && p.target.ID == ev.Bid.ID {
			e.unmapBid(p)
			delete(e.pendingResidualBid, ev.Bid.ID)
		}
	}
}
