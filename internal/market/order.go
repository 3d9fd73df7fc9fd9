package market

import (
	"fmt"
	"time"
)

// Offer is a standing sell-side order. Price is the total price for Energy,
// not a unit price. Offers are immutable once matched; a partial match
// replaces the original with a residual offer under a fresh id.
type Offer struct {
	ID       string
	Energy   float64
	Price    float64
	Seller   string
	TimeSlot time.Time

	// seq preserves submission order for deterministic tie-breaks. A residual
	// offer inherits the seq of the offer it replaces.
	seq uint64
}

// UnitPrice returns the price per unit of energy.
func (o *Offer) UnitPrice() float64 {
	if o.Energy == 0 {
		return 0
	}
	return o.Price / o.Energy
}

func (o *Offer) String() string {
	return fmt.Sprintf("Offer('%s': %.3f kWh @ %.3f, seller %s)", shortID(o.ID), o.Energy, o.Price, o.Seller)
}

// Bid is the buy-side counterpart of Offer, used by two-sided markets.
type Bid struct {
	ID       string
	Energy   float64
	Price    float64
	Buyer    string
	TimeSlot time.Time

	seq uint64
}

func (b *Bid) UnitPrice() float64 {
	if b.Energy == 0 {
		return 0
	}
	return b.Price / b.Energy
}

func (b *Bid) String() string {
	return fmt.Sprintf("Bid('%s': %.3f kWh @ %.3f, buyer %s)", shortID(b.ID), b.Energy, b.Price, b.Buyer)
}

// Trade is an immutable, append-only record of a matched quantity. Offer is
// the (possibly already replaced) offer the trade consumed; Residual is the
// offer that replaced it for a partial fill, nil for a full fill. Bid and
// ResidualBid are their buy-side counterparts and stay nil for one-sided
// trades.
type Trade struct {
	ID          string
	Offer       *Offer
	Bid         *Bid
	Seller      string
	Buyer       string
	Energy      float64
	Price       float64
	TimeSlot    time.Time
	Residual    *Offer
	ResidualBid *Bid
}

func (t *Trade) String() string {
	return fmt.Sprintf("Trade('%s': %.3f kWh @ %.3f, %s -> %s)",
		shortID(t.ID), t.Energy, t.Price, t.Seller, t.Buyer)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
