package market

// EventType enumerates the order-lifecycle notifications a market publishes.
type EventType int

const (
	EventOffer EventType = iota + 1
	EventOfferDeleted
	EventOfferChanged
	EventTrade
	EventBid
	EventBidDeleted
	EventBidChanged
	EventBidTraded
)

func (t EventType) String() string {
	switch t {
	case EventOffer:
		return "OFFER"
	case EventOfferDeleted:
		return "OFFER_DELETED"
	case EventOfferChanged:
		return "OFFER_CHANGED"
	case EventTrade:
		return "TRADE"
	case EventBid:
		return "BID"
	case EventBidDeleted:
		return "BID_DELETED"
	case EventBidChanged:
		return "BID_CHANGED"
	case EventBidTraded:
		return "BID_TRADED"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered synchronously to listeners in subscription order.
// Which fields are set depends on Type:
//   - OFFER, OFFER_DELETED: Offer
//   - OFFER_CHANGED: ExistingOffer, NewOffer
//   - TRADE, BID_TRADED: Trade
//   - BID, BID_DELETED: Bid
//   - BID_CHANGED: ExistingBid, NewBid
type Event struct {
	Type          EventType
	Market        *Market
	Offer         *Offer
	ExistingOffer *Offer
	NewOffer      *Offer
	Bid           *Bid
	ExistingBid   *Bid
	NewBid        *Bid
	Trade         *Trade
}

// Listener receives market events. Listeners must not mutate the originating
// market from inside the callback except through its public operations.
type Listener func(Event)
