package market

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder rejects malformed energy/price input at the boundary.
	// An invalid order never enters the book.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrNotFound means the referenced order no longer exists. This is an
	// expected condition under forwarding races; callers abandon or retry
	// against fresh state.
	ErrNotFound = errors.New("order not found")

	// ErrMarketClosed guards the immutability of archived markets. Hitting it
	// indicates a scheduling bug, not a trading race.
	ErrMarketClosed = errors.New("market closed")

	// ErrOneSided rejects bid-side operations on a market created without a
	// bid book.
	ErrOneSided = errors.New("one-sided market has no bid book")
)

// MarketError reports an accept or match attempt that became invalid between
// decision and execution. It carries the same recovery policy as ErrNotFound:
// never fatal, the caller moves on to the next opportunity.
type MarketError struct {
	Op  string
	Err error
}

func (e *MarketError) Error() string {
	return fmt.Sprintf("market: %s: %v", e.Op, e.Err)
}

func (e *MarketError) Unwrap() error { return e.Err }

// Recoverable reports whether err is one of the expected trading races that
// callers tolerate silently.
func Recoverable(err error) bool {
	var me *MarketError
	return errors.Is(err, ErrNotFound) || errors.As(err, &me)
}
