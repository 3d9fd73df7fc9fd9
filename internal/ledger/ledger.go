// Package ledger provides an optional settlement side channel for markets.
// The ledger is an audit mirror, not a source of truth: every call may fail
// or time out, and failures must never block or roll back the in-memory book.
package ledger

import "context"

// Ledger records offers and trades on an external settlement system.
type Ledger interface {
	// RecordOffer commits a new offer and returns an external reference.
	RecordOffer(ctx context.Context, energy, price float64, seller string) (string, error)
	// RecordTrade commits a trade against a previously recorded offer.
	RecordTrade(ctx context.Context, offerRef string, energy float64, buyer string) (string, error)
	// CancelOffer revokes a previously recorded offer.
	CancelOffer(ctx context.Context, offerRef string) error
}

// Nop is the default ledger: it records nothing and never fails.
type Nop struct{}

func (Nop) RecordOffer(context.Context, float64, float64, string) (string, error) {
	return "", nil
}

func (Nop) RecordTrade(context.Context, string, float64, string) (string, error) {
	return "", nil
}

func (Nop) CancelOffer(context.Context, string) error { return nil }
