package market

import (
	"context"
	"errors"
	"testing"
)

// recordingLedger captures settlement calls; failing switches every call to
// an error to exercise the best-effort contract.
type recordingLedger struct {
	offers    []string
	trades    []string
	cancelled []string
	failing   bool
}

var errLedgerDown = errors.New("ledger down")

func (l *recordingLedger) RecordOffer(_ context.Context, energy, price float64, seller string) (string, error) {
	if l.failing {
		return "", errLedgerDown
	}
	ref := seller + "-offer"
	l.offers = append(l.offers, ref)
	return ref, nil
}

func (l *recordingLedger) RecordTrade(_ context.Context, offerRef string, energy float64, buyer string) (string, error) {
	if l.failing {
		return "", errLedgerDown
	}
	l.trades = append(l.trades, offerRef)
	return buyer + "-trade", nil
}

func (l *recordingLedger) CancelOffer(_ context.Context, offerRef string) error {
	if l.failing {
		return errLedgerDown
	}
	l.cancelled = append(l.cancelled, offerRef)
	return nil
}

func TestSettlementMirrorsBookOperations(t *testing.T) {
	led := &recordingLedger{}
	m := newTestMarket()
	m.SetSettlement(led)

	offer, err := m.Offer(4, 4, "seller")
	if err != nil {
		t.Fatal(err)
	}
	if len(led.offers) != 1 {
		t.Fatalf("recorded %d offers, want 1", len(led.offers))
	}

	if _, err := m.AcceptOffer(offer.ID, "buyer", 1); err != nil {
		t.Fatal(err)
	}
	if len(led.trades) != 1 || led.trades[0] != "seller-offer" {
		t.Fatalf("trades recorded = %v, want the accepted offer's ref", led.trades)
	}

	// The residual inherits the external reference, so deleting it cancels
	// the original recording.
	residuals := m.CheapestOffers()
	if len(residuals) != 1 {
		t.Fatalf("book has %d offers, want the residual", len(residuals))
	}
	if err := m.DeleteOffer(residuals[0].ID); err != nil {
		t.Fatal(err)
	}
	if len(led.cancelled) != 1 || led.cancelled[0] != "seller-offer" {
		t.Errorf("cancelled = %v, want the original ref", led.cancelled)
	}
}

func TestSettlementFailuresNeverTouchTheBook(t *testing.T) {
	led := &recordingLedger{failing: true}
	m := newTestMarket()
	m.SetSettlement(led)

	offer, err := m.Offer(4, 4, "seller")
	if err != nil {
		t.Fatal(err)
	}
	trade, err := m.AcceptOffer(offer.ID, "buyer", 4)
	if err != nil {
		t.Fatal(err)
	}
	if trade.Energy != 4 {
		t.Errorf("trade energy = %v, want 4", trade.Energy)
	}
	if len(m.Trades()) != 1 {
		t.Errorf("book recorded %d trades, want 1", len(m.Trades()))
	}
}
