package sim

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gridsim/internal/area"
	"gridsim/internal/strategy"
)

func testConfig() Config {
	return Config{
		Duration:   time.Hour,
		SlotLength: 15 * time.Minute,
		TickLength: 3 * time.Minute,
		Seed:       42,
	}
}

// testTopology builds a small grid with supply at the top and demand inside
// a house, so every slot produces cross-boundary trades.
func testTopology() *area.Area {
	producer := area.New("commercial", strategy.NewCommercialProducer("commercial", strategy.CommercialProducerParams{
		EnergyRate:             3,
		EnergyPerSlot:          1000,
		BalancingEnergyPerSlot: 50,
		BalancingRate:          1,
	}))
	load := area.New("load", strategy.NewLoad("load", strategy.LoadParams{
		EnergyPerSlot: 5,
		MaxUnitPrice:  10,
	}))
	pv := area.New("pv", strategy.NewPV("pv", strategy.PVParams{
		PeakEnergyPerSlot: 2,
		InitialUnitPrice:  8,
		FinalUnitPrice:    1,
	}))
	house := area.New("house", nil, load, pv)
	return area.New("grid", nil, producer, house)
}

// tradeLog flattens every archived trade of the tree into comparable
// tuples, ids excluded.
func tradeLog(root *area.Area) []string {
	var out []string
	root.Walk(func(a *area.Area) {
		for _, slot := range a.PastSlots() {
			m := a.PastMarket(slot)
			for _, t := range m.Trades() {
				out = append(out, fmt.Sprintf("%s|%s|%s|%.9f|%.9f|%s",
					a.Name, t.Seller, t.Buyer, t.Energy, t.Price, slot.Format(time.RFC3339)))
			}
		}
	})
	return out
}

func TestConfigValidation(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"zero duration":      func(c *Config) { c.Duration = 0 },
		"tick not divisor":   func(c *Config) { c.TickLength = 4 * time.Minute },
		"slot over duration": func(c *Config) { c.SlotLength = 2 * time.Hour },
		"slowdown range":     func(c *Config) { c.Slowdown = 101 },
		"negative markets":   func(c *Config) { c.MarketCount = -1 },
		"bad market type":    func(c *Config) { c.MarketType = "auction" },
	} {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := New(cfg, testTopology()); err == nil {
			t.Errorf("%s: config accepted, want error", name)
		}
	}
	if _, err := New(testConfig(), nil); err == nil {
		t.Error("nil root accepted, want error")
	}
}

func TestRunProducesTrades(t *testing.T) {
	s, err := New(testConfig(), testTopology())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	trades := tradeLog(s.Root())
	if len(trades) == 0 {
		t.Fatal("run produced no trades")
	}
	st := s.Status()
	if !st.Finished || st.Running {
		t.Errorf("final status = %+v, want finished and not running", st)
	}
	if s.Root().CurrentMarket() != nil {
		t.Error("root market still open after shutdown")
	}
	if got := len(s.Root().PastSlots()); got != 4 {
		t.Errorf("root archived %d slots, want 4", got)
	}
}

func TestDeterministicReplay(t *testing.T) {
	run := func() []string {
		s, err := New(testConfig(), testTopology())
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		return tradeLog(s.Root())
	}

	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("replay produced %d trades, first run %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("trade %d differs:\n  first:  %s\n  second: %s", i, first[i], second[i])
		}
	}
}

func TestPauseHoldsTickAdvancement(t *testing.T) {
	cfg := testConfig()
	cfg.StartPaused = true
	s, err := New(cfg, testTopology())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	time.Sleep(150 * time.Millisecond)
	if !s.Paused() {
		t.Fatal("simulation not paused at start")
	}
	if got := tradeLog(s.Root()); len(got) != 0 {
		t.Fatalf("paused run archived %d trades", len(got))
	}

	s.Resume()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after resume")
	}
	if len(tradeLog(s.Root())) == 0 {
		t.Error("resumed run produced no trades")
	}
}

func TestPauseAfterElapsedSimTime(t *testing.T) {
	cfg := testConfig()
	cfg.PauseAfter = 15 * time.Minute // exactly one slot
	s, err := New(cfg, testTopology())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	deadline := time.After(5 * time.Second)
	for !s.Paused() {
		select {
		case <-deadline:
			t.Fatal("never reached the pause-after point")
		case <-time.After(10 * time.Millisecond):
		}
	}
	st := s.Status()
	if st.Slot != 0 || st.Tick != st.TicksPerSlot-1 {
		t.Errorf("paused at slot %d tick %d, want end of slot 0", st.Slot, st.Tick)
	}

	s.Resume()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestCancellationStopsAtTickBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New(testConfig(), testTopology())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestSetSlowdownValidatesRange(t *testing.T) {
	s, err := New(testConfig(), testTopology())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetSlowdown(150); err == nil {
		t.Error("slowdown 150 accepted")
	}
	if err := s.SetSlowdown(10); err != nil {
		t.Errorf("slowdown 10 rejected: %v", err)
	}
	if got := s.Status().Slowdown; got != 10 {
		t.Errorf("status slowdown = %d, want 10", got)
	}
}

// A two-sided run must cover the load's demand through bids and the
// per-tick clearing pass alone.
func TestTwoSidedRunCoversDemand(t *testing.T) {
	cfg := testConfig()
	cfg.MarketType = MarketTwoSided
	s, err := New(cfg, testTopology())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	trades := tradeLog(s.Root())
	if len(trades) == 0 {
		t.Fatal("two-sided run produced no trades")
	}
	house := s.Root().FindArea("house")
	var bought float64
	for _, slot := range house.PastSlots() {
		bought -= house.PastMarket(slot).TradedEnergy("load")
	}
	if bought < 20-1e-6 {
		t.Errorf("load covered %.3f kWh over 4 slots, want 20", bought)
	}
}

func TestTwoSidedDeterministicReplay(t *testing.T) {
	run := func() []string {
		cfg := testConfig()
		cfg.MarketType = MarketTwoSided
		s, err := New(cfg, testTopology())
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		return tradeLog(s.Root())
	}

	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("replay produced %d trades, first run %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("trade %d differs:\n  first:  %s\n  second: %s", i, first[i], second[i])
		}
	}
}

// A lookahead run opens extra slots ahead of spot but archives only the
// slots that actually ran.
func TestLookaheadRunArchivesOnlyMaturedSlots(t *testing.T) {
	cfg := testConfig()
	cfg.MarketCount = 4
	s, err := New(cfg, testTopology())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := len(s.Root().PastSlots()); got != 4 {
		t.Errorf("root archived %d slots, want 4", got)
	}
	if got := len(s.Root().FutureMarkets()); got != 0 {
		t.Errorf("%d future books survive shutdown, want 0", got)
	}
	if len(tradeLog(s.Root())) == 0 {
		t.Fatal("lookahead run produced no trades")
	}
}
