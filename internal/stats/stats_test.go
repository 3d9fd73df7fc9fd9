package stats

import (
	"context"
	"testing"
	"time"

	"gridsim/internal/area"
	"gridsim/internal/sim"
	"gridsim/internal/strategy"
)

// runScenario executes one simulated hour of a grid with a commercial
// supplier, a house with a single load, and a cell tower.
func runScenario(t *testing.T) *area.Area {
	t.Helper()
	producer := area.New("commercial", strategy.NewCommercialProducer("commercial", strategy.CommercialProducerParams{
		EnergyRate:    3,
		EnergyPerSlot: 1000,
	}))
	load := area.New("load", strategy.NewLoad("load", strategy.LoadParams{
		EnergyPerSlot: 5,
		MaxUnitPrice:  10,
	}))
	house := area.New("house", nil, load)
	tower := area.New("tower", strategy.NewCellTowerLoad("tower", strategy.LoadParams{
		EnergyPerSlot: 2,
		MaxUnitPrice:  10,
	}))
	root := area.New("grid", nil, producer, house, tower)

	s, err := sim.New(sim.Config{
		Duration:   time.Hour,
		SlotLength: 15 * time.Minute,
		TickLength: 3 * time.Minute,
		Seed:       1,
	}, root)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestTradePartyArea(t *testing.T) {
	if got := TradePartyArea(AgentName("house")); got != "house" {
		t.Errorf("round trip = %q", got)
	}
	if got := TradePartyArea("pv"); got != "pv" {
		t.Errorf("plain name mangled to %q", got)
	}
}

func TestCumulativeLoads(t *testing.T) {
	root := runScenario(t)

	loads := CumulativeLoads(root)
	if len(loads) != 1 {
		t.Fatalf("got %d hourly buckets, want 1", len(loads))
	}
	hour := loads[0]
	if hour.Hour != 0 {
		t.Errorf("bucket hour = %d, want 0", hour.Hour)
	}
	// Consumed energy is negative by the buyer-side sign convention: the
	// load draws 5 kWh and the tower 2 kWh per slot, over four slots.
	if !almostEqual(hour.Load, -28) {
		t.Errorf("hourly load = %v, want -28", hour.Load)
	}
	if !almostEqual(hour.Price, 3) {
		t.Errorf("avg unit price = %v, want 3", hour.Price)
	}
}

func TestAccumulatedTrades(t *testing.T) {
	root := runScenario(t)

	acc := AccumulatedTrades(root)
	if len(acc) != 2 {
		t.Fatalf("accumulated %d areas, want house and tower: %v", len(acc), acc)
	}

	house := acc["house"]
	if house.Type != "house" {
		t.Errorf("house type = %q", house.Type)
	}
	if !almostEqual(house.ConsumedFrom["commercial"], 20) {
		t.Errorf("house consumed %v from commercial, want 20", house.ConsumedFrom["commercial"])
	}
	if !almostEqual(house.Produced, 0) {
		t.Errorf("house produced = %v, want 0", house.Produced)
	}

	tower := acc["tower"]
	if tower.Type != "cell_tower" {
		t.Errorf("tower type = %q", tower.Type)
	}
	if !almostEqual(tower.ConsumedFrom["commercial"], 8) {
		t.Errorf("tower consumed %v from commercial, want 8", tower.ConsumedFrom["commercial"])
	}
}

func TestSummarize(t *testing.T) {
	root := runScenario(t)

	slots := root.PastSlots()
	if len(slots) != 4 {
		t.Fatalf("archived %d slots, want 4", len(slots))
	}
	sum := Summarize(root.PastMarket(slots[0]))
	if sum.TradeCount == 0 {
		t.Fatal("first slot recorded no trades")
	}
	// 5 kWh for the house plus 2 kWh for the tower move through the grid
	// market each slot.
	if !almostEqual(sum.EnergyTraded, 7) {
		t.Errorf("energy traded = %v, want 7", sum.EnergyTraded)
	}
	if !almostEqual(sum.AvgTradePrice, 3) {
		t.Errorf("avg trade price = %v, want 3", sum.AvgTradePrice)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
}
