package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"gridsim/internal/area"
	"gridsim/internal/sim"
	"gridsim/internal/strategy"
)

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
	root := area.New("grid", nil, producer, house)

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

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestWriteAllLayout(t *testing.T) {
	root := runScenario(t)
	dir := t.TempDir()
	if err := WriteAll(root, dir); err != nil {
		t.Fatal(err)
	}

	for _, rel := range []string{
		"grid.csv",
		"grid-trades.csv",
		"results.json",
		filepath.Join("grid", "commercial.csv"),
		filepath.Join("grid", "house.csv"),
		filepath.Join("grid", "house-trades.csv"),
		filepath.Join("grid", "house", "load.csv"),
	} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("missing export file %s: %v", rel, err)
		}
	}
}

func TestAreaCSVContents(t *testing.T) {
	root := runScenario(t)
	dir := t.TempDir()
	if err := WriteAll(root, dir); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, filepath.Join(dir, "grid.csv"))
	if len(rows) != 5 {
		t.Fatalf("grid.csv has %d rows, want header plus 4 slots", len(rows))
	}
	if rows[0][0] != "slot" || rows[0][4] != "trade_count" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	count, err := strconv.Atoi(rows[1][4])
	if err != nil || count == 0 {
		t.Errorf("first slot trade count = %q", rows[1][4])
	}

	loadRows := readCSV(t, filepath.Join(dir, "grid", "house", "load.csv"))
	if len(loadRows) != 5 {
		t.Fatalf("load.csv has %d rows, want 5", len(loadRows))
	}
	energy, err := strconv.ParseFloat(loadRows[1][1], 64)
	if err != nil {
		t.Fatal(err)
	}
	if energy >= 0 {
		t.Errorf("consumer traded energy = %v, want negative", energy)
	}
}

func TestTradesCSVContents(t *testing.T) {
	root := runScenario(t)
	dir := t.TempDir()
	if err := WriteAll(root, dir); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, filepath.Join(dir, "grid-trades.csv"))
	if len(rows) < 5 {
		t.Fatalf("grid-trades.csv has %d rows, want at least one trade per slot", len(rows))
	}
	for _, row := range rows[1:] {
		if row[2] != "commercial" {
			t.Errorf("grid trade seller = %q, want commercial", row[2])
		}
		if row[3] != "IAA house" {
			t.Errorf("grid trade buyer = %q, want IAA house", row[3])
		}
	}
}

func TestSummaryJSON(t *testing.T) {
	root := runScenario(t)
	path := filepath.Join(t.TempDir(), "results.json")
	if err := WriteSummaryJSON(root, path); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var sum Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Root.Name != "grid" || len(sum.Root.Children) != 2 {
		t.Errorf("summary root = %+v", sum.Root)
	}
	if len(sum.Root.Slots) != 4 {
		t.Errorf("summary has %d slots, want 4", len(sum.Root.Slots))
	}
	if sum.Root.Children[1].Name != "house" || sum.Root.Children[1].Type != "house" {
		t.Errorf("house child = %+v", sum.Root.Children[1])
	}
	if len(sum.CumulativeLoads) != 1 {
		t.Errorf("cumulative loads = %+v", sum.CumulativeLoads)
	}
	if _, ok := sum.AccumulatedTrades["house"]; !ok {
		t.Error("accumulated trades missing the house")
	}
}
