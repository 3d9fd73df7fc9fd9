package export

import (
	"encoding/json"
	"os"

	"gridsim/internal/area"
	"gridsim/internal/stats"
)

// AreaResult is the JSON shape of one area's results, nested like the tree.
type AreaResult struct {
	Name     string              `json:"name"`
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Slots    []stats.SlotSummary `json:"slots,omitempty"`
	Children []AreaResult        `json:"children,omitempty"`
}

// Summary bundles everything a report consumer needs from one run.
type Summary struct {
	Root              AreaResult                  `json:"root"`
	CumulativeLoads   []stats.HourlyLoad          `json:"cumulative_loads"`
	AccumulatedTrades map[string]stats.AreaTrades `json:"accumulated_trades"`
}

// BuildSummary assembles the JSON summary of a run.
func BuildSummary(root *area.Area) Summary {
	return Summary{
		Root:              buildAreaResult(root),
		CumulativeLoads:   stats.CumulativeLoads(root),
		AccumulatedTrades: stats.AccumulatedTrades(root),
	}
}

func buildAreaResult(a *area.Area) AreaResult {
	res := AreaResult{
		Name: a.Name,
		ID:   a.ID,
		Type: area.Classify(a),
	}
	for _, slot := range a.PastSlots() {
		res.Slots = append(res.Slots, stats.Summarize(a.PastMarket(slot)))
	}
	for _, c := range a.Children {
		res.Children = append(res.Children, buildAreaResult(c))
	}
	return res
}

// WriteSummaryJSON writes the run summary as indented JSON.
func WriteSummaryJSON(root *area.Area, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildSummary(root))
}
