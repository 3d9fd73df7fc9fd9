// Package stats derives reporting aggregates from the archived markets of a
// finished (or running) simulation. Everything here is read-only over
// closed markets.
package stats

import (
	"sort"
	"strings"
	"time"

	"gridsim/internal/area"
	"gridsim/internal/market"
	"gridsim/internal/strategy"
)

// AgentName is the trading name of the forwarding agent of an area.
func AgentName(areaName string) string { return "IAA " + areaName }

// TradePartyArea strips the agent prefix so trades can be attributed to the
// area an agent represents.
func TradePartyArea(party string) string {
	return strings.TrimPrefix(party, "IAA ")
}

// HourlyLoad aggregates consumption and the average unit price paid across
// all consumer devices, bucketed by hour of day.
type HourlyLoad struct {
	Hour  int     `json:"time"`
	Load  float64 `json:"load"`
	Price float64 `json:"price"`
}

// CumulativeLoads sums every consumer leaf's traded energy per hour of day
// together with the mean unit price those consumers paid. Producer and
// storage leaves are excluded: their traded energy is supply, not load.
func CumulativeLoads(root *area.Area) []HourlyLoad {
	loads := make(map[int]float64)
	prices := make(map[int][]float64)

	root.Walk(func(a *area.Area) {
		if !isConsumerLeaf(a) || a.Parent() == nil {
			return
		}
		for _, slot := range a.Parent().PastSlots() {
			m := a.Parent().PastMarket(slot)
			hour := slot.Hour()
			loads[hour] += m.TradedEnergy(a.Name)
			for _, t := range m.Trades() {
				if t.Buyer == a.Name && t.Energy > 0 {
					prices[hour] = append(prices[hour], t.Price/t.Energy)
				}
			}
		}
	})

	out := make([]HourlyLoad, 0, len(loads))
	for hour, load := range loads {
		out = append(out, HourlyLoad{Hour: hour, Load: load, Price: mean(prices[hour])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

func isConsumerLeaf(a *area.Area) bool {
	if !a.IsLeaf() || a.Strategy == nil {
		return false
	}
	switch a.Strategy.(type) {
	case *strategy.PV, *strategy.CommercialProducer, *strategy.Storage:
		return false
	}
	return true
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// AreaTrades accumulates the energy flows of one house or cell tower over
// the whole run.
type AreaTrades struct {
	Type     string  `json:"type"`
	ID       string  `json:"id"`
	Produced float64 `json:"produced"`
	// ConsumedFrom maps a supplying area's name to the energy bought from
	// it; the area's own name keys self-consumption.
	ConsumedFrom map[string]float64 `json:"consumedFrom"`
}

// AccumulatedTrades walks the tree and attributes every archived trade to
// the house or cell tower it served, resolving agent names back to areas.
func AccumulatedTrades(root *area.Area) map[string]AreaTrades {
	acc := make(map[string]AreaTrades)
	accumulate(root, acc)
	return acc
}

func accumulate(a *area.Area, acc map[string]AreaTrades) {
	for _, child := range a.Children {
		switch area.Classify(child) {
		case "cell_tower":
			accumulateCellTower(child, a, acc)
		case "house":
			accumulateHouse(child, a, acc)
		default:
			if !child.IsLeaf() {
				accumulate(child, acc)
			}
		}
	}
}

func accumulateCellTower(tower, grid *area.Area, acc map[string]AreaTrades) {
	entry := AreaTrades{Type: "cell_tower", ID: tower.ID, ConsumedFrom: make(map[string]float64)}
	for _, slot := range grid.PastSlots() {
		for _, t := range grid.PastMarket(slot).Trades() {
			if t.Buyer == tower.Name {
				entry.ConsumedFrom[TradePartyArea(t.Seller)] += t.Energy
			}
		}
	}
	acc[tower.Name] = entry
}

func accumulateHouse(house, grid *area.Area, acc map[string]AreaTrades) {
	entry, ok := acc[house.Name]
	if !ok {
		entry = AreaTrades{Type: "house", ID: house.ID, ConsumedFrom: make(map[string]float64)}
	}
	agentName := AgentName(house.Name)
	childNames := make(map[string]bool, len(house.Children))
	for _, c := range house.Children {
		childNames[c.Name] = true
	}

	for _, slot := range house.PastSlots() {
		for _, t := range house.PastMarket(slot).Trades() {
			switch {
			case childNames[TradePartyArea(t.Seller)] && childNames[TradePartyArea(t.Buyer)]:
				// Self-consumption inside the house.
				entry.Produced -= t.Energy
				entry.ConsumedFrom[house.Name] += t.Energy
			case t.Buyer == agentName:
				entry.Produced -= t.Energy
			}
		}
	}
	for _, slot := range grid.PastSlots() {
		for _, t := range grid.PastMarket(slot).Trades() {
			if t.Buyer == agentName {
				entry.ConsumedFrom[TradePartyArea(t.Seller)] += t.Energy
			}
		}
	}
	acc[house.Name] = entry
}

// SlotSummary is the per-slot view of one market owner's activity.
type SlotSummary struct {
	Slot          string  `json:"slot"`
	TradeCount    int     `json:"trade_count"`
	EnergyTraded  float64 `json:"energy_traded_kwh"`
	AvgTradePrice float64 `json:"avg_trade_price"`
	MinTradePrice float64 `json:"min_trade_price"`
	MaxTradePrice float64 `json:"max_trade_price"`
	TradeVolume   float64 `json:"trade_volume"`
}

// Summarize flattens one closed market into its reporting row.
func Summarize(m *market.Market) SlotSummary {
	energy := 0.0
	for _, t := range m.Trades() {
		energy += t.Energy
	}
	return SlotSummary{
		Slot:          m.TimeSlot.Format(time.RFC3339),
		TradeCount:    len(m.Trades()),
		EnergyTraded:  energy,
		AvgTradePrice: m.AvgTradePrice(),
		MinTradePrice: m.MinTradePrice(),
		MaxTradePrice: m.MaxTradePrice(),
		TradeVolume:   m.TradeVolume(),
	}
}
