// Package export writes the results of a finished simulation to disk: one
// CSV per area mirroring the tree layout, a trade log per market owner and
// a JSON summary of the whole hierarchy. Export failures are logged and
// skipped; a half-written report must never abort a finished run.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"gridsim/internal/area"
)

// WriteAll exports the whole tree under dir, creating one subdirectory per
// non-leaf area.
func WriteAll(root *area.Area, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	writeArea(root, dir)
	return WriteSummaryJSON(root, filepath.Join(dir, "results.json"))
}

func writeArea(a *area.Area, dir string) {
	if !a.IsLeaf() {
		sub := filepath.Join(dir, slug(a.Name))
		if err := os.MkdirAll(sub, 0o755); err != nil {
			log.Error().Err(err).Str("area", a.Name).Msg("creating export directory failed")
			return
		}
		for _, c := range a.Children {
			writeArea(c, sub)
		}
		if err := writeTradesCSV(a, filepath.Join(dir, slug(a.Name)+"-trades.csv")); err != nil {
			log.Error().Err(err).Str("area", a.Name).Msg("exporting trades failed")
		}
	}
	if err := writeAreaCSV(a, filepath.Join(dir, slug(a.Name)+".csv")); err != nil {
		log.Error().Err(err).Str("area", a.Name).Msg("exporting area data failed")
	}
}

// writeAreaCSV writes one row per archived slot. Non-leaf areas report their
// own market's aggregates; leaves report their traded energy in the parent's
// market.
func writeAreaCSV(a *area.Area, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if a.IsLeaf() {
		if a.Parent() == nil {
			return nil
		}
		if err := w.Write([]string{"slot", "energy_traded_kwh"}); err != nil {
			return err
		}
		for _, slot := range a.Parent().PastSlots() {
			m := a.Parent().PastMarket(slot)
			row := []string{
				fmtSlot(slot),
				fmtFloat(m.TradedEnergy(a.Name)),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return w.Error()
	}

	header := []string{
		"slot",
		"avg_trade_price",
		"min_trade_price",
		"max_trade_price",
		"trade_count",
		"energy_traded_kwh",
		"trade_volume",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, slot := range a.PastSlots() {
		m := a.PastMarket(slot)
		energy := 0.0
		for _, t := range m.Trades() {
			energy += t.Energy
		}
		row := []string{
			fmtSlot(slot),
			fmtFloat(m.AvgTradePrice()),
			fmtFloat(m.MinTradePrice()),
			fmtFloat(m.MaxTradePrice()),
			strconv.Itoa(len(m.Trades())),
			fmtFloat(energy),
			fmtFloat(m.TradeVolume()),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// writeTradesCSV logs every trade of every archived market of a non-leaf
// area, one row per trade in execution order.
func writeTradesCSV(a *area.Area, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"slot", "trade_id", "seller", "buyer", "energy_kwh", "price"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, slot := range a.PastSlots() {
		for _, t := range a.PastMarket(slot).Trades() {
			row := []string{
				fmtSlot(slot),
				t.ID,
				t.Seller,
				t.Buyer,
				fmtFloat(t.Energy),
				fmtFloat(t.Price),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return w.Error()
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

func fmtSlot(t time.Time) string {
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
