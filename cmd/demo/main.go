package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"gridsim/internal/area"
	"gridsim/internal/export"
	"gridsim/internal/sim"
	"gridsim/internal/stats"
	"gridsim/internal/strategy"
)

// Demo:
// - Build a small fixed grid: a commercial supplier, two houses and a cell tower
// - Run one simulated day and print per-slot aggregates of the grid market
// - Optionally export the full results as CSV/JSON
func main() {
	duration := flag.Duration("duration", 24*time.Hour, "Simulated duration")
	seed := flag.Int64("seed", 42, "Random seed")
	outDir := flag.String("out", "", "Optional directory to write CSV/JSON results")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	root := buildDemoGrid()
	s, err := sim.New(sim.Config{
		Duration:   *duration,
		SlotLength: 15 * time.Minute,
		TickLength: 15 * time.Second,
		Seed:       *seed,
	}, root)
	if err != nil {
		panic(err)
	}
	if err := s.Run(context.Background()); err != nil {
		panic(err)
	}

	fmt.Println("slot                        trades   energy[kWh]   avg price")
	for _, slot := range root.PastSlots() {
		sum := stats.Summarize(root.PastMarket(slot))
		fmt.Printf("%-25s   %6d   %11.3f   %9.4f\n",
			sum.Slot, sum.TradeCount, sum.EnergyTraded, sum.AvgTradePrice)
	}

	fmt.Println("\ncumulative loads by hour:")
	for _, hl := range stats.CumulativeLoads(root) {
		fmt.Printf("  %02d:00  load %9.3f kWh  avg unit price %7.4f\n", hl.Hour, hl.Load, hl.Price)
	}

	if *outDir != "" {
		if err := export.WriteAll(root, *outDir); err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nresults written to %s\n", *outDir)
	}
}

func buildDemoGrid() *area.Area {
	producer := area.New("commercial supplier", strategy.NewCommercialProducer("commercial supplier", strategy.CommercialProducerParams{
		EnergyRate:             30,
		EnergyPerSlot:          1000,
		BalancingEnergyPerSlot: 100,
		BalancingRate:          10,
	}))

	house1 := area.New("house-1", nil,
		area.New("h1 load", strategy.NewLoad("h1 load", strategy.LoadParams{
			EnergyPerSlot: 2,
			MaxUnitPrice:  35,
		})),
		area.New("h1 pv", strategy.NewPV("h1 pv", strategy.PVParams{
			PeakEnergyPerSlot: 3,
			InitialUnitPrice:  29,
			FinalUnitPrice:    5,
		})),
	)
	house2 := area.New("house-2", nil,
		area.New("h2 load", strategy.NewLoad("h2 load", strategy.LoadParams{
			EnergyPerSlot: 3,
			MaxUnitPrice:  35,
		})),
		area.New("h2 storage", strategy.NewStorage("h2 storage", strategy.StorageParams{
			CapacityKWh:        5,
			MaxBuyUnitPrice:    25,
			SellMarginFraction: 0.2,
		})),
	)
	tower := area.New("cell tower", strategy.NewCellTowerLoad("cell tower", strategy.LoadParams{
		EnergyPerSlot: 1,
		MaxUnitPrice:  35,
	}))
	balancer := area.New("balancer", strategy.NewBalancingTrader("balancer", strategy.BalancingTraderParams{
		NeedFraction: 0.1,
		CapFraction:  0.15,
	}))

	return area.New("grid", nil, producer, house1, house2, tower, balancer)
}
