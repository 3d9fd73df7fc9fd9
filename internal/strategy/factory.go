package strategy

import (
	"fmt"
	"sort"
)

// New builds a strategy variant from its configured type name and parameter
// map, as they appear in a topology file. Unknown types and malformed
// parameters are configuration errors that abort simulation startup.
func New(typ, name string, params map[string]any) (Strategy, error) {
	builder, ok := builders[typ]
	if !ok {
		return nil, fmt.Errorf("unknown strategy type %q (available: %v)", typ, Types())
	}
	s, err := builder(name, params)
	if err != nil {
		return nil, fmt.Errorf("strategy %q (%s): %w", name, typ, err)
	}
	return s, nil
}

// Types lists the registered strategy type names.
func Types() []string {
	out := make([]string, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var builders = map[string]func(name string, params map[string]any) (Strategy, error){
	"commercial_producer": func(name string, params map[string]any) (Strategy, error) {
		p := CommercialProducerParams{
			EnergyRate:             floatParam(params, "energy_rate", 30),
			EnergyPerSlot:          floatParam(params, "energy_per_slot", 100),
			BalancingEnergyPerSlot: floatParam(params, "balancing_energy_per_slot", 0),
			BalancingRate:          floatParam(params, "balancing_rate", 0),
		}
		if p.EnergyRate < 0 || p.EnergyPerSlot <= 0 {
			return nil, fmt.Errorf("energy_rate must be >= 0 and energy_per_slot > 0")
		}
		return NewCommercialProducer(name, p), nil
	},
	"load": func(name string, params map[string]any) (Strategy, error) {
		p := LoadParams{
			EnergyPerSlot: floatParam(params, "energy_per_slot", 1),
			MaxUnitPrice:  floatParam(params, "max_unit_price", 35),
		}
		if p.EnergyPerSlot <= 0 || p.MaxUnitPrice <= 0 {
			return nil, fmt.Errorf("energy_per_slot and max_unit_price must be > 0")
		}
		return NewLoad(name, p), nil
	},
	"pv": func(name string, params map[string]any) (Strategy, error) {
		p := PVParams{
			PeakEnergyPerSlot: floatParam(params, "peak_energy_per_slot", 2),
			InitialUnitPrice:  floatParam(params, "initial_unit_price", 29),
			FinalUnitPrice:    floatParam(params, "final_unit_price", 5),
			Risk:              floatParam(params, "risk", 0),
		}
		if p.PeakEnergyPerSlot <= 0 {
			return nil, fmt.Errorf("peak_energy_per_slot must be > 0")
		}
		if p.FinalUnitPrice > p.InitialUnitPrice {
			return nil, fmt.Errorf("final_unit_price must not exceed initial_unit_price")
		}
		if p.Risk < 0 || p.Risk > 100 {
			return nil, fmt.Errorf("risk must be in [0, 100]")
		}
		return NewPV(name, p), nil
	},
	"storage": func(name string, params map[string]any) (Strategy, error) {
		p := StorageParams{
			CapacityKWh:        floatParam(params, "capacity_kwh", 5),
			MaxBuyUnitPrice:    floatParam(params, "max_buy_unit_price", 25),
			SellMarginFraction: floatParam(params, "sell_margin_fraction", 0.2),
			InitialChargeKWh:   floatParam(params, "initial_charge_kwh", 0),
		}
		if p.CapacityKWh <= 0 {
			return nil, fmt.Errorf("capacity_kwh must be > 0")
		}
		if p.InitialChargeKWh > p.CapacityKWh {
			return nil, fmt.Errorf("initial_charge_kwh exceeds capacity_kwh")
		}
		return NewStorage(name, p), nil
	},
	"cell_tower_load": func(name string, params map[string]any) (Strategy, error) {
		p := LoadParams{
			EnergyPerSlot: floatParam(params, "energy_per_slot", 2),
			MaxUnitPrice:  floatParam(params, "max_unit_price", 35),
		}
		if p.EnergyPerSlot <= 0 || p.MaxUnitPrice <= 0 {
			return nil, fmt.Errorf("energy_per_slot and max_unit_price must be > 0")
		}
		return NewCellTowerLoad(name, p), nil
	},
	"balancing_trader": func(name string, params map[string]any) (Strategy, error) {
		p := BalancingTraderParams{
			NeedFraction: floatParam(params, "need_fraction", 0.1),
			CapFraction:  floatParam(params, "cap_fraction", 0.15),
		}
		if p.NeedFraction <= 0 || p.CapFraction <= 0 {
			return nil, fmt.Errorf("need_fraction and cap_fraction must be > 0")
		}
		if p.NeedFraction > p.CapFraction {
			return nil, fmt.Errorf("need_fraction must not exceed cap_fraction")
		}
		return NewBalancingTrader(name, p), nil
	},
}

// floatParam reads a numeric parameter, tolerating the int/float ambiguity
// of YAML decoding.
func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}
