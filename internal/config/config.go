package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"gridsim/internal/area"
	"gridsim/internal/market"
	"gridsim/internal/sim"
	"gridsim/internal/strategy"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	// Optional: load the area tree from a separate YAML (e.g. examples/setups/*.yaml).
	// If both TopologyFile and Topology are provided, Topology wins.
	TopologyFile string     `yaml:"topology_file"`
	Topology     AreaConfig `yaml:"topology"`
}

// SimulationConfig mirrors sim.Config with YAML-friendly duration strings.
type SimulationConfig struct {
	Duration    Duration `yaml:"duration"`
	SlotLength  Duration `yaml:"slot_length"`
	TickLength  Duration `yaml:"tick_length"`
	MarketCount int      `yaml:"market_count"`
	MarketType  string   `yaml:"market_type"`
	// ClearingPolicy is "midpoint" (default) or "offer"; only meaningful
	// for two-sided markets.
	ClearingPolicy string   `yaml:"clearing_policy"`
	Slowdown       int      `yaml:"slowdown"`
	Seed           int64    `yaml:"seed"`
	StartPaused    bool     `yaml:"start_paused"`
	PauseAfter     Duration `yaml:"pause_after"`
}

// LedgerConfig enables the optional Redis settlement mirror.
type LedgerConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// AreaConfig is one node of the declared area tree.
type AreaConfig struct {
	Name        string          `yaml:"name"`
	TransferFee float64         `yaml:"transfer_fee"`
	Strategy    *StrategyConfig `yaml:"strategy"`
	Children    []AreaConfig    `yaml:"children"`
}

type StrategyConfig struct {
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params"`
}

// Duration parses YAML scalars like "15m" or "3s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c.TopologyFile != "" && c.Topology.Name == "" {
		topologyPath := c.TopologyFile
		if !filepath.IsAbs(topologyPath) {
			// Prefer interpreting relative paths as relative to the config file
			// directory, but fall back to the path as given if that doesn't exist.
			cand := filepath.Join(filepath.Dir(path), topologyPath)
			if _, err := os.Stat(cand); err == nil {
				topologyPath = cand
			}
		}
		loaded, err := loadTopologyFile(topologyPath)
		if err != nil {
			return nil, err
		}
		c.Topology = loaded
	}
	return &c, nil
}

// applyDefaults fills the clock parameters a concise config may omit.
func (c *Config) applyDefaults() {
	if c.Simulation.Duration == 0 {
		c.Simulation.Duration = Duration(24 * time.Hour)
	}
	if c.Simulation.SlotLength == 0 {
		c.Simulation.SlotLength = Duration(15 * time.Minute)
	}
	if c.Simulation.TickLength == 0 {
		c.Simulation.TickLength = Duration(15 * time.Second)
	}
	if c.Simulation.MarketCount == 0 {
		c.Simulation.MarketCount = 4
	}
	if c.Simulation.MarketType == "" {
		c.Simulation.MarketType = sim.MarketOneSided
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Topology.Name == "" {
		return errors.New("topology is required")
	}
	if err := c.Topology.validate(); err != nil {
		return err
	}
	switch c.Simulation.ClearingPolicy {
	case "", "midpoint", "offer":
	default:
		return fmt.Errorf("unknown clearing policy %q", c.Simulation.ClearingPolicy)
	}
	// Clock parameters are validated by constructing a sim.Config.
	if _, err := sim.New(c.SimConfig(), area.New(c.Topology.Name, nil)); err != nil {
		return fmt.Errorf("simulation config invalid: %w", err)
	}
	return nil
}

func (a *AreaConfig) validate() error {
	if a.Name == "" {
		return errors.New("every area needs a name")
	}
	if a.Strategy != nil && len(a.Children) > 0 {
		return fmt.Errorf("area %q has both children and a strategy", a.Name)
	}
	if a.Strategy != nil && a.Strategy.Type == "" {
		return fmt.Errorf("area %q: strategy.type is required", a.Name)
	}
	for i := range a.Children {
		if err := a.Children[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// SimConfig converts the YAML clock parameters to the runtime shape.
func (c *Config) SimConfig() sim.Config {
	clearing := market.ClearingMidpoint
	if c.Simulation.ClearingPolicy == "offer" {
		clearing = market.ClearingOfferPrice
	}
	return sim.Config{
		Duration:    time.Duration(c.Simulation.Duration),
		SlotLength:  time.Duration(c.Simulation.SlotLength),
		TickLength:  time.Duration(c.Simulation.TickLength),
		MarketCount: c.Simulation.MarketCount,
		MarketType:  c.Simulation.MarketType,
		Clearing:    clearing,
		Slowdown:    c.Simulation.Slowdown,
		Seed:        c.Simulation.Seed,
		StartPaused: c.Simulation.StartPaused,
		PauseAfter:  time.Duration(c.Simulation.PauseAfter),
	}
}

// BuildTopology instantiates the declared area tree, constructing each
// leaf's strategy through the registry.
func (c *Config) BuildTopology() (*area.Area, error) {
	return c.Topology.build()
}

func (a *AreaConfig) build() (*area.Area, error) {
	var strat strategy.Strategy
	if a.Strategy != nil {
		s, err := strategy.New(a.Strategy.Type, a.Name, a.Strategy.Params)
		if err != nil {
			return nil, fmt.Errorf("area %q: %w", a.Name, err)
		}
		strat = s
	}
	children := make([]*area.Area, 0, len(a.Children))
	for i := range a.Children {
		child, err := a.Children[i].build()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	node := area.New(a.Name, strat, children...)
	node.TransferFee = a.TransferFee
	return node, nil
}

type topologyFileWrapper struct {
	Topology AreaConfig `yaml:"topology"`
}

func loadTopologyFile(path string) (AreaConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return AreaConfig{}, err
	}
	var w topologyFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return AreaConfig{}, err
	}
	if w.Topology.Name == "" {
		// Allow bare topology files that start directly at the root area.
		var root AreaConfig
		if err := yaml.Unmarshal(raw, &root); err != nil {
			return AreaConfig{}, err
		}
		return root, nil
	}
	return w.Topology, nil
}
