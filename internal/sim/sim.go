// Package sim drives an area tree through simulated time: a fixed number of
// slots, each subdivided into ticks, with cooperative pause and pacing
// controls for the API surface. The loop is single-threaded; controls are
// only observed between ticks, so a run with a fixed seed is replayable.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gridsim/internal/area"
	"gridsim/internal/market"
)

// MarketType selects the kind of book every area opens.
const (
	// MarketOneSided trades offers only; buyers accept directly.
	MarketOneSided = "one_sided"
	// MarketTwoSided additionally carries bids, cleared by a per-tick
	// matching pass.
	MarketTwoSided = "two_sided"
)

// Config holds the clock parameters of a run.
type Config struct {
	// Duration is the total simulated time span.
	Duration time.Duration
	// SlotLength is the trading window of one market instance.
	SlotLength time.Duration
	// TickLength is the scheduling resolution within a slot; SlotLength
	// must be a whole multiple of it.
	TickLength time.Duration
	// Start anchors the first slot. Zero means a fixed default so runs are
	// reproducible without configuration.
	Start time.Time
	// MarketCount is the number of concurrently open slots per area: the
	// spot market plus MarketCount-1 future books strategies may trade
	// into ahead of time. Zero means 1, spot only.
	MarketCount int
	// MarketType is MarketOneSided (the default) or MarketTwoSided.
	MarketType string
	// Clearing is the clearing-price policy of two-sided markets.
	Clearing market.ClearingPolicy
	// Slowdown paces the run: each tick sleeps TickLength*Slowdown/100 of
	// wall-clock time. 0 runs as fast as possible, 100 is real time.
	Slowdown int
	// Seed feeds the run's single random source.
	Seed int64
	// StartPaused holds the run before the first tick until resumed.
	StartPaused bool
	// PauseAfter, if positive, pauses the run once that much simulated
	// time has elapsed.
	PauseAfter time.Duration
}

func (c *Config) validate() error {
	if c.Duration <= 0 || c.SlotLength <= 0 || c.TickLength <= 0 {
		return fmt.Errorf("duration, slot length and tick length must be positive")
	}
	if c.SlotLength%c.TickLength != 0 {
		return fmt.Errorf("slot length %s is not a multiple of tick length %s", c.SlotLength, c.TickLength)
	}
	if c.Duration < c.SlotLength {
		return fmt.Errorf("duration %s is shorter than one slot (%s)", c.Duration, c.SlotLength)
	}
	if c.Slowdown < 0 || c.Slowdown > 100 {
		return fmt.Errorf("slowdown must be within [0, 100], got %d", c.Slowdown)
	}
	if c.MarketCount < 0 {
		return fmt.Errorf("market count must not be negative, got %d", c.MarketCount)
	}
	switch c.MarketType {
	case "", MarketOneSided, MarketTwoSided:
	default:
		return fmt.Errorf("unknown market type %q", c.MarketType)
	}
	return nil
}

// Status is a point-in-time snapshot of a run's progress, safe to read from
// other goroutines while the loop is running.
type Status struct {
	Running      bool      `json:"running"`
	Finished     bool      `json:"finished"`
	Paused       bool      `json:"paused"`
	Slot         int       `json:"slot"`
	SlotCount    int       `json:"slot_count"`
	Tick         int       `json:"tick"`
	TicksPerSlot int       `json:"ticks_per_slot"`
	SimTime      time.Time `json:"sim_time"`
	Slowdown     int       `json:"slowdown"`
}

// Simulation owns the area tree and the clock that drives it.
type Simulation struct {
	cfg  Config
	root *area.Area

	paused   atomic.Bool
	slowdown atomic.Int64

	mu     sync.RWMutex
	status Status

	log zerolog.Logger
}

// New wires a simulation over the given root area. The configuration is
// validated here so a malformed clock never reaches the run loop.
func New(cfg Config, root *area.Area) (*Simulation, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("root area is nil")
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if cfg.MarketCount == 0 {
		cfg.MarketCount = 1
	}
	s := &Simulation{
		cfg:  cfg,
		root: root,
		log:  log.With().Str("component", "sim").Logger(),
	}
	s.slowdown.Store(int64(cfg.Slowdown))
	s.paused.Store(cfg.StartPaused)
	s.status = Status{
		SlotCount:    int(cfg.Duration / cfg.SlotLength),
		TicksPerSlot: int(cfg.SlotLength / cfg.TickLength),
		Paused:       cfg.StartPaused,
		Slowdown:     cfg.Slowdown,
		SimTime:      cfg.Start,
	}
	return s, nil
}

// Root exposes the area tree for reporting and the control API.
func (s *Simulation) Root() *area.Area { return s.root }

// Pause halts tick advancement after the current tick completes.
func (s *Simulation) Pause() { s.paused.Store(true) }

// Resume continues a paused run from exactly where it stopped.
func (s *Simulation) Resume() { s.paused.Store(false) }

// Paused reports whether the loop is currently holding between ticks.
func (s *Simulation) Paused() bool { return s.paused.Load() }

// SetSlowdown adjusts the pacing factor of subsequent ticks.
func (s *Simulation) SetSlowdown(factor int) error {
	if factor < 0 || factor > 100 {
		return fmt.Errorf("slowdown must be within [0, 100], got %d", factor)
	}
	s.slowdown.Store(int64(factor))
	return nil
}

// Status returns the latest progress snapshot.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Paused = s.paused.Load()
	st.Slowdown = int(s.slowdown.Load())
	return st
}

// Run executes the whole simulation: activate once, then for every slot a
// market cycle, a balancing market cycle and the slot's ticks. Cancellation
// and pause are observed at tick boundaries only, so no partial tick is
// ever applied.
func (s *Simulation) Run(ctx context.Context) error {
	ticksPerSlot := int(s.cfg.SlotLength / s.cfg.TickLength)
	slotCount := int(s.cfg.Duration / s.cfg.SlotLength)

	clock := &area.TickState{
		Slot:         s.cfg.Start,
		TicksPerSlot: ticksPerSlot,
		Rand:         rand.New(rand.NewSource(s.cfg.Seed)),
		SlotLength:   s.cfg.SlotLength,
		MarketCount:  s.cfg.MarketCount,
		TwoSided:     s.cfg.MarketType == MarketTwoSided,
		Clearing:     s.cfg.Clearing,
	}
	if err := s.root.Activate(clock); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	s.setRunning(true)
	defer s.setRunning(false)
	s.log.Info().
		Int("slots", slotCount).
		Int("ticks_per_slot", ticksPerSlot).
		Int64("seed", s.cfg.Seed).
		Msg("simulation started")

	pauseAt := time.Duration(-1)
	if s.cfg.PauseAfter > 0 {
		pauseAt = s.cfg.PauseAfter
	}

	for slot := 0; slot < slotCount; slot++ {
		clock.Slot = s.cfg.Start.Add(time.Duration(slot) * s.cfg.SlotLength)
		clock.Tick = 0
		s.root.MarketCycle()
		s.root.BalancingMarketCycle()

		for tick := 0; tick < ticksPerSlot; tick++ {
			if err := s.waitWhilePaused(ctx); err != nil {
				return err
			}
			clock.Tick = tick
			s.root.Tick()
			s.recordProgress(slot, tick, clock.Slot)

			elapsed := time.Duration(slot)*s.cfg.SlotLength + time.Duration(tick+1)*s.cfg.TickLength
			if pauseAt >= 0 && elapsed >= pauseAt {
				s.log.Info().Dur("elapsed", elapsed).Msg("pause-after point reached")
				s.paused.Store(true)
				pauseAt = -1
			}
			if err := s.pace(ctx); err != nil {
				return err
			}
		}
	}

	s.root.Shutdown()
	s.setFinished()
	s.log.Info().Msg("simulation finished")
	return nil
}

// waitWhilePaused blocks between ticks while the pause flag is set, still
// honoring cancellation.
func (s *Simulation) waitWhilePaused(ctx context.Context) error {
	for s.paused.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// pace sleeps the wall-clock share of a tick implied by the slowdown
// factor.
func (s *Simulation) pace(ctx context.Context) error {
	factor := s.slowdown.Load()
	if factor <= 0 {
		return nil
	}
	delay := s.cfg.TickLength * time.Duration(factor) / 100
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (s *Simulation) setRunning(running bool) {
	s.mu.Lock()
	s.status.Running = running
	s.mu.Unlock()
}

func (s *Simulation) setFinished() {
	s.mu.Lock()
	s.status.Finished = true
	s.mu.Unlock()
}

func (s *Simulation) recordProgress(slot, tick int, simTime time.Time) {
	s.mu.Lock()
	s.status.Slot = slot
	s.status.Tick = tick
	s.status.SimTime = simTime
	s.mu.Unlock()
}
