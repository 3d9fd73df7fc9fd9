package strategy

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gridsim/internal/market"
)

// Base carries the shared plumbing of every strategy: logging, the
// enable/disable switch and the trigger registry. Concrete strategies embed
// *Base and override the lifecycle methods they care about.
type Base struct {
	name    string
	log     zerolog.Logger
	enabled bool

	triggers     map[string]Trigger
	triggerOrder []string
}

// NewBase constructs the shared strategy state. Every strategy starts
// enabled and exposes the enable/disable trigger pair.
func NewBase(name string) *Base {
	b := &Base{
		name:     name,
		log:      log.With().Str("strategy", name).Logger(),
		enabled:  true,
		triggers: make(map[string]Trigger),
	}
	// Registration of the built-ins cannot collide on a fresh registry.
	_ = b.RegisterTrigger(Trigger{
		Name: "enable",
		Help: "Resume trading on the next tick.",
		Handler: func(map[string]any) error {
			b.enabled = true
			return nil
		},
		State: func() any { return b.enabled },
	})
	_ = b.RegisterTrigger(Trigger{
		Name: "disable",
		Help: "Stop submitting or accepting orders until enabled again.",
		Handler: func(map[string]any) error {
			b.enabled = false
			return nil
		},
		State: func() any { return b.enabled },
	})
	return b
}

func (b *Base) Name() string        { return b.name }
func (b *Base) Enabled() bool       { return b.enabled }
func (b *Base) Log() *zerolog.Logger { return &b.log }

// RegisterTrigger adds a control action. Duplicate names across a strategy's
// full trigger set are rejected so the control surface stays unambiguous.
func (b *Base) RegisterTrigger(t Trigger) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("trigger must have a name and a handler")
	}
	if _, exists := b.triggers[t.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTrigger, t.Name)
	}
	b.triggers[t.Name] = t
	b.triggerOrder = append(b.triggerOrder, t.Name)
	return nil
}

// Triggers lists the registered triggers in registration order.
func (b *Base) Triggers() []Trigger {
	out := make([]Trigger, 0, len(b.triggerOrder))
	for _, name := range b.triggerOrder {
		out = append(out, b.triggers[name])
	}
	return out
}

// FireTrigger runs the named trigger and returns its post-fire state.
func (b *Base) FireTrigger(name string, params map[string]any) (any, error) {
	t, ok := b.triggers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, name)
	}
	b.log.Debug().Str("trigger", name).Msg("firing trigger")
	if err := t.Handler(params); err != nil {
		return nil, err
	}
	if t.State != nil {
		return t.State(), nil
	}
	return nil, nil
}

// acceptOffer buys from m, tolerating the expected forwarding races: a
// vanished offer is logged at debug level and reported as skipped.
func (b *Base) acceptOffer(m *market.Market, id string, energy float64) (*market.Trade, bool) {
	trade, err := m.AcceptOffer(id, b.name, energy)
	if err != nil {
		if market.Recoverable(err) {
			b.log.Debug().Err(err).Msg("offer gone, skipping")
			return nil, false
		}
		b.log.Error().Err(err).Msg("accept offer failed")
		return nil, false
	}
	return trade, true
}

// Default lifecycle implementations; concrete strategies override what they
// need.

func (b *Base) OnActivate(Context) error { return nil }

func (b *Base) OnMarketCycle(Context) {}

func (b *Base) OnBalancingMarketCycle(Context) {}

func (b *Base) OnTick(Context) {}

func (b *Base) OnTrade(Context, *market.Market, *market.Trade) {}

func (b *Base) OnOfferChanged(Context, *market.Market, *market.Offer, *market.Offer) {}
