package strategy

import "errors"

var (
	// ErrUnknownTrigger is returned when firing a trigger name that was
	// never registered on the strategy.
	ErrUnknownTrigger = errors.New("unknown trigger")

	// ErrDuplicateTrigger is a configuration error: two triggers with the
	// same name on one strategy instance. Discovered at construction, fatal
	// at activation.
	ErrDuplicateTrigger = errors.New("duplicate trigger name")
)

// Trigger is a named, externally invocable control action on a strategy
// instance. Params declares the accepted parameter names with a short
// description each; State, if set, reports the current state relevant to the
// trigger for control-surface snapshots.
type Trigger struct {
	Name    string
	Help    string
	Params  map[string]string
	Handler func(params map[string]any) error
	State   func() any
}

// Triggerable is implemented by strategies that expose triggers. Base
// provides the implementation; the control API discovers it by assertion.
type Triggerable interface {
	Triggers() []Trigger
	FireTrigger(name string, params map[string]any) (any, error)
}
