package models

// ErrorResponse is the uniform error envelope of the control API.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AreaInfo is one row of the area listing.
type AreaInfo struct {
	Name         string   `json:"name"`
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	StrategyType string   `json:"strategy_type,omitempty"`
	Children     []string `json:"children,omitempty"`
}

// TriggerInfo describes one control action of a strategy.
type TriggerInfo struct {
	Name   string            `json:"name"`
	Help   string            `json:"help"`
	Params map[string]string `json:"params,omitempty"`
	State  any               `json:"state,omitempty"`
}

// TriggerResult reports the state snapshot after a trigger fired.
type TriggerResult struct {
	Trigger string `json:"trigger"`
	Area    string `json:"area"`
	State   any    `json:"state,omitempty"`
}

// SlowdownRequest adjusts the pacing factor of a running simulation.
type SlowdownRequest struct {
	Slowdown int `json:"slowdown"`
}
