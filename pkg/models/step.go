package models

import "time"

// StepType represents the kind of compiled step.
type StepType string

const (
	StepTypeEmail     StepType = "email"
	StepTypeCondition StepType = "condition"
)

// Step is a compiled, ordered unit of work derived from the flow graph.
// Order is assigned by traversal from the trigger, never by node ID. A delay
// node immediately preceding an email folds into that email step's Wait and
// does not receive an order of its own.
type Step struct {
	Order          int            `json:"order"`
	Type           StepType       `json:"type"`
	TemplateSlug   string         `json:"template_slug,omitempty"`
	WaitSeconds    int64          `json:"wait_seconds,omitempty"`
	Predicate      map[string]any `json:"predicate,omitempty"`
	NextStepOrders []int          `json:"next_step_orders,omitempty"`
}

// Wait returns the step's delay as a duration.
func (s *Step) Wait() time.Duration {
	return time.Duration(s.WaitSeconds) * time.Second
}
