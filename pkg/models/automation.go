package models

import (
	"regexp"
	"time"
)

// TriggerType enumerates the events that can enroll a contact into an
// automation. The matching condition payload is opaque to the editor and
// interpreted by the delivery runtime.
type TriggerType string

const (
	TriggerTypeContactCreated TriggerType = "contact.created"
	TriggerTypeListSubscribed TriggerType = "list.subscribed"
	TriggerTypeSegmentJoined  TriggerType = "segment.joined"
	TriggerTypeCustomEvent    TriggerType = "custom_event"
	TriggerTypeSchedule       TriggerType = "schedule"
)

// IsValid checks if the trigger type is part of the known vocabulary.
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerTypeContactCreated, TriggerTypeListSubscribed,
		TriggerTypeSegmentJoined, TriggerTypeCustomEvent, TriggerTypeSchedule:
		return true
	default:
		return false
	}
}

// StopConditions are global exit flags evaluated by the runtime against every
// enrolled contact on every tick, independent of the contact's current step.
// They are settings, not graph nodes, and are never flattened into the step
// list.
type StopConditions struct {
	ExitOnPurchase    bool `json:"exit_on_purchase"`
	ExitOnOpen        bool `json:"exit_on_open"`
	ExitOnClick       bool `json:"exit_on_click"`
	ExitOnReply       bool `json:"exit_on_reply"`
	ExitOnUnsubscribe bool `json:"exit_on_unsubscribe"`
}

// SendWindow is the daily time range during which the runtime may send.
type SendWindow struct {
	Start    string `json:"start"    validate:"omitempty,datetime=15:04"`
	End      string `json:"end"      validate:"omitempty,datetime=15:04"`
	Timezone string `json:"timezone"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// IsValidSlug reports whether s is a well-formed automation slug.
func IsValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Automation is the persisted definition of a marketing automation: the
// trigger and settings, the compiled step list consumed by the delivery
// runtime, and the verbatim canvas layout it was compiled from.
type Automation struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"               validate:"required,min=3"`
	Slug              string         `json:"slug"               validate:"required,lowercase"`
	Description       string         `json:"description"`
	TriggerType       TriggerType    `json:"trigger_type"       validate:"required"`
	TriggerConditions map[string]any `json:"trigger_conditions"`
	StopConditions    StopConditions `json:"stop_conditions"`
	SendWindow        SendWindow     `json:"send_window"`
	SendOnWeekends    bool           `json:"send_on_weekends"`
	IsActive          bool           `json:"is_active"`
	FlowDefinition    FlowDefinition `json:"flow_definition"`
	Steps             []*Step        `json:"steps"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// NodeByID finds a node in the stored layout by ID.
func (a *Automation) NodeByID(id string) *Node {
	for _, n := range a.FlowDefinition.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// TriggerNode returns the stored layout's trigger node, or nil when the
// layout is empty.
func (a *Automation) TriggerNode() *Node {
	for _, n := range a.FlowDefinition.Nodes {
		if n.IsTrigger() {
			return n
		}
	}

	return nil
}
