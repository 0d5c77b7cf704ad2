// Package events defines the automation lifecycle notifications published
// for the delivery runtime to consume.
package events

import (
	"time"
)

type EventType string

// Topic is the Kafka topic carrying automation lifecycle events.
const Topic = "dripline.automations"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	AutomationSavedEvent       EventType = "automation.saved"
	AutomationDeletedEvent     EventType = "automation.deleted"
	AutomationActivatedEvent   EventType = "automation.activated"
	AutomationDeactivatedEvent EventType = "automation.deactivated"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	AutomationID string    `json:"automation_id"`
}

// AutomationSaved signals that a definition (steps and layout) changed and
// the runtime should reload it.
type AutomationSaved struct {
	BaseEvent

	Slug     string `json:"slug"`
	IsActive bool   `json:"is_active"`
}

func (e AutomationSaved) GetType() EventType {
	return AutomationSavedEvent
}

// AutomationDeleted signals that a definition was removed; the runtime must
// stop advancing its enrollments.
type AutomationDeleted struct {
	BaseEvent
}

func (e AutomationDeleted) GetType() EventType {
	return AutomationDeletedEvent
}

// AutomationActivated signals that enrollment may begin.
type AutomationActivated struct {
	BaseEvent

	Slug string `json:"slug"`
}

func (e AutomationActivated) GetType() EventType {
	return AutomationActivatedEvent
}

// AutomationDeactivated signals that new enrollments must stop. Existing
// enrollments are the runtime's concern.
type AutomationDeactivated struct {
	BaseEvent

	Slug string `json:"slug"`
}

func (e AutomationDeactivated) GetType() EventType {
	return AutomationDeactivatedEvent
}
