package models

import "time"

// EnrollmentStatus represents a contact's state inside an automation. The
// records are owned and advanced by the delivery runtime; the editor only
// reads them.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusExited    EnrollmentStatus = "exited"
)

// Enrollment tracks one contact's progress through an automation's steps.
type Enrollment struct {
	Contact          string           `json:"contact"`
	AutomationID     string           `json:"automation_id"`
	CurrentStepOrder int              `json:"current_step_order"`
	EnrolledAt       time.Time        `json:"enrolled_at"`
	Status           EnrollmentStatus `json:"status"`
}

// ContactSample is one of the bounded contact identities returned per step by
// the aggregate counts endpoint.
type ContactSample struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// StepCount is the aggregate for a single step order: how many contacts are
// currently waiting at that step, with a sample of at most ten identities.
type StepCount struct {
	Count    int             `json:"count"`
	Contacts []ContactSample `json:"contacts"`
}

// StepSummary pairs a step order with its template reference so the counts
// payload is renderable without refetching the definition.
type StepSummary struct {
	StepOrder    int    `json:"stepOrder"`
	TemplateSlug string `json:"templateSlug"`
}

// EnrollmentCounts is the aggregate read model served by the delivery
// runtime and polled by the editor while it is open.
type EnrollmentCounts struct {
	TotalActive int               `json:"totalActive"`
	StepCounts  map[int]StepCount `json:"stepCounts"`
	Steps       []StepSummary     `json:"steps"`
}
