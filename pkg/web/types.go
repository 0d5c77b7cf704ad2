// Package web provides the REST API for automation management.
package web

import (
	"github.com/dripline/dripline/pkg/compiler"
	"github.com/dripline/dripline/pkg/models"
)

// SaveAutomationRequest is the editor's save submission: settings panel
// fields plus the verbatim canvas layout. Trigger configuration travels
// inside the layout's trigger node.
type SaveAutomationRequest struct {
	Name           string                `json:"name"             validate:"required,min=1"`
	Slug           string                `json:"slug"             validate:"required,min=1"`
	Description    string                `json:"description"`
	StopConditions models.StopConditions `json:"stop_conditions"`
	SendWindow     models.SendWindow     `json:"send_window"`
	SendOnWeekends bool                  `json:"send_on_weekends"`
	IsActive       bool                  `json:"is_active"`
	FlowDefinition models.FlowDefinition `json:"flow_definition"`
}

// Settings converts the request body into compiler settings.
func (r *SaveAutomationRequest) Settings() compiler.Settings {
	return compiler.Settings{
		Name:           r.Name,
		Slug:           r.Slug,
		Description:    r.Description,
		StopConditions: r.StopConditions,
		SendWindow:     r.SendWindow,
		SendOnWeekends: r.SendOnWeekends,
		IsActive:       r.IsActive,
	}
}

// SetActiveRequest toggles an automation's live flag.
type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// ValidateFlowRequest runs the structural validator without saving.
type ValidateFlowRequest struct {
	FlowDefinition models.FlowDefinition `json:"flow_definition"`
	Strict         bool                  `json:"strict"`
}

// ValidationResponse carries every rule violation found, all at once.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}
