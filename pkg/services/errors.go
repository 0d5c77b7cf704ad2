// Package services implements the automation operations behind the editor
// and the HTTP API.
package services

import (
	"errors"
	"strings"

	"github.com/dripline/dripline/pkg/persistence"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// ErrAutomationNotFound is returned when an automation is not found.
	ErrAutomationNotFound = persistence.ErrAutomationNotFound

	// ErrNameRequired blocks a save with an empty name. The editor reopens
	// the settings panel instead of submitting.
	ErrNameRequired = errors.New("automation name is required")

	// ErrSlugRequired blocks a save with an empty slug.
	ErrSlugRequired = errors.New("automation slug is required")

	// ErrInvalidSlug indicates the slug is not lowercase [a-z0-9-].
	ErrInvalidSlug = errors.New("automation slug must contain only lowercase letters, digits and dashes")

	// ErrAutomationNil guards service entry points.
	ErrAutomationNil = errors.New("automation cannot be nil")
)

// FlowValidationError carries every structural rule violation found in a
// flow, so the editor can surface them all at once. No save is attempted
// while it is non-empty.
type FlowValidationError struct {
	Messages []string
}

func (e *FlowValidationError) Error() string {
	return "flow validation failed: " + strings.Join(e.Messages, "; ")
}

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	var flowErr *FlowValidationError

	return errors.As(err, &flowErr) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrSlugRequired) ||
		errors.Is(err, ErrInvalidSlug) ||
		errors.Is(err, ErrAutomationNil)
}

// IsSettingsError checks if an error means required metadata is missing and
// the editor should reopen the settings panel.
func IsSettingsError(err error) bool {
	return errors.Is(err, ErrNameRequired) || errors.Is(err, ErrSlugRequired) || errors.Is(err, ErrInvalidSlug)
}
