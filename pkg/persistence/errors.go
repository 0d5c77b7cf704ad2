package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrAutomationNotFound indicates no automation exists for the given
	// identifier.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrSlugTaken indicates another automation already owns the slug.
	ErrSlugTaken = errors.New("automation slug already in use")
)

// AutomationError wraps automation storage errors with operation context.
type AutomationError struct {
	Op           string // Operation being performed (e.g. "GetByID", "Save")
	AutomationID string
	Err          error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s operation failed for automation %s: %v", e.Op, e.AutomationID, e.Err)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

func (e *AutomationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewAutomationError creates a new automation error with context.
func NewAutomationError(op, automationID string, err error) *AutomationError {
	return &AutomationError{
		Op:           op,
		AutomationID: automationID,
		Err:          err,
	}
}

// IsAutomationNotFound checks if an error indicates a missing automation.
func IsAutomationNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}

// IsSlugTaken checks if an error indicates a slug collision.
func IsSlugTaken(err error) bool {
	return errors.Is(err, ErrSlugTaken)
}
