// Package persistence provides the storage abstraction for automation
// definitions.
package persistence

import (
	"context"

	"github.com/dripline/dripline/pkg/models"
)

// Persistence stores and loads full automation definitions: the compiled
// steps and the verbatim canvas layout travel together.
type Persistence interface {
	Automations(ctx context.Context) ([]*models.Automation, error)
	AutomationByID(ctx context.Context, id string) (*models.Automation, error)
	AutomationBySlug(ctx context.Context, slug string) (*models.Automation, error)
	SaveAutomation(ctx context.Context, automation *models.Automation) error
	DeleteAutomation(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
