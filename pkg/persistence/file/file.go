// Package file provides file-based persistence for automation definitions.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
// Each automation is one JSON document under {root}/automations.
type Persistence struct {
	root string
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix is tolerated so the persistence factory can pass raw
// connection URLs through.
func NewPersistence(root string) *Persistence {
	return &Persistence{
		root: strings.Replace(root, "file://", "", 1),
	}
}

// Close performs any necessary cleanup. For files there is nothing to do.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Automations loads every stored automation.
func (p *Persistence) Automations(ctx context.Context) ([]*models.Automation, error) {
	dir := p.automationsDir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return make([]*models.Automation, 0), nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list automation files: %w", err)
	}

	automations := make([]*models.Automation, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := strings.TrimSuffix(file, ".json")

		automation, err := p.AutomationByID(ctx, id)
		if err != nil {
			if persistence.IsAutomationNotFound(err) {
				continue
			}

			return nil, fmt.Errorf("failed to load automation %s: %w", id, err)
		}

		automations = append(automations, automation)
	}

	return automations, nil
}

// AutomationByID loads one automation document.
func (p *Persistence) AutomationByID(_ context.Context, id string) (*models.Automation, error) {
	data, err := os.ReadFile(p.automationPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError("GetByID", id, err)
	}

	var automation models.Automation

	err = json.Unmarshal(data, &automation)
	if err != nil {
		return nil, persistence.NewAutomationError("GetByID", id, err)
	}

	return &automation, nil
}

// AutomationBySlug scans stored automations for a slug match.
func (p *Persistence) AutomationBySlug(ctx context.Context, slug string) (*models.Automation, error) {
	automations, err := p.Automations(ctx)
	if err != nil {
		return nil, err
	}

	for _, automation := range automations {
		if automation.Slug == slug {
			return automation, nil
		}
	}

	return nil, persistence.NewAutomationError("GetBySlug", slug, persistence.ErrAutomationNotFound)
}

// SaveAutomation writes the full document, enforcing slug uniqueness across
// the store.
func (p *Persistence) SaveAutomation(ctx context.Context, automation *models.Automation) error {
	existing, err := p.AutomationBySlug(ctx, automation.Slug)
	if err != nil && !persistence.IsAutomationNotFound(err) {
		return err
	}

	if existing != nil && existing.ID != automation.ID {
		return persistence.NewAutomationError("Save", automation.ID, persistence.ErrSlugTaken)
	}

	err = os.MkdirAll(p.automationsDir(), 0o755)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	data, err := json.MarshalIndent(automation, "", "  ")
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	err = os.WriteFile(p.automationPath(automation.ID), data, 0o644)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	return nil
}

// DeleteAutomation removes the stored document.
func (p *Persistence) DeleteAutomation(_ context.Context, id string) error {
	err := os.Remove(p.automationPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewAutomationError("Delete", id, persistence.ErrAutomationNotFound)
		}

		return persistence.NewAutomationError("Delete", id, err)
	}

	return nil
}

func (p *Persistence) automationsDir() string {
	return filepath.Join(p.root, "automations")
}

func (p *Persistence) automationPath(id string) string {
	return filepath.Join(p.automationsDir(), id+".json")
}
