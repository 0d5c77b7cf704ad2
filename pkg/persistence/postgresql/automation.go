package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

// AutomationRepository handles automation-related database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

const automationColumns = `
	id
  , name
  , slug
  , description
  , trigger_type
  , trigger_conditions
  , stop_conditions
  , send_window
  , send_on_weekends
  , is_active
  , flow_definition
  , steps
  , created_at
  , updated_at
`

// GetAll returns all automations, newest first.
func (r *AutomationRepository) GetAll(ctx context.Context) ([]*models.Automation, error) {
	query := `SELECT` + automationColumns + `FROM automations ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

// GetByID returns one automation by primary key.
func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	query := `SELECT` + automationColumns + `FROM automations WHERE id = $1`

	automation, err := scanAutomation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError("GetByID", id, err)
	}

	return automation, nil
}

// GetBySlug returns one automation by its unique slug.
func (r *AutomationRepository) GetBySlug(ctx context.Context, slug string) (*models.Automation, error) {
	query := `SELECT` + automationColumns + `FROM automations WHERE slug = $1`

	automation, err := scanAutomation(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError("GetBySlug", slug, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError("GetBySlug", slug, err)
	}

	return automation, nil
}

// Save upserts the full definition. A unique-violation on the slug column is
// mapped to ErrSlugTaken.
func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	triggerConditions, err := json.Marshal(automation.TriggerConditions)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	stopConditions, err := json.Marshal(automation.StopConditions)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	sendWindow, err := json.Marshal(automation.SendWindow)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	flowDefinition, err := json.Marshal(automation.FlowDefinition)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	steps, err := json.Marshal(automation.Steps)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	query := `
		INSERT INTO automations (
			id, name, slug, description, trigger_type, trigger_conditions,
			stop_conditions, send_window, send_on_weekends, is_active,
			flow_definition, steps, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			trigger_conditions = EXCLUDED.trigger_conditions,
			stop_conditions = EXCLUDED.stop_conditions,
			send_window = EXCLUDED.send_window,
			send_on_weekends = EXCLUDED.send_on_weekends,
			is_active = EXCLUDED.is_active,
			flow_definition = EXCLUDED.flow_definition,
			steps = EXCLUDED.steps,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID,
		automation.Name,
		automation.Slug,
		automation.Description,
		string(automation.TriggerType),
		triggerConditions,
		stopConditions,
		sendWindow,
		automation.SendOnWeekends,
		automation.IsActive,
		flowDefinition,
		steps,
		automation.CreatedAt,
		automation.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.NewAutomationError("Save", automation.ID, persistence.ErrSlugTaken)
		}

		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	return nil
}

// Delete removes an automation row.
func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM automations WHERE id = $1`, id)
	if err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewAutomationError("Delete", id, persistence.ErrAutomationNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAutomation(row rowScanner) (*models.Automation, error) {
	var (
		automation        models.Automation
		triggerType       string
		triggerConditions []byte
		stopConditions    []byte
		sendWindow        []byte
		flowDefinition    []byte
		steps             []byte
	)

	err := row.Scan(
		&automation.ID,
		&automation.Name,
		&automation.Slug,
		&automation.Description,
		&triggerType,
		&triggerConditions,
		&stopConditions,
		&sendWindow,
		&automation.SendOnWeekends,
		&automation.IsActive,
		&flowDefinition,
		&steps,
		&automation.CreatedAt,
		&automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	automation.TriggerType = models.TriggerType(triggerType)

	err = json.Unmarshal(triggerConditions, &automation.TriggerConditions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger conditions: %w", err)
	}

	err = json.Unmarshal(stopConditions, &automation.StopConditions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal stop conditions: %w", err)
	}

	err = json.Unmarshal(sendWindow, &automation.SendWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal send window: %w", err)
	}

	err = json.Unmarshal(flowDefinition, &automation.FlowDefinition)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow definition: %w", err)
	}

	err = json.Unmarshal(steps, &automation.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	return &automation, nil
}
