package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dripline/dripline/pkg/compiler"
	"github.com/dripline/dripline/pkg/eventbus"
	"github.com/dripline/dripline/pkg/events"
	"github.com/dripline/dripline/pkg/flow"
	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/otelhelper"
	"github.com/dripline/dripline/pkg/persistence"
)

// Automation is the service behind the editor's save flow and the HTTP API.
type Automation struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewAutomation creates the automation service. The publisher may be nil
// when no runtime is listening (tests, offline tooling).
func NewAutomation(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Automation {
	return &Automation{
		persistence: p,
		publisher:   publisher,
		logger:      logger,
		tracer:      noop.NewTracerProvider().Tracer("dripline"),
	}
}

// WithTracer replaces the no-op tracer, typically with the OTLP one built by
// otelhelper.
func (s *Automation) WithTracer(tracer trace.Tracer) *Automation {
	s.tracer = tracer

	return s
}

// HealthCheck checks the health of the persistence layer.
func (s *Automation) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns every stored automation.
func (s *Automation) List(ctx context.Context) ([]*models.Automation, error) {
	automations, err := s.persistence.Automations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}

	return automations, nil
}

// Get returns one automation by ID.
func (s *Automation) Get(ctx context.Context, id string) (*models.Automation, error) {
	automation, err := s.persistence.AutomationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get automation %s: %w", id, err)
	}

	return automation, nil
}

// SaveRequest is the editor's save submission: the settings panel content
// plus the current canvas layout.
type SaveRequest struct {
	ID       string
	Settings compiler.Settings
	Flow     models.FlowDefinition
}

// Save is the persistence gateway. It requires a non-empty name and slug,
// runs flow validation with strict mode tied to is_active, compiles the
// graph, and stores the compiled steps together with the verbatim layout.
// Nothing is persisted unless every check passes.
func (s *Automation) Save(ctx context.Context, req SaveRequest) (*models.Automation, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "automation.save",
		attribute.String(otelhelper.AutomationIDKey, req.ID),
		attribute.String(otelhelper.AutomationSlugKey, req.Settings.Slug),
	)
	defer span.End()

	if req.Settings.Name == "" {
		return nil, otelhelper.RecordError(span, ErrNameRequired)
	}

	if req.Settings.Slug == "" {
		return nil, otelhelper.RecordError(span, ErrSlugRequired)
	}

	if !models.IsValidSlug(req.Settings.Slug) {
		return nil, otelhelper.RecordError(span, ErrInvalidSlug)
	}

	messages := flow.Validate(req.Flow.Nodes, req.Flow.Edges, req.Settings.IsActive)
	if len(messages) > 0 {
		return nil, otelhelper.RecordError(span, &FlowValidationError{Messages: messages})
	}

	req.Settings.ID = req.ID

	automation, err := compiler.FlowToAutomation(req.Flow, req.Settings)
	if err != nil {
		return nil, otelhelper.RecordError(span, fmt.Errorf("failed to compile flow: %w", err))
	}

	now := time.Now()

	if automation.ID == "" {
		automation.ID = uuid.NewString()
		automation.CreatedAt = now
	} else {
		existing, err := s.persistence.AutomationByID(ctx, automation.ID)
		if err != nil {
			return nil, otelhelper.RecordError(span, fmt.Errorf("failed to load automation %s: %w", automation.ID, err))
		}

		automation.CreatedAt = existing.CreatedAt
	}

	automation.UpdatedAt = now

	err = s.persistence.SaveAutomation(ctx, automation)
	if err != nil {
		return nil, otelhelper.RecordError(span, fmt.Errorf("failed to save automation: %w", err))
	}

	s.publish(ctx, automation.ID, events.AutomationSaved{
		BaseEvent: s.baseEvent(events.AutomationSavedEvent, automation.ID),
		Slug:      automation.Slug,
		IsActive:  automation.IsActive,
	})

	return automation, nil
}

// Delete removes an automation and notifies the runtime.
func (s *Automation) Delete(ctx context.Context, id string) error {
	err := s.persistence.DeleteAutomation(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete automation %s: %w", id, err)
	}

	s.publish(ctx, id, events.AutomationDeleted{
		BaseEvent: s.baseEvent(events.AutomationDeletedEvent, id),
	})

	return nil
}

// SetActive flips the live flag. Activation re-runs strict validation over
// the stored layout so a half-finished draft can never go live.
func (s *Automation) SetActive(ctx context.Context, id string, active bool) (*models.Automation, error) {
	automation, err := s.persistence.AutomationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get automation %s: %w", id, err)
	}

	if active {
		messages := flow.Validate(automation.FlowDefinition.Nodes, automation.FlowDefinition.Edges, true)
		if len(messages) > 0 {
			return nil, &FlowValidationError{Messages: messages}
		}
	}

	automation.IsActive = active
	automation.UpdatedAt = time.Now()

	err = s.persistence.SaveAutomation(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to save automation: %w", err)
	}

	if active {
		s.publish(ctx, id, events.AutomationActivated{
			BaseEvent: s.baseEvent(events.AutomationActivatedEvent, id),
			Slug:      automation.Slug,
		})
	} else {
		s.publish(ctx, id, events.AutomationDeactivated{
			BaseEvent: s.baseEvent(events.AutomationDeactivatedEvent, id),
			Slug:      automation.Slug,
		})
	}

	return automation, nil
}

// publish sends a lifecycle event. Event delivery is best-effort: the store
// is the source of truth and the runtime reconciles on its own schedule, so
// a publish failure is logged and swallowed.
func (s *Automation) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.Publish(ctx, key, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish automation event",
			"event_type", event.GetType(), "automation_id", key, "error", err)
	}
}

func (s *Automation) baseEvent(eventType events.EventType, automationID string) events.BaseEvent {
	return events.BaseEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		Timestamp:    time.Now(),
		AutomationID: automationID,
	}
}
