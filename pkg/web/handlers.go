package web

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dripline/dripline/pkg/enrollment"
	"github.com/dripline/dripline/pkg/flow"
	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/services"
	"github.com/dripline/dripline/pkg/templates"
)

type APIHandlers struct {
	automationService *services.Automation
	countsSource      enrollment.CountsSource
	templateResolver  templates.Resolver
	validator         *validator.Validate
	logger            *slog.Logger
}

func NewAPIHandlers(
	automationService *services.Automation,
	countsSource enrollment.CountsSource,
	templateResolver templates.Resolver,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		automationService: automationService,
		countsSource:      countsSource,
		templateResolver:  templateResolver,
		validator:         validator,
		logger:            logger,
	}
}

func (h *APIHandlers) GetAutomations(c fiber.Ctx) error {
	automations, err := h.automationService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"automations": automations})
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	automation, err := h.automationService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

// CreateAutomation saves a brand new definition.
func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	req, err := h.parseSaveRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	automation, err := h.automationService.Save(c.Context(), services.SaveRequest{
		Settings: req.Settings(),
		Flow:     req.FlowDefinition,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(automation)
}

// UpdateAutomation saves over an existing definition. Last writer wins; the
// console is a low-concurrency internal tool and carries no optimistic
// locking.
func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	req, err := h.parseSaveRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	automation, err := h.automationService.Save(c.Context(), services.SaveRequest{
		ID:       c.Params("id"),
		Settings: req.Settings(),
		Flow:     req.FlowDefinition,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) DeleteAutomation(c fiber.Ctx) error {
	err := h.automationService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetAutomationActive(c fiber.Ctx) error {
	var req SetActiveRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	automation, err := h.automationService.SetActive(c.Context(), c.Params("id"), req.IsActive)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

// ValidateFlow runs the structural validator without saving, so the editor
// can show problems as the operator draws.
func (h *APIHandlers) ValidateFlow(c fiber.Ctx) error {
	var req ValidateFlowRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	messages := flow.Validate(req.FlowDefinition.Nodes, req.FlowDefinition.Edges, req.Strict)

	return c.JSON(ValidationResponse{
		Valid:  len(messages) == 0,
		Errors: messages,
	})
}

// GetEnrollmentCounts serves the live enrollment aggregates for the overlay.
// A source failure degrades to empty counts: the overlay is supplementary
// and must never make the editor unusable.
func (h *APIHandlers) GetEnrollmentCounts(c fiber.Ctx) error {
	counts, err := h.countsSource.Counts(c.Context(), c.Params("id"))
	if err != nil {
		h.logger.WarnContext(c.Context(), "Failed to fetch enrollment counts",
			"automation_id", c.Params("id"), "error", err)

		counts = &models.EnrollmentCounts{StepCounts: map[int]models.StepCount{}}
	}

	return c.JSON(counts)
}

// GetTemplates lists the selectable template references. Failures degrade to
// an empty list for the same reason as the enrollment overlay.
func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	list, err := h.templateResolver.List(c.Context())
	if err != nil {
		h.logger.WarnContext(c.Context(), "Failed to fetch templates", "error", err)

		list = make([]templates.Template, 0)
	}

	return c.JSON(fiber.Map{"templates": list})
}

func (h *APIHandlers) parseSaveRequest(c fiber.Ctx) (*SaveAutomationRequest, error) {
	var req SaveAutomationRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return nil, err
	}

	err = h.validator.Struct(&req)
	if err != nil {
		return nil, err
	}

	return &req, nil
}
