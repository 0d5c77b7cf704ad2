package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dripline/dripline/pkg/persistence"
	"github.com/dripline/dripline/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	var flowErr *services.FlowValidationError

	switch {
	case errors.As(err, &flowErr):
		// Every violation is returned together so the editor can surface
		// them all at once.
		return c.Status(fiber.StatusBadRequest).JSON(ValidationResponse{
			Valid:  false,
			Errors: flowErr.Messages,
		})

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case persistence.IsSlugTaken(err):
		return conflict(c, "automation slug already in use")

	case persistence.IsAutomationNotFound(err):
		return notFound(c, "automation not found")

	default:
		return internalError(c, err)
	}
}
