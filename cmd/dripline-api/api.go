// Package main provides the Dripline API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dripline/dripline/pkg/enrollment"
	"github.com/dripline/dripline/pkg/eventbus"
	"github.com/dripline/dripline/pkg/otelhelper"
	"github.com/dripline/dripline/pkg/persistence"
	"github.com/dripline/dripline/pkg/services"
	"github.com/dripline/dripline/pkg/templates"
	"github.com/dripline/dripline/pkg/web"
)

type API struct {
	logger           *slog.Logger
	persistence      persistence.Persistence
	eventBus         eventbus.EventBus
	countsSource     enrollment.CountsSource
	templateStoreURL string
	validate         *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	countsSource enrollment.CountsSource,
	templateStoreURL string,
) *API {
	return &API{
		logger:           logger,
		persistence:      persistence,
		eventBus:         eventBus,
		countsSource:     countsSource,
		templateStoreURL: templateStoreURL,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App(ctx context.Context) *fiber.App {
	automationService := services.NewAutomation(a.persistence, a.eventBus, a.logger)

	tracer, err := otelhelper.NewTracer(ctx, "dripline-api")
	if err != nil {
		a.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		automationService = automationService.WithTracer(tracer)
	}

	resolver := templates.NewHTTPResolver(a.templateStoreURL)

	handlers := web.NewAPIHandlers(automationService, a.countsSource, resolver, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Dripline API")
	})

	automations := app.Group("/automations")
	automations.Get("/", handlers.GetAutomations)
	automations.Post("/", handlers.CreateAutomation)
	automations.Post("/validate", handlers.ValidateFlow)
	automations.Get("/:id", handlers.GetAutomation)
	automations.Put("/:id", handlers.UpdateAutomation)
	automations.Delete("/:id", handlers.DeleteAutomation)
	automations.Post("/:id/active", handlers.SetAutomationActive)
	automations.Get("/:id/enrollments", handlers.GetEnrollmentCounts)

	app.Get("/templates", handlers.GetTemplates)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	return a.App(ctx).Listen(":" + strconv.Itoa(port))
}
