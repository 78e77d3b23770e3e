package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubiai-api/internal/config"
	"github.com/noah-isme/rubiai-api/internal/handler"
	"github.com/noah-isme/rubiai-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RubricHandler     *handler.RubricHandler
	EvaluationHandler *handler.EvaluationHandler
	SettingsHandler   *handler.SettingsHandler
	HealthProbes      map[string]handler.HealthProbe
	Logger            zerolog.Logger
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler(deps.Logger))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	if deps.RubricHandler != nil {
		deps.RubricHandler.Register(api.Group("/rubrics"))
	}

	// Submissions, uploads, evaluations and the session share the session store.
	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(api)
	}

	if deps.SettingsHandler != nil {
		deps.SettingsHandler.Register(api.Group("/settings"))
	}
}
