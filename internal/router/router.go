package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/algogenius-api/internal/config"
	"github.com/noah-isme/algogenius-api/internal/database"
	"github.com/noah-isme/algogenius-api/internal/handler"
	"github.com/noah-isme/algogenius-api/internal/middleware"
	"github.com/noah-isme/algogenius-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	UserHandler         *handler.UserHandler
	ScenarioHandler     *handler.ScenarioHandler
	AssignmentHandler   *handler.AssignmentHandler
	DashboardHandler    *handler.DashboardHandler
	LearningHandler     *handler.LearningHandler
	NotificationHandler *handler.NotificationHandler
	ActivityHandler     *handler.ActivityHandler
	JWTMiddleware       fiber.Handler
	RoleMiddleware      fiber.Handler
	// HealthProbes are checked by GET /health, keyed by dependency name.
	HealthProbes map[string]database.Probe
	// GenerationLimit guards routes that call the generative backend. Nil disables limiting.
	GenerationLimit fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}
	roleMiddleware := deps.RoleMiddleware
	if roleMiddleware == nil {
		roleMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	secured := func(prefix string) fiber.Router {
		return api.Group(prefix, jwtMiddleware, roleMiddleware)
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(secured("/users"))
		deps.UserHandler.RegisterRoster(secured("/roster"))
	}

	if deps.ScenarioHandler != nil {
		deps.ScenarioHandler.Register(secured("/scenarios"), deps.GenerationLimit)
	}

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(secured("/assignments"), deps.GenerationLimit)
	}

	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(secured("/dashboard"))
	}

	if deps.LearningHandler != nil {
		deps.LearningHandler.Register(secured("/learning"), deps.GenerationLimit)
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(secured("/notifications"))
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(secured("/activity"))
	}
}

// DefaultGenerationLimit allows a burst of generative calls per user per minute.
func DefaultGenerationLimit() fiber.Handler {
	return middleware.RateLimit("generation", 10, time.Minute)
}
