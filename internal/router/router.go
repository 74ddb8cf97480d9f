package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rubriq/rubriq-api/internal/config"
	"github.com/rubriq/rubriq-api/internal/handler"
	"github.com/rubriq/rubriq-api/internal/middleware"
	"github.com/rubriq/rubriq-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler *handler.AssignmentHandler
	GradingHandler    *handler.GradingHandler
	ReviewHandler     *handler.ReviewHandler
	UserHandler       *handler.UserHandler
	BillingHandler    *handler.BillingHandler
	AdminHandler      *handler.AdminHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Stripe webhooks authenticate via signature, not JWT.
	if deps.BillingHandler != nil {
		deps.BillingHandler.RegisterWebhook(app.Group("/api/v1"))
	}

	if deps.UserHandler != nil {
		users := app.Group("/api/v1/users", jwtMiddleware)
		deps.UserHandler.Register(users)
	}

	if deps.AssignmentHandler != nil {
		assignments := app.Group("/api/v1/assignments", jwtMiddleware)
		deps.AssignmentHandler.Register(assignments)
	}

	if deps.GradingHandler != nil {
		// Grading jobs fan out LLM calls; keep per-user start rates sane.
		grading := app.Group("/api/v1/grading", jwtMiddleware, middleware.RateLimit("grading", 30, time.Minute))
		deps.GradingHandler.Register(grading)
	}

	if deps.ReviewHandler != nil {
		review := app.Group("/api/v1/review", jwtMiddleware)
		deps.ReviewHandler.Register(review)
	}

	if deps.BillingHandler != nil {
		billing := app.Group("/api/v1/billing", jwtMiddleware)
		deps.BillingHandler.Register(billing)
	}

	if deps.AdminHandler != nil {
		admin := app.Group("/api/v1/admin", jwtMiddleware, middleware.RequireAdminEmail(cfg.AdminEmails))
		deps.AdminHandler.Register(admin)
	}
}
