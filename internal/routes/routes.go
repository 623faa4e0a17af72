// Package routes defines the operational HTTP surface: health, metrics and
// provider webhooks.
package routes

import (
	"net/http"
	"time"

	"payledger/internal/handlers"
	"payledger/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

type Dependencies struct {
	Payments      handlers.OutcomeHandler
	HealthChecks  map[string]handlers.Pinger
	Metrics       http.Handler
	WebhookSecret string
	// WebhookRateLimit caps deliveries per client IP per minute; zero disables it.
	WebhookRateLimit int
	Logger           *zap.Logger
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, deps Dependencies) {
	health := handlers.NewHealthHandler(deps.HealthChecks)
	app.Get("/health", health.HealthCheck)

	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	webhooks := app.Group("/webhooks")
	if deps.WebhookRateLimit > 0 {
		webhooks.Use(limiter.New(limiter.Config{
			Max:        deps.WebhookRateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many requests. Please try again later.",
				})
			},
		}))
	}
	webhook := handlers.NewWebhookHandler(deps.Payments, deps.Logger)
	webhooks.Post("/:provider", middleware.WebhookAuth(deps.WebhookSecret, deps.Logger), webhook.HandleOutcome)
}
