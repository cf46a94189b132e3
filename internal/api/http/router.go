package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sms-desk/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Webhook   *handlers.WebhookHandler
	Dashboard *handlers.DashboardHandler
	Tickets   *handlers.TicketsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/webhook", cfg.Webhook.Receive)

	app.Get("/admin", cfg.Dashboard.Dashboard)
	app.Post("/reply", cfg.Dashboard.Reply)
	app.Post("/admin/tickets/:id/close", cfg.Dashboard.Close)

	api := app.Group("/api")
	api.Get("/tickets", cfg.Tickets.ListOpen)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
}
