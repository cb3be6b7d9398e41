package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-stream/internal/api/http/handlers"
	"github.com/spec-kit/support-stream/internal/auth"
	"github.com/spec-kit/support-stream/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Tickets        *handlers.TicketsHandler
	Stream         *handlers.StreamHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	v1 := app.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.Post("/register", cfg.Accounts.Register)
	authGroup.Post("/login", cfg.Accounts.Login)

	protected := v1.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/stream", cfg.Stream.Subscribe)

	admin := protected.Group("/admin", auth.RequireMinLevel(domain.RoleAdmin))
	admin.Post("/stream/events", cfg.Stream.TriggerEvent)
	admin.Get("/stream/stats", cfg.Stream.Stats)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)

	staffOnly := tickets.Group("", auth.RequireStaff())
	staffOnly.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	staffOnly.Patch("/:id/priority", cfg.Tickets.UpdatePriority)
	staffOnly.Post("/:id/assign", cfg.Tickets.AssignTicket)
	staffOnly.Post("/:id/unassign", cfg.Tickets.UnassignTicket)
	staffOnly.Get("/:id/history", cfg.Tickets.ListHistory)
}
