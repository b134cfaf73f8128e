package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-chat/internal/api/http/handlers"
	"github.com/spec-kit/ticket-chat/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Chat           *handlers.ChatHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP and websocket routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)
	api.Get("/users/me", cfg.Users.Me)
	api.Get("/users/:id", cfg.Users.Get)

	api.Get("/tickets", cfg.Tickets.List)
	api.Post("/tickets", cfg.Tickets.Create)
	api.Get("/tickets/:id", cfg.Tickets.Get)
	api.Patch("/tickets/:id/assignee", cfg.Tickets.Assign)
	api.Get("/tickets/:id/messages", cfg.Tickets.Messages)
	api.Get("/tickets/:id/summary", cfg.Tickets.Summary)
	api.Get("/tickets/:id/presence", cfg.Tickets.Presence)

	// the live endpoint authenticates via the token query parameter inside
	// the session handshake, not via the bearer middleware
	app.Use("/ws/ticket/:id", cfg.Chat.Upgrade)
	app.Get("/ws/ticket/:id", cfg.Chat.Serve())
}
