package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-core/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-core/internal/auth"
	"github.com/spec-kit/helpdesk-core/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Departments    *handlers.DepartmentsHandler
	Rules          *handlers.RulesHandler
	Events         *handlers.EventsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Ticket routes carry no role gate:
// the service decides per operation. Catalog routes are admin only.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	api := app.Group("", cfg.AuthMiddleware.Handle)
	api.Get("/me", cfg.Users.Me)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
	tickets.Delete("/:id", cfg.Tickets.Delete)
	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/auto-assign", cfg.Tickets.AutoAssign)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachment)
	tickets.Delete("/:id/attachments/:index", cfg.Tickets.RemoveAttachment)

	admin := api.Group("", auth.RequireRole(domain.RoleAdmin))

	departments := admin.Group("/departments")
	departments.Post("", cfg.Departments.Create)
	departments.Get("", cfg.Departments.List)
	departments.Get("/:id", cfg.Departments.Get)
	departments.Patch("/:id", cfg.Departments.Update)
	departments.Delete("/:id", cfg.Departments.Delete)

	rules := admin.Group("/automation-rules")
	rules.Post("", cfg.Rules.Create)
	rules.Get("", cfg.Rules.List)
	rules.Get("/:id", cfg.Rules.Get)
	rules.Patch("/:id", cfg.Rules.Update)
	rules.Delete("/:id", cfg.Rules.Delete)

	api.Get("/events", cfg.Events.Upgrade, cfg.Events.Stream())
}
