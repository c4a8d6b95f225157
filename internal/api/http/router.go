package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/notes-service/internal/api/http/handlers"
	"github.com/spec-kit/notes-service/internal/auth"
	"github.com/spec-kit/notes-service/internal/domain"
	"github.com/spec-kit/notes-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Notes          *handlers.NotesHandler
	Todos          *handlers.TodosHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	gate := cfg.AuthMiddleware.Handle
	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/refresh-token", cfg.Auth.RefreshToken)
	authGroup.Get("/me", gate, cfg.Auth.Me)
	authGroup.Get("/admin", gate, auth.RequireRoles(auth.NewRoleSet(domain.RoleAdmin)), cfg.Auth.Admin)

	notes := api.Group("/notes", gate)
	notes.Post("/", cfg.Notes.Create)
	notes.Get("/", cfg.Notes.List)
	notes.Get("/tags/all", cfg.Notes.Tags)
	notes.Get("/:id/text-content", cfg.Notes.TextContent)
	notes.Get("/:id", cfg.Notes.Get)
	notes.Put("/:id", cfg.Notes.Update)
	notes.Delete("/:id", cfg.Notes.Delete)

	todos := api.Group("/todos", gate)
	todos.Post("/:noteId", cfg.Todos.Add)
	todos.Put("/:noteId/:todoId", cfg.Todos.Update)
	todos.Delete("/:noteId/:todoId", cfg.Todos.Delete)
}
