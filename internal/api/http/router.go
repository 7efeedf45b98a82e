package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sessiongate/auth-gateway/internal/api/http/handlers"
	"github.com/sessiongate/auth-gateway/internal/auth"
	"github.com/sessiongate/auth-gateway/internal/domain"
)

// APIPrefix is where the auth, self-service and admin routes are mounted.
const APIPrefix = "/api"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Me     *handlers.MeHandler
	Users  *handlers.UsersHandler
	Gate   *auth.Gate
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group(APIPrefix)

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Get("/verify-email", cfg.Auth.VerifyEmail)
	authGroup.Post("/resend-verification", cfg.Auth.ResendVerification)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)

	me := api.Group("/me", cfg.Gate.Authenticate)
	me.Get("", cfg.Me.Get)
	me.Patch("", cfg.Me.UpdateProfile)
	me.Post("/password", cfg.Me.ChangePassword)

	admin := api.Group("/admin", cfg.Gate.Authenticate, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/users", cfg.Users.List)
	admin.Post("/users", cfg.Users.Create)
	admin.Get("/users/:id", cfg.Users.Get)
	admin.Put("/users/:id", cfg.Users.Update)
	admin.Patch("/users/:id", cfg.Users.Patch)
	admin.Delete("/users/:id", cfg.Users.Delete)
}
