package server

import (
	"time"

	"webauth/pkg/flash"
	"webauth/pkg/handlers"
	"webauth/pkg/hub"
	"webauth/pkg/metrics"
	"webauth/pkg/middleware"
	"webauth/pkg/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

type Routes struct {
	Auth    *handlers.AuthHandler
	Admin   *handlers.AdminHandler
	Profile *handlers.ProfileHandler
	Session fiber.Handler
	Flash   *flash.Store
	Metrics *metrics.Metrics
	Hub     *hub.Hub
	Logger  *zap.Logger

	// DisableLimits turns off the login and register rate limits.
	DisableLimits bool
}

func ipLimiter(limit int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	})
}

// Mount installs the session guard in front of every route registered
// after it, then the browser and API routes.
func Mount(app *fiber.App, r Routes) {
	app.Use(r.Session)

	if r.Metrics != nil {
		app.Get("/metrics", r.Metrics.Handler())
	}

	var registerLimit, loginLimit fiber.Handler = noLimit, noLimit
	if !r.DisableLimits {
		registerLimit, loginLimit = ipLimiter(5), ipLimiter(10)
	}

	app.Get("/", r.Auth.Home)
	app.Get("/login", r.Auth.LoginPage)
	app.Post("/login", loginLimit, r.Auth.Login)
	app.Get("/register", r.Auth.RegisterPage)
	app.Post("/register", registerLimit, r.Auth.Register)
	app.Get("/logout", r.Auth.Logout)

	protected := app.Group("/protected")
	protected.Get("/me", r.Auth.Me)
	protected.Post("/secret_place", r.Auth.SecretPlace)
	protected.Get("/profile/:id", r.Profile.Show)
	protected.Post("/profile/:id/update", r.Profile.Update)

	admin := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin, r.Flash, r.Logger))
	admin.Get("/users", r.Admin.Users)
	admin.Post("/users/:username/role", r.Admin.SetRole)
	if r.Hub != nil {
		admin.Get("/events", hub.Upgrade, r.Hub.Handler())
	}
}

func noLimit(c *fiber.Ctx) error { return c.Next() }
