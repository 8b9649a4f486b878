package middleware

import (
	"webauth/pkg/flash"
	"webauth/pkg/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const msgNotAuthorized = "You are not authorized to view this page."

// RequireRole lets the request through only when the Session middleware
// attached an identity carrying role. Others are sent home with a warning.
func RequireRole(role models.Role, fl *flash.Store, log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		id, ok := IdentityFrom(c)
		if ok && id.Role == role {
			return c.Next()
		}
		if fl != nil {
			if err := fl.Set(c, flash.ClassWarning, msgNotAuthorized); err != nil {
				log.Warn("flash message not stored", zap.String("path", c.Path()), zap.Error(err))
			}
		}
		return c.Redirect("/", fiber.StatusFound)
	}
}
