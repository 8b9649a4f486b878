package middleware

import (
	"errors"

	"webauth/pkg/models"
	"webauth/pkg/token"

	"github.com/gofiber/fiber/v2"
)

// IdentityChecker resolves the caller's identity without enforcing login.
type IdentityChecker struct {
	Codec   *token.Codec
	Cookies *CookieCodec
}

// CheckUser returns the caller's identity, or nil for an anonymous visitor.
// It prefers the identity established by Session, then the access cookie,
// then the refresh cookie when the access cookie is missing or expired. It
// never redirects and never changes the request or response.
func (ic IdentityChecker) CheckUser(c *fiber.Ctx) *models.Identity {
	if id, ok := IdentityFrom(c); ok {
		return &id
	}

	accessRaw, refreshRaw := ic.Cookies.Read(c)
	if accessRaw != "" {
		t, err := ic.Codec.Decode(accessRaw, models.TokenAccess)
		if err == nil {
			id := t.Identity()
			return &id
		}
		if !errors.Is(err, token.ErrTokenExpired) {
			return nil
		}
	}
	if refreshRaw == "" {
		return nil
	}
	t, err := ic.Codec.Decode(refreshRaw, models.TokenRefresh)
	if err != nil {
		return nil
	}
	id := t.Identity()
	return &id
}

// IdentityFrom returns the identity the Session middleware attached.
func IdentityFrom(c *fiber.Ctx) (models.Identity, bool) {
	id, ok := c.Locals(identityKey).(models.Identity)
	return id, ok
}
