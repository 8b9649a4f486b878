package middleware

import (
	"math"
	"net/http"
	"strings"
	"time"

	"webauth/pkg/models"
	"webauth/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const cookiePath = "/"

var (
	AccessCookie  = models.TokenAccess.CookieName()
	RefreshCookie = models.TokenRefresh.CookieName()
)

// CookieCodec reads, writes and clears the two session cookies. Clear uses
// the same Path, Domain and SameSite as Write so browsers drop the cookie.
type CookieCodec struct {
	Secure bool
	Domain string
	now    func() time.Time
}

func NewCookieCodec(secure bool, domain string) *CookieCodec {
	return &CookieCodec{Secure: secure, Domain: domain, now: time.Now}
}

func (cc *CookieCodec) Read(c *fiber.Ctx) (access, refresh string) {
	access = strings.TrimPrefix(c.Cookies(AccessCookie), "Bearer ")
	refresh = strings.TrimPrefix(c.Cookies(RefreshCookie), "Bearer ")
	return access, refresh
}

// Write stamps the given tokens on the response. Max-Age is the token's
// remaining lifetime.
func (cc *CookieCodec) Write(c *fiber.Ctx, access, refresh *token.Token) {
	if access != nil {
		cc.set(c, AccessCookie, *access)
	}
	if refresh != nil {
		cc.set(c, RefreshCookie, *refresh)
	}
}

func (cc *CookieCodec) set(c *fiber.Ctx, name string, t token.Token) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    t.Value,
		Path:     cookiePath,
		Domain:   cc.Domain,
		MaxAge:   maxAgeSeconds(t.Remaining(cc.now())),
		Secure:   cc.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// Clear deletes both cookies with Max-Age=0 and an epoch Expires.
func (cc *CookieCodec) Clear(c *fiber.Ctx) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		// fasthttp cannot emit Max-Age=0, so the header is rendered by net/http.
		c.Response().Header.DelCookie(name)
		gone := &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     cookiePath,
			Domain:   cc.Domain,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0).UTC(),
			Secure:   cc.Secure,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		}
		c.Response().Header.Add(fiber.HeaderSetCookie, gone.String())
	}
}

// maxAgeSeconds rounds up so a live token never gets Max-Age 0, which
// fasthttp would drop, turning the cookie into a session cookie.
func maxAgeSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
