package middleware

import (
	"errors"

	"webauth/pkg/flash"
	"webauth/pkg/metrics"
	"webauth/pkg/models"
	"webauth/pkg/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	identityKey = "identity"

	msgLoginRequired  = "Please log in to continue."
	msgSessionExpired = "Your session has expired. Please log in again."
)

type SessionConfig struct {
	Issuer  *token.Issuer
	Cookies *CookieCodec
	Paths   PathPolicy
	Flash   *flash.Store
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// LoginPath is where unauthenticated requests are sent. Defaults to "/login".
	LoginPath string
}

// Session guards every non-public path. A valid access token lets the
// request through; an expired one is silently replaced using the refresh
// token; anything else ends the session with a redirect to the login page.
func Session(cfg SessionConfig) fiber.Handler {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	codec := cfg.Issuer.Codec()

	return func(c *fiber.Ctx) error {
		if cfg.Paths.IsPublic(c.Path()) {
			cfg.Metrics.SessionOutcome(metrics.OutcomePublic)
			return c.Next()
		}

		log := cfg.Logger.With(zap.String("path", c.Path()))
		accessRaw, refreshRaw := cfg.Cookies.Read(c)

		if accessRaw != "" {
			access, err := codec.Decode(accessRaw, models.TokenAccess)
			switch {
			case err == nil:
				cfg.Metrics.SessionOutcome(metrics.OutcomeAccessValid)
				c.Locals(identityKey, access.Identity())

				var refresh *token.Token
				if r, err := codec.Decode(refreshRaw, models.TokenRefresh); err == nil {
					refresh = &r
				}
				nextErr := c.Next()
				stamp(c, cfg.Cookies, &access, refresh)
				return nextErr
			case errors.Is(err, token.ErrTokenExpired):
				if refreshRaw == "" {
					log.Debug("access token expired, no refresh token")
					cfg.Metrics.SessionOutcome(metrics.OutcomeUnauthenticated)
					return terminate(c, cfg, msgSessionExpired)
				}
				return refreshAndServe(c, cfg, log, refreshRaw)
			default:
				// Unknown errors fail closed along with ErrInvalidToken.
				log.Info("rejected access token", zap.Error(err))
				cfg.Metrics.SessionOutcome(metrics.OutcomeAccessInvalid)
				return terminate(c, cfg, msgLoginRequired)
			}
		}

		if refreshRaw != "" {
			return refreshAndServe(c, cfg, log, refreshRaw)
		}

		cfg.Metrics.SessionOutcome(metrics.OutcomeUnauthenticated)
		return redirectToLogin(c, cfg, msgLoginRequired)
	}
}

func refreshAndServe(c *fiber.Ctx, cfg SessionConfig, log *zap.Logger, refreshRaw string) error {
	access, refresh, err := cfg.Issuer.Refresh(refreshRaw)
	if err != nil {
		outcome := metrics.OutcomeRefreshInvalid
		if errors.Is(err, token.ErrRefreshExpired) {
			outcome = metrics.OutcomeRefreshExpired
		}
		log.Info("refresh failed, ending session", zap.String("outcome", outcome), zap.Error(err))
		cfg.Metrics.SessionOutcome(outcome)
		return terminate(c, cfg, msgSessionExpired)
	}

	log.Debug("access token refreshed", zap.String("user", access.Subject))
	cfg.Metrics.SessionOutcome(metrics.OutcomeRefreshed)
	c.Locals(identityKey, access.Identity())

	// The new cookie rides on the response to this same request.
	err = c.Next()
	stamp(c, cfg.Cookies, &access, &refresh)
	return err
}

// stamp writes the session cookies unless the handler already set or
// cleared them itself.
func stamp(c *fiber.Ctx, cc *CookieCodec, access, refresh *token.Token) {
	if len(c.Response().Header.PeekCookie(AccessCookie)) == 0 {
		cc.Write(c, access, nil)
	}
	if len(c.Response().Header.PeekCookie(RefreshCookie)) == 0 {
		cc.Write(c, nil, refresh)
	}
}

// terminate ends a session: both cookies are cleared before redirecting.
func terminate(c *fiber.Ctx, cfg SessionConfig, msg string) error {
	cfg.Cookies.Clear(c)
	return redirectToLogin(c, cfg, msg)
}

func redirectToLogin(c *fiber.Ctx, cfg SessionConfig, msg string) error {
	if cfg.Flash != nil {
		if err := cfg.Flash.Set(c, flash.ClassWarning, msg); err != nil {
			cfg.Logger.Warn("flash message not stored", zap.Error(err))
		}
	}
	return c.Redirect(cfg.LoginPath, fiber.StatusFound)
}
