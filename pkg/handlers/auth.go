package handlers

import (
	"errors"
	"fmt"

	"webauth/pkg/flash"
	"webauth/pkg/middleware"
	"webauth/pkg/models"
	"webauth/pkg/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	msgLoginFailed       = "Incorrect username or password"
	msgUsernameTaken     = "Username already registered"
	msgRegisterWelcome   = "Welcome to our website!"
	msgAnonymousGreeting = "Welcome to our site!"
)

// Page is the view model every browser route renders.
type Page struct {
	Title   string           `json:"title"`
	User    *models.Identity `json:"user"`
	Message *flash.Message   `json:"top_message,omitempty"`
	Data    string           `json:"data,omitempty"`
}

type AuthHandler struct {
	svc     *services.AuthService
	cookies *middleware.CookieCodec
	checker middleware.IdentityChecker
	flash   *flash.Store
	log     *zap.Logger
}

func NewAuth(svc *services.AuthService, cookies *middleware.CookieCodec, checker middleware.IdentityChecker, fl *flash.Store, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{svc: svc, cookies: cookies, checker: checker, flash: fl, log: log}
}

func (ah *AuthHandler) page(c *fiber.Ctx, title, data string) Page {
	return Page{
		Title:   title,
		User:    ah.checker.CheckUser(c),
		Message: ah.flash.Pop(c),
		Data:    data,
	}
}

func (ah *AuthHandler) redirectWith(c *fiber.Ctx, to, class, text string) error {
	if err := ah.flash.Set(c, class, text); err != nil {
		ah.log.Warn("flash write failed", zap.Error(err))
	}
	return c.Redirect(to, fiber.StatusFound)
}

func (ah *AuthHandler) Home(c *fiber.Ctx) error {
	p := ah.page(c, "Home", msgAnonymousGreeting)
	if p.User != nil {
		p.Data = fmt.Sprintf("Hello, %s %s !", p.User.Role, p.User.Username)
	}
	return c.JSON(p)
}

func (ah *AuthHandler) LoginPage(c *fiber.Ctx) error {
	return c.JSON(ah.page(c, "Login", ""))
}

func (ah *AuthHandler) RegisterPage(c *fiber.Ctx) error {
	return c.JSON(ah.page(c, "Register", msgRegisterWelcome))
}

func (ah *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return ah.redirectWith(c, "/login", flash.ClassWarning, msgLoginFailed)
	}

	sess, err := ah.svc.Login(c.UserContext(), req)
	if errors.Is(err, services.ErrCredentialMismatch) {
		return ah.redirectWith(c, "/login", flash.ClassWarning, msgLoginFailed)
	}
	if err != nil {
		ah.log.Error("login failed", zap.String("user", req.Username), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	ah.cookies.Write(c, &sess.Access, &sess.Refresh)
	return ah.redirectWith(c, "/", flash.ClassSuccess,
		"You are logged in with the account: "+sess.User.Username)
}

func (ah *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	sess, err := ah.svc.Register(c.UserContext(), req)
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return ah.redirectWith(c, "/register", flash.ClassWarning, verr.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		return ah.redirectWith(c, "/register", flash.ClassWarning, msgUsernameTaken)
	case err != nil:
		ah.log.Error("register failed", zap.String("user", req.Username), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	ah.cookies.Write(c, &sess.Access, &sess.Refresh)
	return ah.redirectWith(c, "/", flash.ClassSuccess,
		"You are logged in with the account: "+sess.User.Username)
}

// Logout always clears both cookies. ?login=true lands on the login page
// instead of home.
func (ah *AuthHandler) Logout(c *fiber.Ctx) error {
	ah.svc.Logout(c.UserContext(), ah.checker.CheckUser(c))
	ah.cookies.Clear(c)

	to := "/"
	if c.QueryBool("login") {
		to = "/login"
	}
	return c.Redirect(to, fiber.StatusFound)
}

// Me reports the caller's identity together with the stored account.
func (ah *AuthHandler) Me(c *fiber.Ctx) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	user, err := ah.svc.Me(c.UserContext(), id)
	if errors.Is(err, services.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	if err != nil {
		ah.log.Error("me failed", zap.String("user", id.Username), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(fiber.Map{
		"identity": id,
		"user":     user,
		"profile":  fmt.Sprintf("/protected/profile/%d", user.ID),
	})
}

func (ah *AuthHandler) SecretPlace(c *fiber.Ctx) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	return c.JSON(fiber.Map{"message": "Hello " + id.Username})
}
