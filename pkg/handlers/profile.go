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
	msgProfileSaved = "your data successfully registered"
	msgEmailTaken   = "Email already registered"
)

type ProfilePage struct {
	Page
	Profile  models.Profile `json:"profile"`
	Editable bool           `json:"editable"`
}

type ProfileHandler struct {
	svc   *services.ProfileService
	flash *flash.Store
	log   *zap.Logger
}

func NewProfile(svc *services.ProfileService, fl *flash.Store, log *zap.Logger) *ProfileHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileHandler{svc: svc, flash: fl, log: log}
}

// Show renders any account's profile to a signed-in user.
func (h *ProfileHandler) Show(c *fiber.Ctx) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	userID, err := c.ParamsInt("id")
	if err != nil || userID < 1 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}

	profile, err := h.svc.Get(c.UserContext(), userID)
	if errors.Is(err, services.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		h.log.Error("profile lookup failed", zap.Int("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(ProfilePage{
		Page:     Page{Title: "Profile", User: &id, Message: h.flash.Pop(c)},
		Profile:  profile,
		Editable: profile.Username == id.Username || id.IsAdmin(),
	})
}

// Update saves the submitted fields. Bad input goes back to the profile
// page with a warning; success lands on home.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	actor, ok := middleware.IdentityFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	userID, err := c.ParamsInt("id")
	if err != nil || userID < 1 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}

	var req models.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	back := fmt.Sprintf("/protected/profile/%d", userID)
	_, err = h.svc.Update(c.UserContext(), actor, userID, req)
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return h.redirectWith(c, back, flash.ClassWarning, verr.Error())
	case errors.Is(err, services.ErrEmailTaken):
		return h.redirectWith(c, back, flash.ClassWarning, msgEmailTaken)
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		h.log.Error("profile update failed", zap.Int("user_id", userID), zap.String("by", actor.Username), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return h.redirectWith(c, "/", flash.ClassSuccess, msgProfileSaved)
}

func (h *ProfileHandler) redirectWith(c *fiber.Ctx, to, class, text string) error {
	if err := h.flash.Set(c, class, text); err != nil {
		h.log.Warn("flash write failed", zap.Error(err))
	}
	return c.Redirect(to, fiber.StatusSeeOther)
}
