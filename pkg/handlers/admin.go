package handlers

import (
	"errors"

	"webauth/pkg/middleware"
	"webauth/pkg/models"
	"webauth/pkg/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AdminHandler struct {
	svc *services.AuthService
	log *zap.Logger
}

func NewAdmin(svc *services.AuthService, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{svc: svc, log: log}
}

func (h *AdminHandler) Users(c *fiber.Ctx) error {
	users, err := h.svc.ListUsers(c.UserContext())
	if err != nil {
		h.log.Error("list users failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(fiber.Map{"users": users, "total": len(users)})
}

func (h *AdminHandler) SetRole(c *fiber.Ctx) error {
	actor, _ := middleware.IdentityFrom(c)

	var req models.RoleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	user, err := h.svc.SetRole(c.UserContext(), actor, c.Params("username"), req.Role)
	switch {
	case errors.Is(err, services.ErrInvalidRole):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		h.log.Error("set role failed", zap.String("target", c.Params("username")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(user)
}
