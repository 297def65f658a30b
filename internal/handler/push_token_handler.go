package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
)

type PushTokenHandler struct {
	tokens domain.PushTokenRepository
}

func NewPushTokenHandler(tokens domain.PushTokenRepository) *PushTokenHandler {
	return &PushTokenHandler{tokens: tokens}
}

// Register POST /v1/members/:id/push-tokens
func (h *PushTokenHandler) Register(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return badRequest(c, "token is required")
	}

	if err := h.tokens.Register(c.UserContext(), c.Params("id"), req.Token); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
