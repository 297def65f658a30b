package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CronSecret guards scheduled-trigger endpoints with a shared secret sent as
// "Authorization: Bearer <secret>".
func CronSecret(secret string) fiber.Handler {
	expected := []byte(secret)

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || token == "" || len(expected) == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "unauthorized",
			})
		}

		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "unauthorized",
			})
		}

		return c.Next()
	}
}
