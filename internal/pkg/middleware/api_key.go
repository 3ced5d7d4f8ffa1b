package middleware

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgerlink/ledgerlink/internal/pkg/env"
)

// RequireAPIKey guards the admin API with the ADMIN_API_KEY shared secret,
// expected in the X-API-Key header. With no key configured the admin API is
// disabled entirely.
func RequireAPIKey() fiber.Handler {
	configured := env.GetEnv("ADMIN_API_KEY", "")

	return func(c *fiber.Ctx) error {
		if configured == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "admin API is not configured",
			})
		}

		provided := c.Get("X-API-Key")
		want := sha256.Sum256([]byte(configured))
		got := sha256.Sum256([]byte(provided))
		if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid API key",
			})
		}

		return c.Next()
	}
}
