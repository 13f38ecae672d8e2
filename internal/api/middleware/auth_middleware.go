package middleware

import (
	"crypto/subtle"
	"strconv"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/packflow/configs"
)

const apiKeyHeader = "X-API-Key"

type AuthMiddleware struct {
	cfg config.Config
}

func NewAuthMiddleware(cfg config.Config) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg}
}

// AuthMiddleware admits requests carrying the admin API key, either as the
// api_key query parameter or the X-API-Key header. With no key configured the
// API is closed.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get(apiKeyHeader)
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing api key",
			})
		}

		if m.cfg.AdminAPIKey == "" || !equal(apiKey, m.cfg.AdminAPIKey) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid api key",
			})
		}

		c.Locals("user_id", strconv.FormatInt(m.cfg.AdminUserID, 10))
		return c.Next()
	}
}

// WebhookSecret rejects webhook calls whose :secret path segment does not match.
func (m *AuthMiddleware) WebhookSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" || !equal(c.Params("secret"), secret) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.Next()
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
