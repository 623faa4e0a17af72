// Package middleware provides HTTP middleware components for the application.
package middleware

import (
	"strings"

	"payledger/internal/models"
	"payledger/internal/utils"
	"payledger/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WebhookAuth validates the provider JWT on webhook routes.
// It checks for:
// - Presence of Authorization header with Bearer token
// - Valid HS256 signature, audience and expiry
// - A provider claim naming the provider in the path
func WebhookAuth(secret string, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("auth")

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return response.Unauthorized(c, "missing authorization header")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return response.Unauthorized(c, "invalid authorization format")
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := utils.ParseWebhookToken(secret, tokenString)
		if err != nil {
			logger.Info("rejected webhook token", zap.String("path", c.Path()), zap.Error(err))
			return response.Unauthorized(c, "invalid token")
		}

		provider, ok := models.ParseProvider(c.Params("provider"))
		if !ok {
			return response.Error(c, fiber.StatusNotFound, "unknown provider")
		}
		if claims.Provider != provider {
			logger.Warn("webhook token used for another provider",
				zap.String("token_provider", string(claims.Provider)),
				zap.String("path_provider", string(provider)))
			return response.Forbidden(c, "token is not valid for this provider")
		}

		c.Locals(utils.ClaimsKey, claims)
		return c.Next()
	}
}
