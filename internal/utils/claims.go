package utils

import (
	"errors"

	"payledger/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ClaimsKey is the fiber Locals key the webhook middleware stores claims under.
const ClaimsKey = "provider_claims"

// GetProviderClaims extracts the provider claims from the Fiber context.
func GetProviderClaims(c *fiber.Ctx) (*models.ProviderClaims, error) {
	v := c.Locals(ClaimsKey)
	if v == nil {
		return nil, errors.New("claims not found in context")
	}

	claims, ok := v.(*models.ProviderClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
