package utils

import (
	"errors"
	"fmt"
	"time"

	"payledger/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const webhookIssuer = "payledger"

// GenerateWebhookToken signs an HS256 token a provider presents when
// delivering outcomes.
func GenerateWebhookToken(secret string, provider models.Provider, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("webhook secret not configured")
	}
	if !provider.Valid() {
		return "", fmt.Errorf("unknown provider %q", provider)
	}

	claims := models.ProviderClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    webhookIssuer,
			Subject:   string(provider),
			Audience:  jwt.ClaimStrings{models.WebhookAudience},
		},
		Provider: provider,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseWebhookToken validates tokenStr and returns its provider claims.
func ParseWebhookToken(secret, tokenStr string) (*models.ProviderClaims, error) {
	if secret == "" {
		return nil, errors.New("webhook secret not configured")
	}

	claims := &models.ProviderClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(models.WebhookAudience),
		jwt.WithIssuer(webhookIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.Provider.Valid() {
		return nil, fmt.Errorf("token names unknown provider %q", claims.Provider)
	}
	return claims, nil
}
