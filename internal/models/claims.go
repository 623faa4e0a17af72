package models

import "github.com/golang-jwt/jwt/v5"

// WebhookAudience is the audience of tokens accepted on the webhook routes.
const WebhookAudience = "payledger-webhooks"

// ProviderClaims authenticate a payment provider delivering outcomes.
type ProviderClaims struct {
	jwt.RegisteredClaims
	Provider Provider `json:"provider"`
}
