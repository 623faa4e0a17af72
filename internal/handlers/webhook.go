package handlers

import (
	"context"

	"payledger/internal/models"
	"payledger/internal/services/payment"
	"payledger/internal/services/provider"
	"payledger/internal/utils"
	"payledger/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OutcomeHandler applies provider outcomes to the ledger.
type OutcomeHandler interface {
	HandleProviderOutcome(ctx context.Context, n payment.Notification) (*models.Transaction, error)
}

type WebhookHandler struct {
	payments OutcomeHandler
	logger   *zap.Logger
}

func NewWebhookHandler(payments OutcomeHandler, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{payments: payments, logger: logger.Named("webhook")}
}

type webhookRequest struct {
	TransactionID string `json:"transaction_id"`
	ProviderRef   string `json:"provider_ref"`
	Attempt       int    `json:"attempt"`
	Status        string `json:"status"`
	Code          string `json:"code"`
	Message       string `json:"message"`
}

type webhookResult struct {
	TransactionID string                   `json:"transaction_id"`
	Status        models.TransactionStatus `json:"status"`
	AttemptCount  int                      `json:"attempt_count"`
}

// HandleOutcome records an asynchronous provider outcome. Deliveries for
// transactions that already settled are acknowledged without effect.
func (h *WebhookHandler) HandleOutcome(c *fiber.Ctx) error {
	claims, err := utils.GetProviderClaims(c)
	if err != nil {
		return response.Unauthorized(c, err.Error())
	}

	var input webhookRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.TransactionID == "" && input.ProviderRef == "" {
		return response.BadRequest(c, "transaction_id or provider_ref is required")
	}
	if input.Attempt < 0 {
		return response.BadRequest(c, "attempt must not be negative")
	}

	tx, err := h.payments.HandleProviderOutcome(c.UserContext(), payment.Notification{
		Provider:      claims.Provider,
		TransactionID: input.TransactionID,
		ProviderRef:   input.ProviderRef,
		Attempt:       input.Attempt,
		Outcome: provider.Outcome{
			Status:      provider.OutcomeStatus(input.Status),
			ProviderRef: input.ProviderRef,
			Code:        input.Code,
			Message:     input.Message,
		},
	})
	if err != nil {
		h.logger.Warn("failed to apply provider outcome",
			zap.String("provider", string(claims.Provider)),
			zap.String("transaction_id", input.TransactionID),
			zap.String("provider_ref", input.ProviderRef),
			zap.String("status", input.Status),
			zap.Error(err))
		return response.FromError(c, err)
	}

	return response.Success(c, "Outcome recorded", webhookResult{
		TransactionID: tx.ID,
		Status:        tx.Status,
		AttemptCount:  tx.AttemptCount,
	})
}
