package response

import (
	"errors"
	"fmt"
	"testing"

	apperrors "payledger/internal/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.Wrap(apperrors.ErrValidation, "bad"), fiber.StatusBadRequest},
		{apperrors.ErrTransactionNotFound, fiber.StatusNotFound},
		{fmt.Errorf("lookup: %w", apperrors.ErrWalletNotFound), fiber.StatusNotFound},
		{apperrors.ErrAlreadySettled, fiber.StatusConflict},
		{apperrors.ErrInsufficientFunds, fiber.StatusUnprocessableEntity},
		{apperrors.Wrap(apperrors.ErrProvider, "card_declined"), fiber.StatusBadGateway},
		{apperrors.WithCause(apperrors.ErrLedgerInconsistency, errors.New("db down")), fiber.StatusInternalServerError},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
