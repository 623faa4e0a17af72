package response

import (
	"errors"

	apperrors "payledger/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func ServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, message)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, message)
}

// FromError writes err with the status its domain code maps to. Errors
// without a domain code are reported as internal without their message.
func FromError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		return ServerError(c, "internal error")
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  apperrors.Code(err),
	})
}

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrInvalidRefundAmount):
		return fiber.StatusBadRequest
	case errors.Is(err, apperrors.ErrTransactionNotFound),
		errors.Is(err, apperrors.ErrWalletNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperrors.ErrDuplicateTransaction),
		errors.Is(err, apperrors.ErrInvalidPaymentState),
		errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrAlreadySettled),
		errors.Is(err, apperrors.ErrConcurrentModification):
		return fiber.StatusConflict
	case errors.Is(err, apperrors.ErrInsufficientFunds),
		errors.Is(err, apperrors.ErrInsufficientReservedFunds),
		errors.Is(err, apperrors.ErrInsufficientPendingFunds),
		errors.Is(err, apperrors.ErrBalanceLimitExceeded),
		errors.Is(err, apperrors.ErrLimitExceeded),
		errors.Is(err, apperrors.ErrWalletNotActive),
		errors.Is(err, apperrors.ErrRefundNotAllowed),
		errors.Is(err, apperrors.ErrMaxRetryAttemptsExceeded),
		errors.Is(err, apperrors.ErrRiskRejected):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrProvider):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
