package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	wrapped := Wrap(ErrInsufficientFunds, "available %s, requested %s", "10.00", "20.00")

	assert.True(t, stderrors.Is(wrapped, ErrInsufficientFunds))
	assert.False(t, stderrors.Is(wrapped, ErrBalanceLimitExceeded))
	assert.Contains(t, wrapped.Error(), "requested 20.00")

	chained := fmt.Errorf("debit wallet 7: %w", wrapped)
	assert.True(t, stderrors.Is(chained, ErrInsufficientFunds))
	assert.Equal(t, "INSUFFICIENT_FUNDS", Code(chained))
}

func TestWithCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := WithCause(ErrProvider, cause)

	assert.True(t, stderrors.Is(err, ErrProvider))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, "payment provider failure: connection reset", err.Error())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("wallet 1: %w", ErrConcurrentModification)))
	assert.False(t, Retryable(ErrValidation))
	assert.False(t, Retryable(stderrors.New("boom")))
	assert.Equal(t, "", Code(stderrors.New("plain")))
}
