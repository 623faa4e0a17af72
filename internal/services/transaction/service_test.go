package transaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/repositories/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestLedger() Ledger {
	clock := &stepClock{now: baseTime}
	return NewLedger(memory.NewTransactionStore(), LedgerConfig{
		MaxAttempts:     3,
		ConflictRetries: 50,
		ConflictBackoff: time.Microsecond,
		Clock:           clock.Now,
	}, nil, nil)
}

func newPayment(externalID string) *models.Transaction {
	return &models.Transaction{
		ExternalTransactionID: externalID,
		OwnerID:               1,
		Amount:                decimal.NewFromInt(100),
		Currency:              "USD",
		Provider:              models.ProviderSandbox,
		PaymentMethod:         models.PaymentMethodWallet,
		Type:                  models.TransactionTypePayment,
	}
}

func TestLedger_Create(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	tx, err := l.Create(ctx, newPayment("ext-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Equal(t, uint(1), tx.Version)
	assert.Equal(t, 0, tx.AttemptCount)

	dup, err := l.Create(ctx, newPayment("ext-1"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateTransaction)
	require.NotNil(t, dup)
	assert.Equal(t, tx.ID, dup.ID)
}

func TestLedger_RetryCap(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	tx, err := l.Create(ctx, newPayment("ext-retry"))
	require.NoError(t, err)

	fail := func() {
		_, err := l.Transition(ctx, tx.ID, models.StatusProcessing, nil)
		require.NoError(t, err)
		_, err = l.Transition(ctx, tx.ID, models.StatusFailed, func(tx *models.Transaction) error {
			tx.FailureCode = "card_declined"
			return nil
		})
		require.NoError(t, err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		fail()
		got, err := l.Get(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, attempt, got.AttemptCount)
		assert.Equal(t, "card_declined", got.FailureCode)

		_, err = l.Transition(ctx, tx.ID, models.StatusPending, nil)
		if attempt < 3 {
			require.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, apperrors.ErrMaxRetryAttemptsExceeded)
		}
	}

	got, err := l.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 3, got.AttemptCount)
}

func TestLedger_SettledTransitions(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	tx, err := l.Create(ctx, newPayment("ext-settled"))
	require.NoError(t, err)

	_, err = l.Transition(ctx, tx.ID, models.StatusSucceeded, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = l.Transition(ctx, tx.ID, models.StatusProcessing, nil)
	require.NoError(t, err)
	_, err = l.Transition(ctx, tx.ID, models.StatusSucceeded, nil)
	require.NoError(t, err)

	_, err = l.Transition(ctx, tx.ID, models.StatusSucceeded, nil)
	assert.ErrorIs(t, err, apperrors.ErrAlreadySettled)
	_, err = l.Transition(ctx, tx.ID, models.StatusFailed, nil)
	assert.ErrorIs(t, err, apperrors.ErrAlreadySettled)

	vetoed := errors.New("vetoed")
	_, err = l.Transition(ctx, tx.ID, models.StatusDisputed, func(*models.Transaction) error { return vetoed })
	assert.ErrorIs(t, err, vetoed)
	got, err := l.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, got.Status)
	require.NotNil(t, got.ProcessedAt)
}

func TestLedger_ConcurrentSettlementHasOneWinner(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	tx, err := l.Create(ctx, newPayment("ext-race"))
	require.NoError(t, err)
	_, err = l.Transition(ctx, tx.ID, models.StatusProcessing, nil)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	targets := []models.TransactionStatus{models.StatusSucceeded, models.StatusFailed, models.StatusCancelled}
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(to models.TransactionStatus) {
			defer wg.Done()
			_, err := l.Transition(ctx, tx.ID, to, nil)
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, apperrors.ErrAlreadySettled) || errors.Is(err, apperrors.ErrConcurrentModification), "unexpected %v", err)
		}(targets[i%len(targets)])
	}
	wg.Wait()

	// FAILED -> PENDING is never requested, so once settled nothing else applies.
	assert.Equal(t, 1, winners)
	got, err := l.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, got.Status.InFlight())
	assert.Equal(t, uint(3), got.Version)
}

func TestLedger_UpdateAndLookups(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	parent, err := l.Create(ctx, newPayment("ext-parent"))
	require.NoError(t, err)

	updated, err := l.Update(ctx, parent.ID, func(tx *models.Transaction) error {
		tx.ProviderRef = "sbx_42"
		tx.NeedsReconciliation = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(2), updated.Version)
	assert.Equal(t, models.StatusPending, updated.Status)

	byRef, err := l.GetByProviderRef(ctx, models.ProviderSandbox, "sbx_42")
	require.NoError(t, err)
	assert.True(t, byRef.NeedsReconciliation)

	child := newPayment("ext-child")
	child.Type = models.TransactionTypeRefund
	child.ParentTransactionID = &parent.ID
	_, err = l.Create(ctx, child)
	require.NoError(t, err)

	children, err := l.Children(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, models.TransactionTypeRefund, children[0].Type)

	stale, err := l.ListStale(ctx, baseTime.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, stale, 2)
}
