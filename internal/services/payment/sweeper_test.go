package payment

import (
	"context"
	"testing"
	"time"

	"payledger/internal/models"
	"payledger/internal/services/provider/sandbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_Once(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	req := payment("ext-sweep", "12")
	req.Metadata = models.ProviderMetadata{"scenario": sandbox.ScenarioPending}
	tx, err := h.svc.ProcessPayment(ctx, req)
	require.NoError(t, err)

	later := func() time.Time { return baseTime.Add(25 * time.Hour) }
	sw := NewSweeper(h.svc, time.Minute, later, nil)
	assert.Equal(t, 1, sw.Once(ctx))
	assert.Equal(t, 0, sw.Once(ctx))

	got, err := h.ledger.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewSweeper(h.svc, time.Millisecond, nil, nil).Run(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
