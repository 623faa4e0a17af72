package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"payledger/internal/metrics"
	"payledger/internal/services/payment"
	"payledger/internal/services/transaction"
	"payledger/internal/services/wallet"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ wallet.MetricsCollector      = (*metrics.WalletMetrics)(nil)
	_ transaction.MetricsCollector = (*metrics.LedgerMetrics)(nil)
	_ payment.MetricsCollector     = (*metrics.PaymentMetrics)(nil)
)

func TestCollector_Records(t *testing.T) {
	c := metrics.NewCollector()

	w := c.Wallets()
	w.RecordOperationResult("CREDIT", "success")
	w.RecordOperationResult("CREDIT", "success")
	w.RecordOperationResult("DEBIT", "insufficient_funds")
	w.RecordOperationDuration("CREDIT", 15*time.Millisecond)
	w.RecordCacheHit("balance")
	w.RecordConflict("CREDIT")

	l := c.Ledger()
	l.RecordTransition("PAYMENT", "PENDING", "PROCESSING")
	l.RecordConflict("transition")

	p := c.Payments()
	p.RecordOutcome("PAYMENT", "SUCCEEDED")
	p.RecordRiskScore(0.3)
	p.RecordInconsistency("CREDIT")
	p.RecordPublishFailure("transaction.created")
	p.RecordExpired(0)
	p.RecordExpired(4)

	count, err := testutil.GatherAndCount(c.Registry(),
		"payledger_wallet_operations_total",
		"payledger_version_conflicts_total",
		"payledger_transactions_expired_total")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	expected := `
# HELP payledger_version_conflicts_total Optimistic concurrency conflicts by store and operation
# TYPE payledger_version_conflicts_total counter
payledger_version_conflicts_total{operation="CREDIT",store="wallet"} 1
payledger_version_conflicts_total{operation="transition",store="transaction"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "payledger_version_conflicts_total"))

	expired := `
# HELP payledger_transactions_expired_total Transactions expired by the sweeper
# TYPE payledger_transactions_expired_total counter
payledger_transactions_expired_total 4
`
	assert.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expired), "payledger_transactions_expired_total"))
}

func TestCollector_Handler(t *testing.T) {
	c := metrics.NewCollector()
	c.Payments().RecordOutcome("REFUND", "FAILED")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `payledger_transaction_outcomes_total{status="FAILED",type="REFUND"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
