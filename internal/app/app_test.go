package app

import (
	"context"
	"testing"

	"payledger/internal/config"
	"payledger/internal/models"
	"payledger/internal/services/risk"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskRulesFollowPolicy(t *testing.T) {
	t.Setenv("LEDGER_RISK_LARGE_AMOUNT", "100")
	t.Setenv("LEDGER_RISK_VERY_LARGE_AMOUNT", "500")

	scorer := risk.NewRuleScorer(riskRules(config.Load().Policy))

	tests := []struct {
		amount int64
		want   float64
	}{
		{50, 0},
		{200, 0.3},
		{600, 0.6},
	}
	for _, tt := range tests {
		got, err := scorer.Score(context.Background(), risk.Assessment{
			Amount: decimal.NewFromInt(tt.amount),
			Type:   models.TransactionTypePayment,
		})
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "amount %d", tt.amount)
	}
}
