// Package risk scores transactions before they are created.
package risk

import (
	"context"
	"math"

	"payledger/internal/models"

	"github.com/shopspring/decimal"
)

// Assessment is the input to a Scorer.
type Assessment struct {
	OwnerID  uint
	Amount   decimal.Decimal
	Currency string
	Type     models.TransactionType
	Method   models.PaymentMethod
	// FirstUse is set when the owner's wallet has never settled a transaction.
	FirstUse bool
}

// Scorer returns a score in [0, 1].
type Scorer interface {
	Score(ctx context.Context, a Assessment) (float64, error)
}

// Rules configures RuleScorer. Zero amounts take the defaults.
type Rules struct {
	LargeAmount     decimal.Decimal
	VeryLargeAmount decimal.Decimal
}

type RuleScorer struct {
	rules Rules
}

func NewRuleScorer(rules Rules) *RuleScorer {
	if !rules.LargeAmount.IsPositive() {
		rules.LargeAmount = decimal.NewFromInt(10000)
	}
	if !rules.VeryLargeAmount.IsPositive() {
		rules.VeryLargeAmount = decimal.NewFromInt(50000)
	}
	return &RuleScorer{rules: rules}
}

func (s *RuleScorer) Score(_ context.Context, a Assessment) (float64, error) {
	var riskScore float64

	if a.Amount.GreaterThan(s.rules.LargeAmount) {
		riskScore += 0.3
	}
	if a.Amount.GreaterThan(s.rules.VeryLargeAmount) {
		riskScore += 0.3
	}
	if a.FirstUse {
		riskScore += 0.2
	}
	if a.Type.Direction() == models.DirectionOutbound {
		riskScore += 0.1
	}

	return math.Min(math.Round(riskScore*100)/100, 1), nil
}
