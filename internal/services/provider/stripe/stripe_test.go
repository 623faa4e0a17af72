package stripe

import (
	"context"
	"errors"
	"testing"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/services/provider"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v72"
)

type MockIntents struct {
	mock.Mock
}

func (m *MockIntents) New(params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error) {
	args := m.Called(params)
	if pi := args.Get(0); pi != nil {
		return pi.(*stripego.PaymentIntent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIntents) Capture(id string, params *stripego.PaymentIntentCaptureParams) (*stripego.PaymentIntent, error) {
	args := m.Called(id, params)
	if pi := args.Get(0); pi != nil {
		return pi.(*stripego.PaymentIntent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIntents) Cancel(id string, params *stripego.PaymentIntentCancelParams) (*stripego.PaymentIntent, error) {
	args := m.Called(id, params)
	if pi := args.Get(0); pi != nil {
		return pi.(*stripego.PaymentIntent), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockRefunds struct {
	mock.Mock
}

func (m *MockRefunds) New(params *stripego.RefundParams) (*stripego.Refund, error) {
	args := m.Called(params)
	if r := args.Get(0); r != nil {
		return r.(*stripego.Refund), args.Error(1)
	}
	return nil, args.Error(1)
}

func cardSubmission() provider.Submission {
	return provider.Submission{
		TransactionID:  "tx-1",
		IdempotencyKey: "tx-1-1",
		Amount:         decimal.RequireFromString("12.34"),
		Currency:       "USD",
		Method:         models.PaymentMethodCard,
		Type:           models.TransactionTypePayment,
		Metadata:       models.ProviderMetadata{MetaPaymentMethod: "pm_card_visa"},
	}
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
		wantErr  bool
	}{
		{"12.34", "USD", 1234, false},
		{"0.01", "eur", 1, false},
		{"5000", "XAF", 5000, false},
		{"1500", "JPY", 1500, false},
		{"1.5", "JPY", 0, true},
		{"1.234", "KWD", 1234, false},
		{"12.345", "USD", 0, true},
		{"0", "USD", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.amount+" "+tt.currency, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, FromMinorUnits(got, tt.currency).Equal(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestGateway_SubmitMapsIntentStatus(t *testing.T) {
	tests := []struct {
		name   string
		intent *stripego.PaymentIntent
		status provider.OutcomeStatus
		code   string
	}{
		{"succeeded", &stripego.PaymentIntent{ID: "pi_1", Status: stripego.PaymentIntentStatusSucceeded}, provider.OutcomeSucceeded, ""},
		{"requires capture", &stripego.PaymentIntent{ID: "pi_2", Status: stripego.PaymentIntentStatusRequiresCapture}, provider.OutcomePending, provider.CodeRequiresCapture},
		{"processing", &stripego.PaymentIntent{ID: "pi_3", Status: stripego.PaymentIntentStatusProcessing}, provider.OutcomePending, "processing"},
		{"declined", &stripego.PaymentIntent{ID: "pi_4", Status: stripego.PaymentIntentStatusRequiresPaymentMethod,
			LastPaymentError: &stripego.Error{Code: stripego.ErrorCodeCardDeclined, DeclineCode: "insufficient_funds", Msg: "Your card has insufficient funds."}},
			provider.OutcomeFailed, "insufficient_funds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intents := new(MockIntents)
			intents.On("New", mock.MatchedBy(func(p *stripego.PaymentIntentParams) bool {
				return *p.Amount == 1234 && *p.Currency == "usd" && *p.IdempotencyKey == "tx-1-1" &&
					*p.CaptureMethod == "automatic" && p.Metadata["transaction_id"] == "tx-1"
			})).Return(tt.intent, nil)
			g := newGateway(intents, new(MockRefunds), nil)

			out, err := g.Submit(context.Background(), cardSubmission())
			require.NoError(t, err)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.code, out.Code)
			assert.Equal(t, tt.intent.ID, out.ProviderRef)
			intents.AssertExpectations(t)
		})
	}
}

func TestGateway_SubmitManualCapture(t *testing.T) {
	intents := new(MockIntents)
	intents.On("New", mock.MatchedBy(func(p *stripego.PaymentIntentParams) bool {
		return *p.CaptureMethod == "manual"
	})).Return(&stripego.PaymentIntent{ID: "pi_m", Status: stripego.PaymentIntentStatusRequiresCapture}, nil)
	g := newGateway(intents, new(MockRefunds), nil)

	s := cardSubmission()
	s.Metadata[MetaCaptureMethod] = "manual"
	out, err := g.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, out.AwaitingCapture())

	intents.On("Capture", "pi_m", mock.MatchedBy(func(p *stripego.PaymentIntentCaptureParams) bool {
		return *p.AmountToCapture == 1234 && *p.IdempotencyKey == "tx-1-capture"
	})).Return(&stripego.PaymentIntent{ID: "pi_m", Status: stripego.PaymentIntentStatusSucceeded}, nil)
	out, err = g.Capture(context.Background(), "pi_m", "tx-1-capture", decimal.RequireFromString("12.34"), "USD")
	require.NoError(t, err)
	assert.Equal(t, provider.OutcomeSucceeded, out.Status)
}

func TestGateway_ErrorMapping(t *testing.T) {
	t.Run("card error is a failed outcome", func(t *testing.T) {
		intents := new(MockIntents)
		intents.On("New", mock.Anything).Return(nil, &stripego.Error{
			Type: stripego.ErrorTypeCard, Code: stripego.ErrorCodeCardDeclined, DeclineCode: "do_not_honor", Msg: "declined",
		})
		g := newGateway(intents, new(MockRefunds), nil)

		out, err := g.Submit(context.Background(), cardSubmission())
		require.NoError(t, err)
		assert.Equal(t, provider.OutcomeFailed, out.Status)
		assert.Equal(t, "do_not_honor", out.Code)
		assert.Equal(t, "declined", out.Message)
	})

	t.Run("api error is returned", func(t *testing.T) {
		intents := new(MockIntents)
		intents.On("New", mock.Anything).Return(nil, &stripego.Error{Type: stripego.ErrorTypeAPI, HTTPStatusCode: 502})
		g := newGateway(intents, new(MockRefunds), nil)

		_, err := g.Submit(context.Background(), cardSubmission())
		require.Error(t, err)
		out, err := provider.Normalize(provider.Outcome{}, err)
		require.NoError(t, err)
		assert.Equal(t, provider.CodeUnavailable, out.Code)
	})

	t.Run("network error is returned", func(t *testing.T) {
		boom := errors.New("dial tcp: connection refused")
		refunds := new(MockRefunds)
		refunds.On("New", mock.Anything).Return(nil, boom)
		g := newGateway(new(MockIntents), refunds, nil)

		_, err := g.Refund(context.Background(), provider.RefundCommand{RefundID: "rf", ParentProviderRef: "pi_1", Amount: decimal.NewFromInt(1), Currency: "USD"})
		assert.ErrorIs(t, err, boom)
	})
}

func TestGateway_Refund(t *testing.T) {
	refunds := new(MockRefunds)
	refunds.On("New", mock.MatchedBy(func(p *stripego.RefundParams) bool {
		return p.Reason != nil && *p.Reason == "requested_by_customer" &&
			*p.PaymentIntent == "pi_1" && *p.Amount == 500 && *p.IdempotencyKey == "rf-1-1"
	})).Return(&stripego.Refund{ID: "re_1", Status: stripego.RefundStatusSucceeded}, nil).Once()
	refunds.On("New", mock.MatchedBy(func(p *stripego.RefundParams) bool {
		return p.Reason == nil && p.Metadata["reason"] == "damaged item"
	})).Return(&stripego.Refund{ID: "re_2", Status: stripego.RefundStatusPending}, nil).Once()
	g := newGateway(new(MockIntents), refunds, nil)

	out, err := g.Refund(context.Background(), provider.RefundCommand{
		RefundID: "rf-1", ParentProviderRef: "pi_1", IdempotencyKey: "rf-1-1",
		Amount: decimal.NewFromInt(5), Currency: "USD", Reason: "requested_by_customer",
	})
	require.NoError(t, err)
	assert.Equal(t, provider.OutcomeSucceeded, out.Status)
	assert.Equal(t, "re_1", out.ProviderRef)

	out, err = g.Refund(context.Background(), provider.RefundCommand{
		RefundID: "rf-2", ParentProviderRef: "pi_1", Amount: decimal.NewFromInt(5), Currency: "USD", Reason: "damaged item",
	})
	require.NoError(t, err)
	assert.Equal(t, provider.OutcomePending, out.Status)
	refunds.AssertExpectations(t)
}

func TestGateway_Cancel(t *testing.T) {
	intents := new(MockIntents)
	intents.On("Cancel", "pi_c", mock.Anything).Return(&stripego.PaymentIntent{ID: "pi_c", Status: stripego.PaymentIntentStatusCanceled}, nil)
	g := newGateway(intents, new(MockRefunds), nil)

	out, err := g.Cancel(context.Background(), "pi_c")
	require.NoError(t, err)
	assert.Equal(t, provider.OutcomeSucceeded, out.Status)
}
