// Package stripe implements the STRIPE gateway on PaymentIntents.
package stripe

import (
	"context"
	"errors"
	"strings"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/services/provider"

	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

// Metadata keys accepted by the gateway.
const (
	MetaPaymentMethod       = "payment_method"
	MetaCustomer            = "customer"
	MetaCaptureMethod       = "capture_method"
	MetaStatementDescriptor = "statement_descriptor"
	MetaDescription         = "description"
)

const (
	captureAutomatic = "automatic"
	captureManual    = "manual"
)

type paymentIntents interface {
	New(params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error)
	Capture(id string, params *stripego.PaymentIntentCaptureParams) (*stripego.PaymentIntent, error)
	Cancel(id string, params *stripego.PaymentIntentCancelParams) (*stripego.PaymentIntent, error)
}

type refunds interface {
	New(params *stripego.RefundParams) (*stripego.Refund, error)
}

type Gateway struct {
	intents paymentIntents
	refunds refunds
	logger  *zap.Logger
}

var _ provider.Gateway = (*Gateway)(nil)

// New creates a gateway using secretKey for every request.
func New(secretKey string, logger *zap.Logger) *Gateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return newGateway(sc.PaymentIntents, sc.Refunds, logger)
}

func newGateway(intents paymentIntents, refunds refunds, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{intents: intents, refunds: refunds, logger: logger.Named("stripe")}
}

func (g *Gateway) Name() models.Provider {
	return models.ProviderStripe
}

func (g *Gateway) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Methods: []models.PaymentMethod{models.PaymentMethodCard},
		Metadata: models.MetadataSchema{
			Allowed: []string{MetaPaymentMethod, MetaCustomer, MetaCaptureMethod, MetaStatementDescriptor, MetaDescription},
			Required: map[models.PaymentMethod][]string{
				models.PaymentMethodCard: {MetaPaymentMethod},
			},
			Values: map[string][]string{
				MetaCaptureMethod: {captureAutomatic, captureManual},
			},
		},
	}
}

func (g *Gateway) Submit(ctx context.Context, s provider.Submission) (provider.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return provider.Outcome{}, err
	}
	amount, err := ToMinorUnits(s.Amount, s.Currency)
	if err != nil {
		return provider.Outcome{}, err
	}

	params := &stripego.PaymentIntentParams{
		Amount:        stripego.Int64(amount),
		Currency:      stripego.String(strings.ToLower(s.Currency)),
		PaymentMethod: stripego.String(s.Metadata[MetaPaymentMethod]),
		Confirm:       stripego.Bool(true),
		CaptureMethod: stripego.String(captureAutomatic),
	}
	if s.Metadata[MetaCaptureMethod] == captureManual {
		params.CaptureMethod = stripego.String(captureManual)
	}
	if v := s.Metadata[MetaCustomer]; v != "" {
		params.Customer = stripego.String(v)
	}
	if v := s.Metadata[MetaStatementDescriptor]; v != "" {
		params.StatementDescriptor = stripego.String(v)
	}
	if v := s.Metadata[MetaDescription]; v != "" {
		params.Description = stripego.String(v)
	}
	params.SetIdempotencyKey(s.IdempotencyKey)
	params.AddMetadata("transaction_id", s.TransactionID)
	params.AddMetadata("transaction_type", string(s.Type))

	pi, err := g.intents.New(params)
	if err != nil {
		return g.errorOutcome("submit", s.TransactionID, err)
	}
	return intentOutcome(pi), nil
}

func (g *Gateway) Capture(ctx context.Context, providerRef, idempotencyKey string, amount decimal.Decimal, currency string) (provider.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return provider.Outcome{}, err
	}
	minor, err := ToMinorUnits(amount, currency)
	if err != nil {
		return provider.Outcome{}, err
	}
	params := &stripego.PaymentIntentCaptureParams{AmountToCapture: stripego.Int64(minor)}
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := g.intents.Capture(providerRef, params)
	if err != nil {
		return g.errorOutcome("capture", providerRef, err)
	}
	return intentOutcome(pi), nil
}

func (g *Gateway) Cancel(ctx context.Context, providerRef string) (provider.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return provider.Outcome{}, err
	}
	pi, err := g.intents.Cancel(providerRef, &stripego.PaymentIntentCancelParams{})
	if err != nil {
		return g.errorOutcome("cancel", providerRef, err)
	}
	if pi.Status == stripego.PaymentIntentStatusCanceled {
		return provider.Outcome{Status: provider.OutcomeSucceeded, ProviderRef: pi.ID}, nil
	}
	out := intentOutcome(pi)
	if out.Status == provider.OutcomeSucceeded {
		// Captured before the cancel reached Stripe.
		return provider.Outcome{Status: provider.OutcomeFailed, ProviderRef: pi.ID, Code: "already_captured",
			Message: "payment intent was captured"}, nil
	}
	return out, nil
}

func (g *Gateway) Refund(ctx context.Context, cmd provider.RefundCommand) (provider.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return provider.Outcome{}, err
	}
	amount, err := ToMinorUnits(cmd.Amount, cmd.Currency)
	if err != nil {
		return provider.Outcome{}, err
	}
	params := &stripego.RefundParams{
		PaymentIntent: stripego.String(cmd.ParentProviderRef),
		Amount:        stripego.Int64(amount),
	}
	switch cmd.Reason {
	case "duplicate", "fraudulent", "requested_by_customer":
		params.Reason = stripego.String(cmd.Reason)
	case "":
	default:
		params.AddMetadata("reason", cmd.Reason)
	}
	params.SetIdempotencyKey(cmd.IdempotencyKey)
	params.AddMetadata("refund_transaction_id", cmd.RefundID)

	r, err := g.refunds.New(params)
	if err != nil {
		return g.errorOutcome("refund", cmd.RefundID, err)
	}
	return refundOutcome(r), nil
}

func intentOutcome(pi *stripego.PaymentIntent) provider.Outcome {
	out := provider.Outcome{ProviderRef: pi.ID}
	switch pi.Status {
	case stripego.PaymentIntentStatusSucceeded:
		out.Status = provider.OutcomeSucceeded
	case stripego.PaymentIntentStatusRequiresCapture:
		out.Status = provider.OutcomePending
		out.Code = provider.CodeRequiresCapture
	case stripego.PaymentIntentStatusProcessing, stripego.PaymentIntentStatusRequiresAction,
		stripego.PaymentIntentStatusRequiresConfirmation:
		out.Status = provider.OutcomePending
		out.Code = string(pi.Status)
	case stripego.PaymentIntentStatusCanceled:
		out.Status = provider.OutcomeFailed
		out.Code = "canceled"
		out.Message = "payment intent was canceled"
	default:
		out.Status = provider.OutcomeFailed
		out.Code = "payment_failed"
		if e := pi.LastPaymentError; e != nil {
			out.Code = errorCode(e)
			out.Message = e.Msg
		}
	}
	return out
}

func refundOutcome(r *stripego.Refund) provider.Outcome {
	out := provider.Outcome{ProviderRef: r.ID}
	switch r.Status {
	case stripego.RefundStatusSucceeded:
		out.Status = provider.OutcomeSucceeded
	case stripego.RefundStatusPending:
		out.Status = provider.OutcomePending
		out.Code = "pending"
	default:
		out.Status = provider.OutcomeFailed
		out.Code = string(r.Status)
		if r.FailureReason != "" {
			out.Code = string(r.FailureReason)
		}
	}
	return out
}

// errorOutcome turns declines and rejected requests into FAILED outcomes.
// Transport and server side failures are returned as errors.
func (g *Gateway) errorOutcome(op, ref string, err error) (provider.Outcome, error) {
	var se *stripego.Error
	if !errors.As(err, &se) {
		g.logger.Warn("stripe request failed", zap.String("op", op), zap.String("ref", ref), zap.Error(err))
		return provider.Outcome{}, err
	}
	switch se.Type {
	case stripego.ErrorTypeCard, stripego.ErrorTypeInvalidRequest, stripego.ErrorTypeIdempotency:
		g.logger.Info("stripe declined request",
			zap.String("op", op),
			zap.String("ref", ref),
			zap.String("code", errorCode(se)))
		return provider.Outcome{Status: provider.OutcomeFailed, Code: errorCode(se), Message: se.Msg}, nil
	default:
		g.logger.Warn("stripe unavailable",
			zap.String("op", op),
			zap.String("ref", ref),
			zap.String("type", string(se.Type)),
			zap.Int("http_status", se.HTTPStatusCode))
		return provider.Outcome{}, err
	}
}

func errorCode(e *stripego.Error) string {
	if e.DeclineCode != "" {
		return string(e.DeclineCode)
	}
	if e.Code != "" {
		return string(e.Code)
	}
	if e.Type != "" {
		return string(e.Type)
	}
	return "payment_failed"
}

var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

var threeDecimal = map[string]bool{
	"BHD": true, "JOD": true, "KWD": true, "OMR": true, "TND": true,
}

// Exponent returns the number of minor unit digits Stripe uses for currency.
func Exponent(currency string) int32 {
	c := strings.ToUpper(currency)
	switch {
	case zeroDecimal[c]:
		return 0
	case threeDecimal[c]:
		return 3
	default:
		return 2
	}
}

// ToMinorUnits converts amount to Stripe's integer representation. Amounts
// with more precision than the currency allows are rejected.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	scaled := amount.Shift(Exponent(currency))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, apperrors.Wrap(apperrors.ErrValidation, "amount %s has more precision than %s allows", amount, currency)
	}
	if !scaled.IsPositive() {
		return 0, apperrors.Wrap(apperrors.ErrValidation, "amount %s must be positive", amount)
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}
