// Package provider defines the gateway every payment provider implements and
// the registry the orchestrator resolves them from.
package provider

import (
	"context"
	"errors"
	"sort"
	"sync"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"

	"github.com/shopspring/decimal"
)

// OutcomeStatus is the provider's view of an attempt.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "SUCCEEDED"
	OutcomeFailed    OutcomeStatus = "FAILED"
	OutcomePending   OutcomeStatus = "PENDING"
)

// CodeUnavailable is the failure code used when the provider could not be reached.
const CodeUnavailable = "provider_unavailable"

// CodeRequiresCapture marks a pending outcome that waits for an explicit capture.
const CodeRequiresCapture = "requires_capture"

// Outcome is the normalized result of a gateway call.
type Outcome struct {
	Status      OutcomeStatus `json:"status"`
	ProviderRef string        `json:"provider_ref,omitempty"`
	Code        string        `json:"code,omitempty"`
	Message     string        `json:"message,omitempty"`
}

// Valid reports whether s is a known outcome status.
func (s OutcomeStatus) Valid() bool {
	switch s {
	case OutcomeSucceeded, OutcomeFailed, OutcomePending:
		return true
	}
	return false
}

// AwaitingCapture reports whether the attempt was authorized but not captured.
func (o Outcome) AwaitingCapture() bool {
	return o.Status == OutcomePending && o.Code == CodeRequiresCapture
}

// Submission is one attempt of a payment transaction.
type Submission struct {
	TransactionID  string
	IdempotencyKey string
	OwnerID        uint
	Amount         decimal.Decimal
	Currency       string
	Method         models.PaymentMethod
	Type           models.TransactionType
	Metadata       models.ProviderMetadata
}

// RefundCommand asks the provider to return part or all of a settled payment.
type RefundCommand struct {
	RefundID          string
	ParentProviderRef string
	IdempotencyKey    string
	Amount            decimal.Decimal
	Currency          string
	Reason            string
}

// Capabilities describes what a gateway accepts.
type Capabilities struct {
	Methods []models.PaymentMethod
	// Currencies empty means any supported currency.
	Currencies []string
	Metadata   models.MetadataSchema
}

// Supports reports whether the gateway handles method in currency.
func (c Capabilities) Supports(method models.PaymentMethod, currency string) bool {
	methodOK := false
	for _, m := range c.Methods {
		if m == method {
			methodOK = true
			break
		}
	}
	if !methodOK {
		return false
	}
	if len(c.Currencies) == 0 {
		return true
	}
	for _, cur := range c.Currencies {
		if cur == currency {
			return true
		}
	}
	return false
}

// Gateway is implemented by every payment provider.
type Gateway interface {
	Name() models.Provider
	Capabilities() Capabilities
	Submit(ctx context.Context, s Submission) (Outcome, error)
	Capture(ctx context.Context, providerRef, idempotencyKey string, amount decimal.Decimal, currency string) (Outcome, error)
	Cancel(ctx context.Context, providerRef string) (Outcome, error)
	Refund(ctx context.Context, cmd RefundCommand) (Outcome, error)
}

// Normalize folds a transport error into a FAILED outcome. Context
// cancellation is returned as is so callers can stop.
func Normalize(out Outcome, err error) (Outcome, error) {
	if err == nil {
		if !out.Status.Valid() {
			return Outcome{Status: OutcomeFailed, ProviderRef: out.ProviderRef, Code: CodeUnavailable,
				Message: "provider returned unknown status " + string(out.Status)}, nil
		}
		return out, nil
	}
	if errors.Is(err, context.Canceled) {
		return Outcome{}, err
	}
	return Outcome{
		Status:      OutcomeFailed,
		ProviderRef: out.ProviderRef,
		Code:        CodeUnavailable,
		Message:     err.Error(),
	}, nil
}

// Registry maps provider names to gateways.
type Registry struct {
	mu       sync.RWMutex
	gateways map[models.Provider]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[models.Provider]Gateway)}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// Register adds or replaces the gateway for g.Name().
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Name()] = g
}

func (r *Registry) Get(p models.Provider) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[p]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "provider %s is not registered", p)
	}
	return g, nil
}

func (r *Registry) Providers() []models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Provider, 0, len(r.gateways))
	for p := range r.gateways {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
