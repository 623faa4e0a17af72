// Package sandbox is a deterministic in-process gateway for local
// development and tests.
//
// The outcome of a call is taken from the next scripted result for the
// operation, or else from the "scenario" metadata key of the submission:
//
//	succeed (default) | fail | pending | authorize
//
// "fail" uses the "failure_code" key as the decline code. Calls repeating an
// idempotency key replay the first outcome.
package sandbox

import (
	"context"
	"fmt"
	"sync"

	"payledger/internal/models"
	"payledger/internal/services/provider"

	"github.com/shopspring/decimal"
)

type Operation string

const (
	OpSubmit  Operation = "submit"
	OpCapture Operation = "capture"
	OpCancel  Operation = "cancel"
	OpRefund  Operation = "refund"
)

// Scenario values.
const (
	ScenarioSucceed   = "succeed"
	ScenarioFail      = "fail"
	ScenarioPending   = "pending"
	ScenarioAuthorize = "authorize"
)

const defaultDeclineCode = "card_declined"

// Result is a scripted answer. Err simulates a transport failure.
type Result struct {
	Outcome provider.Outcome
	Err     error
}

// Call records one gateway invocation.
type Call struct {
	Op             Operation
	TransactionID  string
	ProviderRef    string
	IdempotencyKey string
	Amount         decimal.Decimal
}

type Gateway struct {
	mu      sync.Mutex
	seq     int
	script  map[Operation][]Result
	replays map[string]provider.Outcome
	calls   []Call
}

var _ provider.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		script:  make(map[Operation][]Result),
		replays: make(map[string]provider.Outcome),
	}
}

// Enqueue scripts the next results for op.
func (g *Gateway) Enqueue(op Operation, results ...Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.script[op] = append(g.script[op], results...)
}

// Calls returns a copy of the recorded calls.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallCount returns how many times op was invoked.
func (g *Gateway) CallCount(op Operation) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (g *Gateway) Name() models.Provider {
	return models.ProviderSandbox
}

func (g *Gateway) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Methods: []models.PaymentMethod{models.PaymentMethodCard, models.PaymentMethodWallet, models.PaymentMethodBankTransfer},
		Metadata: models.MetadataSchema{
			Allowed: []string{"scenario", "failure_code", "description", "reference"},
			Values: map[string][]string{
				"scenario": {ScenarioSucceed, ScenarioFail, ScenarioPending, ScenarioAuthorize},
			},
		},
	}
}

func (g *Gateway) Submit(ctx context.Context, s provider.Submission) (provider.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return provider.Outcome{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Op: OpSubmit, TransactionID: s.TransactionID, IdempotencyKey: s.IdempotencyKey, Amount: s.Amount})
	if out, ok := g.replays[s.IdempotencyKey]; ok && s.IdempotencyKey != "" {
		return out, nil
	}
	ref := g.nextRef("sbx")
	res, scripted := g.pop(OpSubmit)
	if !scripted {
		res = Result{Outcome: scenarioOutcome(s.Metadata)}
	}
	if res.Err != nil {
		return provider.Outcome{}, res.Err
	}
	out := res.Outcome
	if out.ProviderRef == "" {
		out.ProviderRef = ref
	}
	if s.IdempotencyKey != "" {
		g.replays[s.IdempotencyKey] = out
	}
	return out, nil
}

func (g *Gateway) Capture(ctx context.Context, providerRef, idempotencyKey string, amount decimal.Decimal, _ string) (provider.Outcome, error) {
	return g.simple(ctx, Call{Op: OpCapture, ProviderRef: providerRef, IdempotencyKey: idempotencyKey, Amount: amount})
}

func (g *Gateway) Cancel(ctx context.Context, providerRef string) (provider.Outcome, error) {
	return g.simple(ctx, Call{Op: OpCancel, ProviderRef: providerRef})
}

func (g *Gateway) Refund(ctx context.Context, cmd provider.RefundCommand) (provider.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return provider.Outcome{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Op: OpRefund, TransactionID: cmd.RefundID, ProviderRef: cmd.ParentProviderRef,
		IdempotencyKey: cmd.IdempotencyKey, Amount: cmd.Amount})
	if out, ok := g.replays[cmd.IdempotencyKey]; ok && cmd.IdempotencyKey != "" {
		return out, nil
	}
	res, scripted := g.pop(OpRefund)
	if !scripted {
		res = Result{Outcome: provider.Outcome{Status: provider.OutcomeSucceeded}}
	}
	if res.Err != nil {
		return provider.Outcome{}, res.Err
	}
	out := res.Outcome
	if out.ProviderRef == "" {
		out.ProviderRef = g.nextRef("sbx_rf")
	}
	if cmd.IdempotencyKey != "" {
		g.replays[cmd.IdempotencyKey] = out
	}
	return out, nil
}

// simple handles operations that succeed on the given ref unless scripted.
func (g *Gateway) simple(ctx context.Context, call Call) (provider.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return provider.Outcome{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, call)
	res, scripted := g.pop(call.Op)
	if !scripted {
		res = Result{Outcome: provider.Outcome{Status: provider.OutcomeSucceeded}}
	}
	if res.Err != nil {
		return provider.Outcome{}, res.Err
	}
	out := res.Outcome
	if out.ProviderRef == "" {
		out.ProviderRef = call.ProviderRef
	}
	return out, nil
}

func (g *Gateway) pop(op Operation) (Result, bool) {
	queue := g.script[op]
	if len(queue) == 0 {
		return Result{}, false
	}
	g.script[op] = queue[1:]
	return queue[0], true
}

func (g *Gateway) nextRef(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%06d", prefix, g.seq)
}

func scenarioOutcome(m models.ProviderMetadata) provider.Outcome {
	switch m["scenario"] {
	case ScenarioFail:
		code := m["failure_code"]
		if code == "" {
			code = defaultDeclineCode
		}
		return provider.Outcome{Status: provider.OutcomeFailed, Code: code, Message: "sandbox declined the payment"}
	case ScenarioPending:
		return provider.Outcome{Status: provider.OutcomePending, Code: "processing"}
	case ScenarioAuthorize:
		return provider.Outcome{Status: provider.OutcomePending, Code: provider.CodeRequiresCapture}
	default:
		return provider.Outcome{Status: provider.OutcomeSucceeded}
	}
}
