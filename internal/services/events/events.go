// Package events publishes the ledger's audit trail.
package events

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"payledger/internal/models"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeCreated           Type = "transaction.created"
	TypeProcessing        Type = "transaction.processing"
	TypeSucceeded         Type = "transaction.succeeded"
	TypeFailed            Type = "transaction.failed"
	TypeRetried           Type = "transaction.retried"
	TypeCancelled         Type = "transaction.cancelled"
	TypeExpired           Type = "transaction.expired"
	TypeRefunded          Type = "transaction.refunded"
	TypePartiallyRefunded Type = "transaction.partially_refunded"
	TypeDisputed          Type = "transaction.disputed"
	TypeInconsistent      Type = "transaction.inconsistent"
	TypeWalletMutated     Type = "wallet.mutated"
)

var statusTypes = map[models.TransactionStatus]Type{
	models.StatusPending:           TypeRetried,
	models.StatusProcessing:        TypeProcessing,
	models.StatusSucceeded:         TypeSucceeded,
	models.StatusFailed:            TypeFailed,
	models.StatusCancelled:         TypeCancelled,
	models.StatusExpired:           TypeExpired,
	models.StatusRefunded:          TypeRefunded,
	models.StatusPartiallyRefunded: TypePartiallyRefunded,
	models.StatusDisputed:          TypeDisputed,
}

// ForStatus returns the event type published when a transaction enters status.
// Entering PENDING again is a retry.
func ForStatus(status models.TransactionStatus) Type {
	return statusTypes[status]
}

type Event struct {
	ID                  string                   `json:"id"`
	Type                Type                     `json:"type"`
	TransactionID       string                   `json:"transaction_id,omitempty"`
	ParentTransactionID string                   `json:"parent_transaction_id,omitempty"`
	TransactionType     models.TransactionType   `json:"transaction_type,omitempty"`
	OwnerID             uint                     `json:"owner_id"`
	Amount              decimal.Decimal          `json:"amount"`
	Currency            string                   `json:"currency"`
	Status              models.TransactionStatus `json:"status,omitempty"`
	AttemptCount        int                      `json:"attempt_count"`
	Balance             *models.Balance          `json:"balance,omitempty"`
	Message             string                   `json:"message,omitempty"`
	OccurredAt          time.Time                `json:"occurred_at"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a ULID for t.
func NewID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// FromTransaction builds an event describing tx at now.
func FromTransaction(typ Type, tx *models.Transaction, now time.Time) Event {
	e := Event{
		ID:              NewID(now),
		Type:            typ,
		TransactionID:   tx.ID,
		TransactionType: tx.Type,
		OwnerID:         tx.OwnerID,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		Status:          tx.Status,
		AttemptCount:    tx.AttemptCount,
		Message:         tx.FailureMessage,
		OccurredAt:      now,
	}
	if tx.ParentTransactionID != nil {
		e.ParentTransactionID = *tx.ParentTransactionID
	}
	return e
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the published event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Count returns how many events of typ were published.
func (r *Recorder) Count(typ Type) int {
	n := 0
	for _, t := range r.Types() {
		if t == typ {
			n++
		}
	}
	return n
}
