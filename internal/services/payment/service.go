package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/services/events"
	"payledger/internal/services/provider"
	"payledger/internal/services/risk"

	"go.uber.org/zap"
)

type service struct {
	wallets  WalletService
	ledger   TransactionLedger
	gateways GatewayRegistry
	risk     risk.Scorer
	events   events.Publisher
	metrics  MetricsCollector
	config   Config
	logger   *zap.Logger
}

// NewService creates a new payment service
func NewService(deps Dependencies, config Config) Service {
	if deps.Wallets == nil || deps.Ledger == nil || deps.Gateways == nil {
		panic("wallets, ledger and gateways are required")
	}
	if deps.Risk == nil {
		deps.Risk = risk.NewRuleScorer(risk.Rules{})
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NoopMetricsCollector{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.ProcessingTimeout <= 0 {
		config.ProcessingTimeout = DefaultProcessingTimeout
	}
	if config.RiskBlockThreshold <= 0 {
		config.RiskBlockThreshold = DefaultRiskBlockThreshold
	}
	if config.SweepBatchSize <= 0 {
		config.SweepBatchSize = DefaultSweepBatchSize
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &service{
		wallets:  deps.Wallets,
		ledger:   deps.Ledger,
		gateways: deps.Gateways,
		risk:     deps.Risk,
		events:   deps.Events,
		metrics:  deps.Metrics,
		config:   config,
		logger:   deps.Logger.Named("payment"),
	}
}

func (s *service) now() time.Time {
	return s.config.Clock().UTC()
}

// ProcessPayment validates, scores and records a payment, then submits the
// first attempt to its provider.
func (s *service) ProcessPayment(ctx context.Context, req PaymentRequest) (*models.Transaction, error) {
	if req.Type == "" {
		req.Type = models.TransactionTypePayment
	}
	gw, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	candidate := req.transaction()
	existing, err := s.ledger.GetByExternalID(ctx, req.ExternalTransactionID)
	switch {
	case err == nil:
		return s.resolveDuplicate(existing, candidate, req.Idempotent)
	case !errors.Is(err, apperrors.ErrTransactionNotFound):
		return nil, fmt.Errorf("failed to check external transaction id: %w", err)
	}

	w, err := s.wallets.GetOrCreate(ctx, req.OwnerID, req.Currency)
	if err != nil {
		return nil, err
	}
	if err := s.preflight(w, candidate); err != nil {
		return nil, err
	}

	score, err := s.risk.Score(ctx, risk.Assessment{
		OwnerID:  req.OwnerID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Type:     req.Type,
		Method:   req.Method,
		FirstUse: w.LastTransactionAt == nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to score transaction: %w", err)
	}
	s.metrics.RecordRiskScore(score)
	if score >= s.config.RiskBlockThreshold {
		s.logger.Warn("payment rejected by risk scoring",
			zap.String("external_transaction_id", req.ExternalTransactionID),
			zap.Uint("owner_id", req.OwnerID),
			zap.Float64("risk_score", score))
		return nil, apperrors.Wrap(apperrors.ErrRiskRejected, "score %.2f is at or above %.2f", score, s.config.RiskBlockThreshold)
	}
	candidate.RiskScore = score

	tx, err := s.ledger.Create(ctx, candidate)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateTransaction) && tx != nil {
			// Lost a race with the same external id.
			return s.resolveDuplicate(tx, candidate, req.Idempotent)
		}
		return nil, err
	}
	s.publish(ctx, events.FromTransaction(events.TypeCreated, tx, s.now()))

	return s.submit(ctx, tx, gw)
}

func (s *service) validate(req PaymentRequest) (provider.Gateway, error) {
	if req.ExternalTransactionID == "" {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "external transaction id is required")
	}
	if req.OwnerID == 0 {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "owner id is required")
	}
	if !req.Type.Valid() {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "unknown transaction type %q", req.Type)
	}
	if req.Type.Direction() == models.DirectionReversal {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "%s transactions are created through refunds", req.Type)
	}
	if err := models.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := models.ValidateCurrency(req.Currency, s.config.SupportedCurrencies); err != nil {
		return nil, err
	}
	gw, err := s.gateways.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	caps := gw.Capabilities()
	if !caps.Supports(req.Method, req.Currency) {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "%s does not support %s in %s", req.Provider, req.Method, req.Currency)
	}
	if err := caps.Metadata.Validate(req.Method, req.Metadata); err != nil {
		return nil, err
	}
	return gw, nil
}

// resolveDuplicate decides what a repeated external transaction id returns.
func (s *service) resolveDuplicate(existing, candidate *models.Transaction, idempotent bool) (*models.Transaction, error) {
	if !existing.SamePayload(candidate) {
		return nil, apperrors.Wrap(apperrors.ErrDuplicateTransaction,
			"external id %s was used with a different payload", candidate.ExternalTransactionID)
	}
	s.logger.Info("duplicate payment request",
		zap.String("transaction_id", existing.ID),
		zap.String("external_transaction_id", existing.ExternalTransactionID),
		zap.String("status", string(existing.Status)),
		zap.Bool("idempotent", idempotent))
	if idempotent {
		return existing, nil
	}
	return existing, apperrors.Wrap(apperrors.ErrDuplicateTransaction, "external id %s", candidate.ExternalTransactionID)
}

// preflight rejects requests the wallet could not settle, before anything is
// recorded. The wallet service repeats these checks when it writes.
func (s *service) preflight(w *models.Wallet, tx *models.Transaction) error {
	if w.Status != models.WalletStatusActive {
		return apperrors.Wrap(apperrors.ErrWalletNotActive, "wallet %d is %s", w.ID, w.Status)
	}
	trial := *w
	now := s.now()
	switch tx.Direction() {
	case models.DirectionInbound:
		return trial.Credit(tx.Amount, now)
	case models.DirectionOutbound:
		if err := trial.CheckSpendLimits(tx.Amount, now); err != nil {
			return err
		}
		return trial.Reserve(tx.Amount, now)
	}
	return nil
}

func (s *service) RetryPayment(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Direction() == models.DirectionReversal {
		return nil, apperrors.Wrap(apperrors.ErrInvalidPaymentState, "%s %s cannot be retried, request a new refund", tx.Type, tx.ID)
	}
	if tx.Status != models.StatusFailed {
		return nil, apperrors.Wrap(apperrors.ErrInvalidPaymentState, "transaction %s is %s", tx.ID, tx.Status)
	}
	if tx.AttemptCount >= s.config.MaxAttempts {
		return nil, apperrors.Wrap(apperrors.ErrMaxRetryAttemptsExceeded,
			"transaction %s used %d of %d attempts", tx.ID, tx.AttemptCount, s.config.MaxAttempts)
	}
	gw, err := s.gateways.Get(tx.Provider)
	if err != nil {
		return nil, err
	}

	tx, err = s.ledger.Transition(ctx, tx.ID, models.StatusPending, nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.FromTransaction(events.TypeRetried, tx, s.now()))
	return s.submit(ctx, tx, gw)
}

func (s *service) GetWalletBalance(ctx context.Context, ownerID uint, currency string) (models.Balance, error) {
	return s.wallets.GetBalance(ctx, ownerID, currency)
}

func (s *service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.metrics.RecordPublishFailure(string(e.Type))
		s.logger.Warn("failed to publish event",
			zap.String("type", string(e.Type)),
			zap.String("transaction_id", e.TransactionID),
			zap.Error(err))
	}
}

func (s *service) publishStatus(ctx context.Context, tx *models.Transaction) {
	s.metrics.RecordOutcome(string(tx.Type), string(tx.Status))
	s.publish(ctx, events.FromTransaction(events.ForStatus(tx.Status), tx, s.now()))
}

func (s *service) publishWallet(ctx context.Context, tx *models.Transaction, w *models.Wallet) {
	e := events.FromTransaction(events.TypeWalletMutated, tx, s.now())
	balance := w.Balance()
	e.Balance = &balance
	s.publish(ctx, e)
}

// markInconsistent flags a transaction whose settlement was recorded while
// the wallet mutation failed. The returned error wraps cause.
func (s *service) markInconsistent(ctx context.Context, tx *models.Transaction, op string, cause error) (*models.Transaction, error) {
	s.metrics.RecordInconsistency(op)
	s.logger.Error("ledger inconsistency, manual reconciliation required",
		zap.String("transaction_id", tx.ID),
		zap.String("operation", op),
		zap.String("status", string(tx.Status)),
		zap.String("amount", tx.Amount.String()),
		zap.Error(cause))

	flagged, err := s.ledger.Update(ctx, tx.ID, func(t *models.Transaction) error {
		t.NeedsReconciliation = true
		return nil
	})
	if err != nil {
		s.logger.Error("failed to flag transaction for reconciliation", zap.String("transaction_id", tx.ID), zap.Error(err))
		flagged = tx
	}
	e := events.FromTransaction(events.TypeInconsistent, flagged, s.now())
	e.Message = cause.Error()
	s.publish(ctx, e)
	return flagged, apperrors.WithCause(apperrors.ErrLedgerInconsistency, fmt.Errorf("%s for transaction %s: %w", op, tx.ID, cause))
}
