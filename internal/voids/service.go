// Package voids cancels still-pending transactions. Terminal cleanup is best
// effort: an unreachable in-flight card intent never blocks the local void.
package voids

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/fairwaylabs/fairway-pos-backend/internal/ledger"
	"github.com/fairwaylabs/fairway-pos-backend/internal/terminal"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/events"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/metrics"
)

// Input identifies the transaction to void and who ordered it.
type Input struct {
	TransactionID uuid.UUID
	Reason        string
	EmployeeID    string
}

// Service defines the void handler.
type Service interface {
	Void(ctx context.Context, input Input) (*models.Transaction, error)
}

type service struct {
	repo      ledger.Repository
	terminal  terminal.Terminal
	publisher events.Publisher
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	locks     *ledger.Locks
}

// Config wires the void handler.
type Config struct {
	Repo      ledger.Repository
	Terminal  terminal.Terminal
	Publisher events.Publisher
	Metrics   *metrics.SettlementMetrics
	Logger    *logger.Logger
	Locks     *ledger.Locks
}

// NewService wires the void handler. Locks must be the ledger's table so
// voids serialize with payments and refunds on the same transaction.
func NewService(cfg Config) (Service, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if cfg.Terminal == nil {
		return nil, fmt.Errorf("payment terminal required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("event publisher required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Locks == nil {
		return nil, fmt.Errorf("transaction locks required")
	}
	return &service{
		repo:      cfg.Repo,
		terminal:  cfg.Terminal,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logg:      cfg.Logger,
		locks:     cfg.Locks,
	}, nil
}

func (s *service) Void(ctx context.Context, input Input) (*models.Transaction, error) {
	if input.TransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "void reason required")
	}

	release := s.locks.Lock(input.TransactionID)
	defer release()

	transaction, err := s.repo.FindByID(ctx, input.TransactionID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithTransactionID(ctx, transaction.ID.String())

	if transaction.Status != enums.TransactionStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("transaction is %s and cannot be voided", transaction.Status)).
			WithDetails(map[string]any{"current_status": transaction.Status.String()})
	}

	if err := s.cancelOutstandingIntents(ctx, transaction); err != nil {
		s.logg.Error(ctx, "terminal intent cancellation incomplete", err)
	}

	now := time.Now().UTC()
	transaction.Status = enums.TransactionStatusVoided
	transaction.VoidedAt = &now
	transaction.VoidReason = &input.Reason
	if input.EmployeeID != "" {
		employee := input.EmployeeID
		transaction.VoidedBy = &employee
	}

	if err := s.repo.Save(ctx, transaction); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveVoid()
	}
	s.publisher.Emit(ctx, enums.EventTransactionVoided, voidedEvent{
		TransactionID: transaction.ID.String(),
		Reason:        input.Reason,
		VoidedBy:      input.EmployeeID,
	})
	s.logg.Info(ctx, "transaction voided")

	return transaction, nil
}

type voidedEvent struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	VoidedBy      string `json:"voided_by,omitempty"`
}

// cancelOutstandingIntents sweeps payments that still hold an in-flight
// terminal intent. Failures are aggregated for the log and never abort the
// sweep or the void itself.
func (s *service) cancelOutstandingIntents(ctx context.Context, transaction *models.Transaction) error {
	var errs error
	for i := range transaction.Payments {
		payment := &transaction.Payments[i]
		if payment.Status != enums.PaymentStatusPending || payment.Details.IntentID == "" {
			continue
		}
		if err := s.terminal.Cancel(ctx, payment.Details.IntentID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel intent %s: %w", payment.Details.IntentID, err))
		}
	}
	return errs
}
