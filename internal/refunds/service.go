// Package refunds allocates refunds against settled transactions. The
// original-method path walks prior payments in the order they were recorded
// and returns funds through each payment's own instrument.
package refunds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway-pos-backend/internal/customers"
	"github.com/fairwaylabs/fairway-pos-backend/internal/giftcards"
	"github.com/fairwaylabs/fairway-pos-backend/internal/ledger"
	"github.com/fairwaylabs/fairway-pos-backend/internal/terminal"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/events"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/metrics"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// CreateInput is one refund request.
type CreateInput struct {
	TransactionID uuid.UUID
	Amount        money.Cents
	Reason        string
	Items         []models.TransactionItem
	Method        enums.RefundMethod
	EmployeeID    string
}

// Service defines the refund engine operations.
type Service interface {
	// CreateRefund allocates a refund. When allocation stops partway because
	// an instrument refused its slice, the refund record for the allocated
	// portion is still returned alongside the instrument error; earlier
	// allocations are never rolled back.
	CreateRefund(ctx context.Context, input CreateInput) (*models.Refund, error)
}

type service struct {
	repo      ledger.Repository
	terminal  terminal.Terminal
	giftCards giftcards.Ledger
	directory customers.Directory
	publisher events.Publisher
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	locks     *ledger.Locks
}

// Config wires the refund engine.
type Config struct {
	Repo      ledger.Repository
	Terminal  terminal.Terminal
	GiftCards giftcards.Ledger
	Directory customers.Directory
	Publisher events.Publisher
	Metrics   *metrics.SettlementMetrics
	Logger    *logger.Logger
	Locks     *ledger.Locks
}

// NewService wires the refund engine. Locks must be the same table the
// ledger service uses so refund and payment calls against one transaction
// are serialized together.
func NewService(cfg Config) (Service, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if cfg.Terminal == nil {
		return nil, fmt.Errorf("payment terminal required")
	}
	if cfg.GiftCards == nil {
		return nil, fmt.Errorf("gift card ledger required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("customer directory required")
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
		giftCards: cfg.GiftCards,
		directory: cfg.Directory,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logg:      cfg.Logger,
		locks:     cfg.Locks,
	}, nil
}

func (s *service) CreateRefund(ctx context.Context, input CreateInput) (*models.Refund, error) {
	if input.TransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid refund method %q", input.Method))
	}

	release := s.locks.Lock(input.TransactionID)
	defer release()

	transaction, err := s.repo.FindByID(ctx, input.TransactionID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithTransactionID(ctx, transaction.ID.String())

	if !transaction.Status.AcceptsRefunds() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "voided transactions cannot be refunded").
			WithDetails(map[string]any{"current_status": transaction.Status.String()})
	}

	maxRefundable := transaction.MaxRefundable()
	if input.Amount > maxRefundable {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds refundable amount").
			WithDetails(map[string]any{
				"max_refundable": maxRefundable.String(),
				"amount":         input.Amount.String(),
			})
	}

	var (
		allocations []models.RefundAllocation
		allocated   money.Cents
		allocErr    error
	)
	switch input.Method {
	case enums.RefundMethodOriginal:
		allocations, allocated, allocErr = s.allocateOriginal(ctx, transaction, input.Amount)
	case enums.RefundMethodStoreCredit:
		allocations, allocated, allocErr = s.allocateStoreCredit(ctx, transaction, input.Amount)
	case enums.RefundMethodCash:
		// Cash leaves the drawer by hand; no external call is involved.
		allocated = input.Amount
	}

	if s.metrics != nil {
		s.metrics.ObserveRefund(input.Method.String(), allocErr == nil)
	}
	if allocated == 0 {
		if allocErr != nil {
			return nil, allocErr
		}
		return nil, pkgerrors.New(pkgerrors.CodePayment, "no refundable payments on transaction")
	}

	refund := &models.Refund{
		ID:            uuid.New(),
		TransactionID: transaction.ID,
		Seq:           len(transaction.Refunds) + 1,
		AmountCents:   allocated,
		Reason:        input.Reason,
		Items:         input.Items,
		Method:        input.Method,
		Status:        enums.RefundStatusCompleted,
		Allocations:   allocations,
		ProcessedBy:   input.EmployeeID,
	}

	transaction.Refunds = append(transaction.Refunds, *refund)
	transaction.RefundedTotalCents += allocated
	transaction.Status = transaction.DeriveRefundStatus()

	if err := s.repo.AppendRefund(ctx, refund); err != nil {
		s.logg.Error(ctx, "refund record persist failed", err)
	}
	if err := s.repo.Save(ctx, transaction); err != nil {
		s.logg.Error(ctx, "transaction save failed after refund", err)
	}

	if transaction.CustomerID != nil {
		err := s.directory.RecordRefund(ctx, customers.ActivityRecord{
			CustomerID:    *transaction.CustomerID,
			TransactionID: transaction.ID,
			Amount:        allocated,
			ItemCount:     len(input.Items),
			OccurredAt:    time.Now().UTC(),
		})
		if err != nil {
			s.logg.Error(ctx, "customer refund record failed", err)
		}
	}

	s.publisher.Emit(ctx, enums.EventRefundCompleted, refundEvent{
		TransactionID: transaction.ID.String(),
		RefundID:      refund.ID.String(),
		Amount:        allocated.String(),
		Method:        input.Method.String(),
		Status:        transaction.Status.String(),
	})

	// A mid-allocation instrument failure still surfaces after the partial
	// refund is recorded; the caller sees both the audit record and the error.
	return refund, allocErr
}

type refundEvent struct {
	TransactionID string `json:"transaction_id"`
	RefundID      string `json:"refund_id"`
	Amount        string `json:"amount"`
	Method        string `json:"method"`
	Status        string `json:"status"`
}

// allocateOriginal walks completed payments in recorded order, refunding
// min(remaining, payment amount) through each payment's instrument. A failing
// instrument stops the walk; earlier slices stay refunded.
func (s *service) allocateOriginal(ctx context.Context, transaction *models.Transaction, amount money.Cents) ([]models.RefundAllocation, money.Cents, error) {
	remaining := amount
	var allocations []models.RefundAllocation

	for i := range transaction.Payments {
		if remaining <= 0 {
			break
		}
		payment := &transaction.Payments[i]
		if payment.Status != enums.PaymentStatusCompleted {
			continue
		}

		slice := money.Min(remaining, payment.AmountCents)
		if err := s.refundThroughInstrument(ctx, transaction, payment, slice); err != nil {
			if typed := pkgerrors.As(err); typed != nil {
				return allocations, amount - remaining, typed
			}
			return allocations, amount - remaining, pkgerrors.Wrap(pkgerrors.CodePayment, err, "instrument refund failed")
		}

		allocations = append(allocations, models.RefundAllocation{
			PaymentID:   payment.ID,
			Method:      payment.Method,
			AmountCents: slice,
		})
		remaining -= slice
	}

	return allocations, amount - remaining, nil
}

func (s *service) refundThroughInstrument(ctx context.Context, transaction *models.Transaction, payment *models.Payment, amount money.Cents) error {
	switch payment.Method {
	case enums.PaymentMethodCard:
		return s.terminal.RefundPayment(ctx, payment.Details.IntentID, amount)
	case enums.PaymentMethodGiftCard:
		return s.giftCards.Credit(ctx, payment.Details.GiftCardCode, amount)
	case enums.PaymentMethodCash:
		// Manual drawer refund.
		return nil
	case enums.PaymentMethodHouseAccount:
		if transaction.CustomerID == nil {
			return pkgerrors.New(pkgerrors.CodePayment, "house account payment has no customer")
		}
		account, err := s.directory.GetAccount(ctx, *transaction.CustomerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePayment, err, "house account lookup failed")
		}
		return s.directory.UpdateHouseAccountBalance(ctx, *transaction.CustomerID, account.HouseBalance-amount)
	default:
		return pkgerrors.New(pkgerrors.CodePayment, fmt.Sprintf("unsupported refund instrument %q", payment.Method))
	}
}

// allocateStoreCredit issues the whole refund as store credit in one write.
func (s *service) allocateStoreCredit(ctx context.Context, transaction *models.Transaction, amount money.Cents) ([]models.RefundAllocation, money.Cents, error) {
	if transaction.CustomerID == nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "store credit refunds require a customer")
	}
	if err := s.directory.AddStoreCredit(ctx, *transaction.CustomerID, amount); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, 0, typed
		}
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodePayment, err, "store credit grant failed")
	}
	return nil, amount, nil
}
