// Package ledger owns the transaction state machine. All mutation of status,
// payments, and refunds flows through this service; calls against the same
// transaction id are serialized through a shared lock table.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairwaylabs/fairway-pos-backend/internal/customers"
	"github.com/fairwaylabs/fairway-pos-backend/internal/dispatch"
	"github.com/fairwaylabs/fairway-pos-backend/internal/pricing"
	"github.com/fairwaylabs/fairway-pos-backend/internal/receipts"
	"github.com/fairwaylabs/fairway-pos-backend/internal/terminal"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/events"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/metrics"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// CustomerRef is the weak customer reference frozen onto a transaction. The
// customer entity itself stays owned by the directory.
type CustomerRef struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// CreateInput collects everything needed to open a transaction.
type CreateInput struct {
	Items      []pricing.Item
	Discount   *pricing.Discount
	TaxRate    *decimal.Decimal
	Tip        money.Cents
	TipPercent *decimal.Decimal
	Customer   *CustomerRef

	Source       string
	RegisterID   string
	EmployeeID   string
	EmployeeName string
	BookingRef   *string
	Notes        *string
}

// PaymentRequest is one settlement attempt against an open transaction.
type PaymentRequest struct {
	Method enums.PaymentMethod
	Amount money.Cents

	// cash
	Tendered money.Cents

	// gift card
	GiftCardCode string

	// card terminal source token
	SourceID string
}

// AddPaymentResult reports a completed payment attempt.
type AddPaymentResult struct {
	Transaction *models.Transaction
	Payment     *models.Payment
}

// Service defines the transaction ledger operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	AddPayment(ctx context.Context, id uuid.UUID, req PaymentRequest) (*AddPaymentResult, error)
	// AddPaymentTo settles against a transaction handle the caller already
	// holds, skipping the lookup. The handle must come from this service.
	AddPaymentTo(ctx context.Context, transaction *models.Transaction, req PaymentRequest) (*AddPaymentResult, error)
	RemainingBalance(ctx context.Context, id uuid.UUID) (money.Cents, error)
}

type service struct {
	repo       Repository
	dispatcher dispatch.Dispatcher
	directory  customers.Directory
	publisher  events.Publisher
	receipts   receipts.Sender
	metrics    *metrics.SettlementMetrics
	logg       *logger.Logger
	locks      *Locks

	defaultTaxRate decimal.Decimal
	tiers          pricing.TierTable
}

// Config wires the ledger service.
type Config struct {
	Repo       Repository
	Dispatcher dispatch.Dispatcher
	Directory  customers.Directory
	Publisher  events.Publisher
	Receipts   receipts.Sender
	Metrics    *metrics.SettlementMetrics
	Logger     *logger.Logger
	Locks      *Locks

	DefaultTaxRate decimal.Decimal
	TierRates      pricing.TierTable
}

// NewService wires the transaction ledger.
func NewService(cfg Config) (Service, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("payment dispatcher required")
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
		cfg.Locks = NewLocks()
	}
	if cfg.Receipts == nil {
		cfg.Receipts = receipts.NoopSender{}
	}
	return &service{
		repo:           cfg.Repo,
		dispatcher:     cfg.Dispatcher,
		directory:      cfg.Directory,
		publisher:      cfg.Publisher,
		receipts:       cfg.Receipts,
		metrics:        cfg.Metrics,
		logg:           cfg.Logger,
		locks:          cfg.Locks,
		defaultTaxRate: cfg.DefaultTaxRate,
		tiers:          cfg.TierRates,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Transaction, error) {
	taxRate := s.defaultTaxRate
	if input.TaxRate != nil {
		taxRate = *input.TaxRate
	}

	breakdown, err := pricing.Calculate(pricing.Input{
		Items:      input.Items,
		Discount:   input.Discount,
		Tiers:      s.tiers,
		TaxRate:    taxRate,
		Tip:        input.Tip,
		TipPercent: input.TipPercent,
	})
	if err != nil {
		return nil, err
	}

	source := input.Source
	if source == "" {
		source = "register"
	}

	transaction := &models.Transaction{
		ID:           uuid.New(),
		Status:       enums.TransactionStatusPending,
		Items:        pricing.LineItems(input.Items),
		Pricing:      breakdown,
		Source:       source,
		RegisterID:   input.RegisterID,
		EmployeeID:   input.EmployeeID,
		EmployeeName: input.EmployeeName,
		BookingRef:   input.BookingRef,
		Notes:        input.Notes,
	}
	if input.Customer != nil {
		id := input.Customer.ID
		transaction.CustomerID = &id
		if input.Customer.Name != "" {
			name := input.Customer.Name
			transaction.CustomerName = &name
		}
		if input.Customer.Email != "" {
			email := input.Customer.Email
			transaction.CustomerEmail = &email
		}
	}

	if err := s.repo.Create(ctx, transaction); err != nil {
		return nil, err
	}
	return transaction, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) AddPayment(ctx context.Context, id uuid.UUID, req PaymentRequest) (*AddPaymentResult, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	release := s.locks.Lock(id)
	defer release()

	transaction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyPayment(ctx, transaction, req)
}

func (s *service) AddPaymentTo(ctx context.Context, transaction *models.Transaction, req PaymentRequest) (*AddPaymentResult, error) {
	if transaction == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}

	release := s.locks.Lock(transaction.ID)
	defer release()

	return s.applyPayment(ctx, transaction, req)
}

func (s *service) RemainingBalance(ctx context.Context, id uuid.UUID) (money.Cents, error) {
	transaction, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return transaction.RemainingBalance(), nil
}

// applyPayment runs the six-step settlement flow under the transaction's
// lock. Failed attempts are still appended: the payment list is the audit
// trail of everything tried at the register.
func (s *service) applyPayment(ctx context.Context, transaction *models.Transaction, req PaymentRequest) (*AddPaymentResult, error) {
	ctx = s.logg.WithTransactionID(ctx, transaction.ID.String())

	if !transaction.Status.AcceptsPayments() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("transaction is %s and no longer accepts payments", transaction.Status)).
			WithDetails(map[string]any{"current_status": transaction.Status.String()})
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	remaining := transaction.RemainingBalance()
	if req.Amount > remaining+money.Tolerance {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment exceeds remaining balance").
			WithDetails(map[string]any{
				"remaining_balance": remaining.String(),
				"amount":            req.Amount.String(),
			})
	}

	payment := &models.Payment{
		ID:            uuid.New(),
		TransactionID: transaction.ID,
		Seq:           len(transaction.Payments) + 1,
		Method:        req.Method,
		AmountCents:   req.Amount,
		Status:        enums.PaymentStatusPending,
	}

	details, dispatchErr := s.dispatcher.Dispatch(ctx, dispatch.Request{
		Method:       req.Method,
		Amount:       req.Amount,
		Tendered:     req.Tendered,
		GiftCardCode: req.GiftCardCode,
		CustomerID:   customerID(transaction),
		Meta: terminal.Metadata{
			TransactionID: transaction.ID.String(),
			RegisterID:    transaction.RegisterID,
			EmployeeID:    transaction.EmployeeID,
			SourceID:      req.SourceID,
		},
	})

	// The instrument has resolved; the outcome must reach the ledger even if
	// the caller abandoned the request while the terminal was working.
	ctx = context.WithoutCancel(ctx)

	if s.metrics != nil {
		s.metrics.ObservePayment(req.Method.String(), dispatchErr == nil, int64(req.Amount))
	}

	if dispatchErr != nil {
		message := dispatchErr.Error()
		if typed := pkgerrors.As(dispatchErr); typed != nil {
			message = typed.Message()
		}
		payment.Status = enums.PaymentStatusFailed
		payment.ErrorMessage = &message

		transaction.Payments = append(transaction.Payments, *payment)
		if err := s.repo.AppendPayment(ctx, payment); err != nil {
			s.logg.Error(ctx, "failed payment attempt could not be recorded", err)
		}
		if err := s.repo.Save(ctx, transaction); err != nil {
			s.logg.Error(ctx, "transaction save failed after payment failure", err)
		}
		return nil, dispatchErr
	}

	payment.Status = enums.PaymentStatusCompleted
	payment.Details = details
	transaction.Payments = append(transaction.Payments, *payment)
	if err := s.repo.AppendPayment(ctx, payment); err != nil {
		return nil, err
	}

	if transaction.CompletedPaymentTotal() >= transaction.Pricing.TotalCents {
		s.complete(ctx, transaction)
	} else if err := s.repo.Save(ctx, transaction); err != nil {
		s.logg.Error(ctx, "transaction save failed after payment", err)
	}

	return &AddPaymentResult{Transaction: transaction, Payment: payment}, nil
}

// completedEvent is the transaction.completed payload.
type completedEvent struct {
	TransactionID string  `json:"transaction_id"`
	Total         string  `json:"total"`
	PaymentCount  int     `json:"payment_count"`
	RegisterID    string  `json:"register_id"`
	CustomerID    *string `json:"customer_id,omitempty"`
}

// complete transitions the transaction exactly once and runs the completion
// side-effects in fixed order. Each is independently failure-tolerant: a
// failed persist or notification never reverts the completed status.
func (s *service) complete(ctx context.Context, transaction *models.Transaction) {
	now := time.Now().UTC()
	transaction.Status = enums.TransactionStatusCompleted
	transaction.CompletedAt = &now

	if err := s.repo.Save(ctx, transaction); err != nil {
		s.logg.Error(ctx, "completed transaction persist failed", err)
	}

	if transaction.CustomerID != nil {
		err := s.directory.RecordPurchase(ctx, customers.ActivityRecord{
			CustomerID:    *transaction.CustomerID,
			TransactionID: transaction.ID,
			Amount:        transaction.Pricing.TotalCents,
			ItemCount:     len(transaction.Items),
			OccurredAt:    now,
		})
		if err != nil {
			s.logg.Error(ctx, "customer purchase record failed", err)
		}
	}

	event := completedEvent{
		TransactionID: transaction.ID.String(),
		Total:         transaction.Pricing.TotalCents.String(),
		PaymentCount:  len(transaction.Payments),
		RegisterID:    transaction.RegisterID,
	}
	if transaction.CustomerID != nil {
		id := transaction.CustomerID.String()
		event.CustomerID = &id
	}
	s.publisher.Emit(ctx, enums.EventTransactionCompleted, event)

	if transaction.CustomerEmail != nil && *transaction.CustomerEmail != "" {
		// Non-blocking: the register never waits on receipt delivery.
		go s.receipts.Send(context.WithoutCancel(ctx), transaction, *transaction.CustomerEmail)
	}

	s.logg.Info(ctx, "transaction completed")
}

func customerID(transaction *models.Transaction) uuid.UUID {
	if transaction.CustomerID == nil {
		return uuid.Nil
	}
	return *transaction.CustomerID
}
