package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fairwaylabs/fairway-pos-backend/internal/customers"
	"github.com/fairwaylabs/fairway-pos-backend/internal/dispatch"
	"github.com/fairwaylabs/fairway-pos-backend/internal/pricing"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	transactions := `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'pending',
  items TEXT NOT NULL,
  customer_id TEXT,
  customer_name TEXT,
  customer_email TEXT,
  pricing TEXT NOT NULL,
  refunded_total_cents INTEGER NOT NULL DEFAULT 0,
  source TEXT NOT NULL DEFAULT 'register',
  register_id TEXT NOT NULL,
  employee_id TEXT NOT NULL,
  employee_name TEXT,
  booking_ref TEXT,
  notes TEXT,
  void_reason TEXT,
  voided_by TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  completed_at DATETIME,
  voided_at DATETIME
);`
	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  method TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  details TEXT,
  error_message TEXT,
  created_at DATETIME,
  UNIQUE (transaction_id, seq)
);`
	refunds := `
CREATE TABLE IF NOT EXISTS refunds (
  id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  amount_cents INTEGER NOT NULL,
  reason TEXT NOT NULL,
  items TEXT,
  method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  allocations TEXT,
  processed_by TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (transaction_id, seq)
);`
	require.NoError(t, db.Exec(transactions).Error)
	require.NoError(t, db.Exec(payments).Error)
	require.NoError(t, db.Exec(refunds).Error)
	return db
}

type stubDispatcher struct {
	mu       sync.Mutex
	requests []dispatch.Request
	fn       func(req dispatch.Request) (models.PaymentDetails, error)
}

func (s *stubDispatcher) Dispatch(_ context.Context, req dispatch.Request) (models.PaymentDetails, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(req)
	}
	return models.PaymentDetails{}, nil
}

type stubDirectory struct {
	purchases []customers.ActivityRecord
	refunds   []customers.ActivityRecord
}

func (s *stubDirectory) GetAccount(context.Context, uuid.UUID) (*customers.Account, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
}

func (s *stubDirectory) UpdateHouseAccountBalance(context.Context, uuid.UUID, money.Cents) error {
	return nil
}

func (s *stubDirectory) AddStoreCredit(context.Context, uuid.UUID, money.Cents) error { return nil }

func (s *stubDirectory) RecordPurchase(_ context.Context, record customers.ActivityRecord) error {
	s.purchases = append(s.purchases, record)
	return nil
}

func (s *stubDirectory) RecordRefund(_ context.Context, record customers.ActivityRecord) error {
	s.refunds = append(s.refunds, record)
	return nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events []enums.EventType
}

func (s *stubPublisher) Emit(_ context.Context, eventType enums.EventType, _ any) {
	s.mu.Lock()
	s.events = append(s.events, eventType)
	s.mu.Unlock()
}

func (s *stubPublisher) published() []enums.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]enums.EventType(nil), s.events...)
}

type ledgerHarness struct {
	db         *gorm.DB
	service    Service
	repo       Repository
	dispatcher *stubDispatcher
	directory  *stubDirectory
	publisher  *stubPublisher
}

func newLedgerHarness(t *testing.T, dispatcherFn func(req dispatch.Request) (models.PaymentDetails, error)) *ledgerHarness {
	t.Helper()

	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	dispatcher := &stubDispatcher{fn: dispatcherFn}
	directory := &stubDirectory{}
	publisher := &stubPublisher{}

	svc, err := NewService(Config{
		Repo:           repo,
		Dispatcher:     dispatcher,
		Directory:      directory,
		Publisher:      publisher,
		Logger:         logger.New(logger.Options{}),
		DefaultTaxRate: decimal.RequireFromString("0.0635"),
		TierRates: pricing.TierTable{
			"gold": decimal.RequireFromString("0.15"),
		},
	})
	require.NoError(t, err)

	return &ledgerHarness{
		db:         db,
		service:    svc,
		repo:       repo,
		dispatcher: dispatcher,
		directory:  directory,
		publisher:  publisher,
	}
}

func rangeBallsInput() CreateInput {
	return CreateInput{
		Items:      []pricing.Item{{Name: "Range Balls", UnitPrice: 1599, Quantity: 2}},
		RegisterID: "reg-1",
		EmployeeID: "emp-7",
	}
}

func zeroTaxInput(total money.Cents) CreateInput {
	zero := decimal.Zero
	return CreateInput{
		Items:      []pricing.Item{{Name: "Green Fee", UnitPrice: total, Quantity: 1}},
		TaxRate:    &zero,
		RegisterID: "reg-1",
		EmployeeID: "emp-7",
	}
}

func TestServiceCreate(t *testing.T) {
	h := newLedgerHarness(t, nil)

	transaction, err := h.service.Create(context.Background(), rangeBallsInput())
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, transaction.Status)
	assert.Equal(t, money.Cents(3198), transaction.Pricing.SubtotalCents)
	assert.Equal(t, money.Cents(203), transaction.Pricing.TaxCents)
	assert.Equal(t, money.Cents(3401), transaction.Pricing.TotalCents)

	loaded, err := h.service.Get(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.Pricing.TotalCents, loaded.Pricing.TotalCents)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, money.Cents(3198), loaded.Items[0].LineTotalCents)
}

func TestServiceCreate_validation(t *testing.T) {
	h := newLedgerHarness(t, nil)

	_, err := h.service.Create(context.Background(), CreateInput{RegisterID: "reg-1", EmployeeID: "emp-7"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = h.service.Create(context.Background(), CreateInput{
		Items:      []pricing.Item{{Name: "Tees", UnitPrice: 299, Quantity: 0}},
		RegisterID: "reg-1",
		EmployeeID: "emp-7",
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestAddPayment_cashCompletesTransaction(t *testing.T) {
	h := newLedgerHarness(t, func(req dispatch.Request) (models.PaymentDetails, error) {
		return models.PaymentDetails{
			TenderedCents: req.Tendered,
			ChangeCents:   req.Tendered - req.Amount,
		}, nil
	})

	customerID := uuid.New()
	input := rangeBallsInput()
	input.Customer = &CustomerRef{ID: customerID, Name: "Pat Member"}
	transaction, err := h.service.Create(context.Background(), input)
	require.NoError(t, err)

	result, err := h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
		Method:   enums.PaymentMethodCash,
		Amount:   3401,
		Tendered: 4000,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, money.Cents(599), result.Payment.Details.ChangeCents)
	assert.Equal(t, enums.TransactionStatusCompleted, result.Transaction.Status)
	require.NotNil(t, result.Transaction.CompletedAt)

	assert.Equal(t, []enums.EventType{enums.EventTransactionCompleted}, h.publisher.published())
	require.Len(t, h.directory.purchases, 1)
	assert.Equal(t, customerID, h.directory.purchases[0].CustomerID)
	assert.Equal(t, money.Cents(3401), h.directory.purchases[0].Amount)

	loaded, err := h.service.Get(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, loaded.Status)
	require.Len(t, loaded.Payments, 1)
}

func TestAddPayment_splitTender(t *testing.T) {
	h := newLedgerHarness(t, func(req dispatch.Request) (models.PaymentDetails, error) {
		return models.PaymentDetails{IntentID: "sim-" + uuid.NewString()}, nil
	})

	transaction, err := h.service.Create(context.Background(), zeroTaxInput(10000))
	require.NoError(t, err)

	_, err = h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCard, Amount: 6000,
	})
	require.NoError(t, err)

	// Remaining is 40.00; a 50.00 attempt must be rejected before dispatch.
	_, err = h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCard, Amount: 5000,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "40.00", details["remaining_balance"])

	result, err := h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCard, Amount: 4000,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, result.Transaction.Status)

	// The rejected attempt never reached the dispatcher.
	assert.Len(t, h.dispatcher.requests, 2)
	assert.Equal(t, []enums.EventType{enums.EventTransactionCompleted}, h.publisher.published())
}

func TestAddPayment_failedAttemptStaysOnLedger(t *testing.T) {
	declined := true
	h := newLedgerHarness(t, func(req dispatch.Request) (models.PaymentDetails, error) {
		if declined {
			return models.PaymentDetails{}, pkgerrors.New(pkgerrors.CodePayment, "card declined")
		}
		return models.PaymentDetails{IntentID: "sim-retry"}, nil
	})

	transaction, err := h.service.Create(context.Background(), zeroTaxInput(5000))
	require.NoError(t, err)

	_, err = h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCard, Amount: 5000,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePayment, pkgerrors.CodeOf(err))

	loaded, err := h.service.Get(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, loaded.Status)
	require.Len(t, loaded.Payments, 1)
	assert.Equal(t, enums.PaymentStatusFailed, loaded.Payments[0].Status)
	require.NotNil(t, loaded.Payments[0].ErrorMessage)
	assert.Equal(t, "card declined", *loaded.Payments[0].ErrorMessage)

	// Retry with a working card settles the transaction.
	declined = false
	result, err := h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCard, Amount: 5000,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, result.Transaction.Status)

	loaded, err = h.service.Get(context.Background(), transaction.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Payments, 2)
	assert.Equal(t, enums.PaymentStatusFailed, loaded.Payments[0].Status)
	assert.Equal(t, enums.PaymentStatusCompleted, loaded.Payments[1].Status)
}

func TestAddPayment_rejectsNonPendingStates(t *testing.T) {
	h := newLedgerHarness(t, nil)

	transaction, err := h.service.Create(context.Background(), zeroTaxInput(1000))
	require.NoError(t, err)

	_, err = h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCash, Amount: 1000, Tendered: 1000,
	})
	require.NoError(t, err)

	_, err = h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCash, Amount: 100, Tendered: 100,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidState, pkgerrors.CodeOf(err))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "completed", details["current_status"])
}

func TestAddPayment_notFound(t *testing.T) {
	h := newLedgerHarness(t, nil)

	_, err := h.service.AddPayment(context.Background(), uuid.New(), PaymentRequest{
		Method: enums.PaymentMethodCash, Amount: 100, Tendered: 100,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestAddPayment_oneCentToleranceCompletes(t *testing.T) {
	h := newLedgerHarness(t, nil)

	transaction, err := h.service.Create(context.Background(), zeroTaxInput(1000))
	require.NoError(t, err)

	// A terminal that settles one cent over is tolerated and still completes.
	result, err := h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCard, Amount: 1001,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, result.Transaction.Status)

	// Two cents over is rejected.
	other, err := h.service.Create(context.Background(), zeroTaxInput(1000))
	require.NoError(t, err)
	_, err = h.service.AddPayment(context.Background(), other.ID, PaymentRequest{
		Method: enums.PaymentMethodCard, Amount: 1002,
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestAddPaymentTo_callerHeldHandle(t *testing.T) {
	h := newLedgerHarness(t, nil)

	transaction, err := h.service.Create(context.Background(), zeroTaxInput(2000))
	require.NoError(t, err)

	result, err := h.service.AddPaymentTo(context.Background(), transaction, PaymentRequest{
		Method: enums.PaymentMethodCash, Amount: 2000, Tendered: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, result.Transaction.Status)
	assert.Same(t, transaction, result.Transaction)
}

func TestRemainingBalance(t *testing.T) {
	h := newLedgerHarness(t, nil)

	transaction, err := h.service.Create(context.Background(), zeroTaxInput(10000))
	require.NoError(t, err)

	balance, err := h.service.RemainingBalance(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, money.Cents(10000), balance)

	_, err = h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCard, Amount: 6000,
	})
	require.NoError(t, err)

	balance, err = h.service.RemainingBalance(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, money.Cents(4000), balance)
}

func TestAddPayment_moneyConservation(t *testing.T) {
	h := newLedgerHarness(t, nil)

	transaction, err := h.service.Create(context.Background(), zeroTaxInput(10000))
	require.NoError(t, err)

	amounts := []money.Cents{2500, 2500, 2500, 2500}
	for _, amount := range amounts {
		_, err := h.service.AddPayment(context.Background(), transaction.ID, PaymentRequest{
			Method: enums.PaymentMethodCard, Amount: amount,
		})
		require.NoError(t, err)
	}

	loaded, err := h.service.Get(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, loaded.CompletedPaymentTotal(), loaded.Pricing.TotalCents+money.Tolerance)
	assert.Equal(t, enums.TransactionStatusCompleted, loaded.Status)
	assert.Equal(t, []enums.EventType{enums.EventTransactionCompleted}, h.publisher.published())
}

func TestAddPayment_callerGoneBeforeCaptureResolves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newLedgerHarness(t, func(req dispatch.Request) (models.PaymentDetails, error) {
		// The register disconnects while the terminal is still working;
		// the capture succeeds anyway.
		cancel()
		return models.PaymentDetails{IntentID: "sq-late"}, nil
	})

	transaction, err := h.service.Create(context.Background(), zeroTaxInput(5000))
	require.NoError(t, err)

	result, err := h.service.AddPayment(ctx, transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCard, Amount: 5000,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, result.Payment.Status)

	loaded, err := h.service.Get(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, loaded.Status)
	require.Len(t, loaded.Payments, 1)
	assert.Equal(t, "sq-late", loaded.Payments[0].Details.IntentID)
	assert.Equal(t, []enums.EventType{enums.EventTransactionCompleted}, h.publisher.published())
}

func TestAddPayment_callerGoneFailedAttemptStillAudited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newLedgerHarness(t, func(req dispatch.Request) (models.PaymentDetails, error) {
		cancel()
		return models.PaymentDetails{}, pkgerrors.New(pkgerrors.CodePayment, "card declined")
	})

	transaction, err := h.service.Create(context.Background(), zeroTaxInput(5000))
	require.NoError(t, err)

	_, err = h.service.AddPayment(ctx, transaction.ID, PaymentRequest{
		Method: enums.PaymentMethodCard, Amount: 5000,
	})
	assert.Equal(t, pkgerrors.CodePayment, pkgerrors.CodeOf(err))

	loaded, err := h.service.Get(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, loaded.Status)
	require.Len(t, loaded.Payments, 1)
	assert.Equal(t, enums.PaymentStatusFailed, loaded.Payments[0].Status)
}
