package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
)

func TestAppendPayment_duplicateSeqIsInvalidState(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	transaction := &models.Transaction{
		ID:         uuid.New(),
		Status:     enums.TransactionStatusPending,
		Items:      []models.TransactionItem{{Name: "Green Fee", UnitPriceCents: 5000, Quantity: 1, LineTotalCents: 5000}},
		Pricing:    models.Pricing{SubtotalCents: 5000, TaxableCents: 5000, TotalCents: 5000, TaxRate: "0"},
		RegisterID: "reg-1",
		EmployeeID: "emp-7",
	}
	require.NoError(t, repo.Create(context.Background(), transaction))

	first := &models.Payment{
		ID:            uuid.New(),
		TransactionID: transaction.ID,
		Seq:           1,
		Method:        enums.PaymentMethodCard,
		AmountCents:   2500,
		Status:        enums.PaymentStatusCompleted,
	}
	require.NoError(t, repo.AppendPayment(context.Background(), first))

	duplicate := &models.Payment{
		ID:            uuid.New(),
		TransactionID: transaction.ID,
		Seq:           1,
		Method:        enums.PaymentMethodCash,
		AmountCents:   2500,
		Status:        enums.PaymentStatusCompleted,
	}
	err := repo.AppendPayment(context.Background(), duplicate)
	assert.Equal(t, pkgerrors.CodeInvalidState, pkgerrors.CodeOf(err))
}

func TestAppendRefund_duplicateSeqIsInvalidState(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	transaction := &models.Transaction{
		ID:         uuid.New(),
		Status:     enums.TransactionStatusCompleted,
		Items:      []models.TransactionItem{{Name: "Green Fee", UnitPriceCents: 5000, Quantity: 1, LineTotalCents: 5000}},
		Pricing:    models.Pricing{SubtotalCents: 5000, TaxableCents: 5000, TotalCents: 5000, TaxRate: "0"},
		RegisterID: "reg-1",
		EmployeeID: "emp-7",
	}
	require.NoError(t, repo.Create(context.Background(), transaction))

	first := &models.Refund{
		ID:            uuid.New(),
		TransactionID: transaction.ID,
		Seq:           1,
		AmountCents:   1000,
		Reason:        "rain check",
		Method:        enums.RefundMethodCash,
		Status:        enums.RefundStatusCompleted,
		ProcessedBy:   "emp-7",
	}
	require.NoError(t, repo.AppendRefund(context.Background(), first))

	duplicate := &models.Refund{
		ID:            uuid.New(),
		TransactionID: transaction.ID,
		Seq:           1,
		AmountCents:   1000,
		Reason:        "rain check",
		Method:        enums.RefundMethodCash,
		Status:        enums.RefundStatusCompleted,
		ProcessedBy:   "emp-7",
	}
	err := repo.AppendRefund(context.Background(), duplicate)
	assert.Equal(t, pkgerrors.CodeInvalidState, pkgerrors.CodeOf(err))
}
