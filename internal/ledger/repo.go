package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/db"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
)

// Repository manages persistence for transactions and their payment and
// refund rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Save(ctx context.Context, transaction *models.Transaction) error
	AppendPayment(ctx context.Context, payment *models.Payment) error
	AppendRefund(ctx context.Context, refund *models.Refund) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(transaction).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq ASC")
		}).
		Preload("Refunds", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq ASC")
		}).
		First(&transaction, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &transaction, nil
}

// Save writes the transaction's own columns. Payments and refunds are
// append-only rows written through AppendPayment/AppendRefund, never
// rewritten here.
func (r *repository) Save(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(transaction).Error
}

func (r *repository) AppendPayment(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_payments_transaction_seq") {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidState, err, "payment sequence already written")
		}
		if db.IsCheckViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment violates ledger constraints")
		}
		return err
	}
	return nil
}

func (r *repository) AppendRefund(ctx context.Context, refund *models.Refund) error {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_refunds_transaction_seq") {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidState, err, "refund sequence already written")
		}
		if db.IsCheckViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "refund violates ledger constraints")
		}
		return err
	}
	return nil
}
