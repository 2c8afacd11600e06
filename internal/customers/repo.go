package customers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// Repository manages persistence for customers and their activity history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	UpdateHouseBalance(ctx context.Context, id uuid.UUID, balance money.Cents) error
	AddStoreCredit(ctx context.Context, id uuid.UUID, amount money.Cents) error
	CreateActivity(ctx context.Context, activity *models.CustomerActivity) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a customer repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repository) UpdateHouseBalance(ctx context.Context, id uuid.UUID, balance money.Cents) error {
	result := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("house_balance_cents", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return nil
}

func (r *repository) AddStoreCredit(ctx context.Context, id uuid.UUID, amount money.Cents) error {
	result := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("store_credit_cents", gorm.Expr("store_credit_cents + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return nil
}

func (r *repository) CreateActivity(ctx context.Context, activity *models.CustomerActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}
