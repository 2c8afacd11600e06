// Package customers is the customer directory collaborator: house account
// balances, store credit, and purchase/refund history. The settlement engine
// treats every call as a single atomic read-modify-write.
package customers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// Account is the directory view consumed by the settlement engine.
type Account struct {
	CustomerID     uuid.UUID
	Name           string
	Email          *string
	MembershipTier string
	HouseBalance   money.Cents
	CreditLimit    money.Cents
	StoreCredit    money.Cents
}

// ActivityRecord captures a purchase or refund notification.
type ActivityRecord struct {
	CustomerID    uuid.UUID
	TransactionID uuid.UUID
	Amount        money.Cents
	ItemCount     int
	OccurredAt    time.Time
}

// Directory defines the customer collaborator surface.
type Directory interface {
	GetAccount(ctx context.Context, customerID uuid.UUID) (*Account, error)
	UpdateHouseAccountBalance(ctx context.Context, customerID uuid.UUID, newBalance money.Cents) error
	AddStoreCredit(ctx context.Context, customerID uuid.UUID, amount money.Cents) error
	RecordPurchase(ctx context.Context, record ActivityRecord) error
	RecordRefund(ctx context.Context, record ActivityRecord) error
}

type directory struct {
	repo Repository
}

// NewDirectory wires the gorm-backed customer directory.
func NewDirectory(repo Repository) (Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("customers repository required")
	}
	return &directory{repo: repo}, nil
}

func (d *directory) GetAccount(ctx context.Context, customerID uuid.UUID) (*Account, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	customer, err := d.repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	tier := ""
	if customer.MembershipTier != nil {
		tier = *customer.MembershipTier
	}
	return &Account{
		CustomerID:     customer.ID,
		Name:           customer.Name,
		Email:          customer.Email,
		MembershipTier: tier,
		HouseBalance:   customer.HouseBalanceCents,
		CreditLimit:    customer.CreditLimitCents,
		StoreCredit:    customer.StoreCreditCents,
	}, nil
}

func (d *directory) UpdateHouseAccountBalance(ctx context.Context, customerID uuid.UUID, newBalance money.Cents) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return d.repo.UpdateHouseBalance(ctx, customerID, newBalance)
}

func (d *directory) AddStoreCredit(ctx context.Context, customerID uuid.UUID, amount money.Cents) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "store credit amount must be positive")
	}
	return d.repo.AddStoreCredit(ctx, customerID, amount)
}

func (d *directory) RecordPurchase(ctx context.Context, record ActivityRecord) error {
	return d.recordActivity(ctx, models.CustomerActivityPurchase, record)
}

func (d *directory) RecordRefund(ctx context.Context, record ActivityRecord) error {
	return d.recordActivity(ctx, models.CustomerActivityRefund, record)
}

func (d *directory) recordActivity(ctx context.Context, kind string, record ActivityRecord) error {
	if record.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if record.TransactionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	occurredAt := record.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return d.repo.CreateActivity(ctx, &models.CustomerActivity{
		ID:            uuid.New(),
		CustomerID:    record.CustomerID,
		TransactionID: record.TransactionID,
		Kind:          kind,
		AmountCents:   record.Amount,
		ItemCount:     record.ItemCount,
		OccurredAt:    occurredAt,
	})
}
