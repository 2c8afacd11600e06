package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// Customer is the directory record backing house accounts and store credit.
type Customer struct {
	ID                uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	Name              string      `gorm:"column:name;not null"`
	Email             *string     `gorm:"column:email;uniqueIndex"`
	MembershipTier    *string     `gorm:"column:membership_tier"`
	HouseBalanceCents money.Cents `gorm:"column:house_balance_cents;not null;default:0"`
	CreditLimitCents  money.Cents `gorm:"column:credit_limit_cents;not null;default:0"`
	StoreCreditCents  money.Cents `gorm:"column:store_credit_cents;not null;default:0"`
	CreatedAt         time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

// CustomerActivity is one purchase or refund history row for a customer.
type CustomerActivity struct {
	ID            uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID    uuid.UUID   `gorm:"column:customer_id;type:uuid;not null;index"`
	TransactionID uuid.UUID   `gorm:"column:transaction_id;type:uuid;not null"`
	Kind          string      `gorm:"column:kind;not null"`
	AmountCents   money.Cents `gorm:"column:amount_cents;not null"`
	ItemCount     int         `gorm:"column:item_count;not null;default:0"`
	OccurredAt    time.Time   `gorm:"column:occurred_at;not null"`
	CreatedAt     time.Time   `gorm:"column:created_at;autoCreateTime"`
}

const (
	CustomerActivityPurchase = "purchase"
	CustomerActivityRefund   = "refund"
)
