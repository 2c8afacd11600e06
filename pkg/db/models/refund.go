package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// RefundAllocation records the slice of a refund returned through one prior
// payment instrument. Allocations applied before a mid-loop failure are kept,
// not rolled back; the audit trail shows exactly how far allocation got.
type RefundAllocation struct {
	PaymentID   uuid.UUID           `json:"payment_id"`
	Method      enums.PaymentMethod `json:"method"`
	AmountCents money.Cents         `json:"amount_cents"`
}

// Refund is one refund record against a completed transaction.
type Refund struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID          `gorm:"column:transaction_id;type:uuid;not null;index"`
	Seq           int                `gorm:"column:seq;not null"`
	AmountCents   money.Cents        `gorm:"column:amount_cents;not null"`
	Reason        string             `gorm:"column:reason;not null"`
	Items         []TransactionItem  `gorm:"column:items;type:jsonb;serializer:json"`
	Method        enums.RefundMethod `gorm:"column:method;not null"`
	Status        enums.RefundStatus `gorm:"column:status;not null;default:'pending'"`
	Allocations   []RefundAllocation `gorm:"column:allocations;type:jsonb;serializer:json"`
	ProcessedBy   string             `gorm:"column:processed_by;not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}
