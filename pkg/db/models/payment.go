package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// PaymentDetails carries the method-specific payload of a payment attempt.
// Only the fields relevant to the method are populated.
type PaymentDetails struct {
	// cash
	TenderedCents money.Cents `json:"tendered_cents,omitempty"`
	ChangeCents   money.Cents `json:"change_cents,omitempty"`
	// card
	IntentID          string `json:"intent_id,omitempty"`
	InstrumentSummary string `json:"instrument_summary,omitempty"`
	// gift card
	GiftCardCode          string      `json:"gift_card_code,omitempty"`
	RemainingBalanceCents money.Cents `json:"remaining_balance_cents,omitempty"`
	// house account
	NewHouseBalanceCents money.Cents `json:"new_house_balance_cents,omitempty"`
}

// Payment is one settlement attempt against a transaction. Records are
// append-only: failed attempts stay on the ledger as audit trail.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID           `gorm:"column:transaction_id;type:uuid;not null;index"`
	Seq           int                 `gorm:"column:seq;not null"`
	Method        enums.PaymentMethod `gorm:"column:method;not null"`
	AmountCents   money.Cents         `gorm:"column:amount_cents;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Details       PaymentDetails      `gorm:"column:details;type:jsonb;serializer:json"`
	ErrorMessage  *string             `gorm:"column:error_message"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
