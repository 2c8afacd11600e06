package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// TransactionItem is one priced line on a transaction. Items are immutable
// after creation; edits produce a new transaction.
type TransactionItem struct {
	Name           string      `json:"name"`
	UnitPriceCents money.Cents `json:"unit_price_cents"`
	Quantity       int         `json:"quantity"`
	LineTotalCents money.Cents `json:"line_total_cents"`
}

// DiscountInfo records how the cart-level discount was computed.
type DiscountInfo struct {
	Type           enums.DiscountType `json:"type"`
	Value          string             `json:"value,omitempty"`
	MembershipTier string             `json:"membership_tier,omitempty"`
}

// Pricing is the cents-exact pricing breakdown frozen at creation time.
type Pricing struct {
	SubtotalCents money.Cents   `json:"subtotal_cents"`
	DiscountCents money.Cents   `json:"discount_cents"`
	DiscountInfo  *DiscountInfo `json:"discount_info,omitempty"`
	TaxableCents  money.Cents   `json:"taxable_cents"`
	TaxCents      money.Cents   `json:"tax_cents"`
	TaxRate       string        `json:"tax_rate"`
	TipCents      money.Cents   `json:"tip_cents"`
	TipPercent    string        `json:"tip_percent,omitempty"`
	TotalCents    money.Cents   `json:"total_cents"`
}

// Transaction is the settlement record for one cart. The ledger service owns
// all mutation of status, payments, and refunds.
type Transaction struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Status             enums.TransactionStatus `gorm:"column:status;not null;default:'pending'"`
	Items              []TransactionItem       `gorm:"column:items;type:jsonb;serializer:json;not null"`
	CustomerID         *uuid.UUID              `gorm:"column:customer_id;type:uuid;index"`
	CustomerName       *string                 `gorm:"column:customer_name"`
	CustomerEmail      *string                 `gorm:"column:customer_email"`
	Pricing            Pricing                 `gorm:"column:pricing;type:jsonb;serializer:json;not null"`
	Payments           []Payment               `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	Refunds            []Refund                `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	RefundedTotalCents money.Cents             `gorm:"column:refunded_total_cents;not null;default:0"`
	Source             string                  `gorm:"column:source;not null;default:'register'"`
	RegisterID         string                  `gorm:"column:register_id;not null;index"`
	EmployeeID         string                  `gorm:"column:employee_id;not null"`
	EmployeeName       string                  `gorm:"column:employee_name"`
	BookingRef         *string                 `gorm:"column:booking_ref"`
	Notes              *string                 `gorm:"column:notes"`
	VoidReason         *string                 `gorm:"column:void_reason"`
	VoidedBy           *string                 `gorm:"column:voided_by"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt        *time.Time              `gorm:"column:completed_at"`
	VoidedAt           *time.Time              `gorm:"column:voided_at"`
}

// CompletedPaymentTotal sums the completed payments on the transaction.
func (t *Transaction) CompletedPaymentTotal() money.Cents {
	var total money.Cents
	for _, p := range t.Payments {
		if p.Status == enums.PaymentStatusCompleted {
			total += p.AmountCents
		}
	}
	return total
}

// RemainingBalance is the amount still owed before the transaction completes.
// Never negative.
func (t *Transaction) RemainingBalance() money.Cents {
	remaining := t.Pricing.TotalCents - t.CompletedPaymentTotal()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MaxRefundable is the amount still eligible for refund.
func (t *Transaction) MaxRefundable() money.Cents {
	remaining := t.Pricing.TotalCents - t.RefundedTotalCents
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DeriveRefundStatus computes the post-refund status from ledger totals alone.
func (t *Transaction) DeriveRefundStatus() enums.TransactionStatus {
	switch {
	case t.RefundedTotalCents <= 0:
		return enums.TransactionStatusCompleted
	case t.RefundedTotalCents >= t.Pricing.TotalCents:
		return enums.TransactionStatusFullyRefunded
	default:
		return enums.TransactionStatusPartiallyRefunded
	}
}
