// Package terminal defines the card terminal capability. Amounts cross this
// boundary in integer minor units. The concrete implementation is resolved at
// construction time; callers never probe for terminal availability.
package terminal

import (
	"context"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// CollectResult reports a successful card collection.
type CollectResult struct {
	IntentID          string
	InstrumentSummary string
}

// Metadata travels with every terminal request for reconciliation.
type Metadata struct {
	TransactionID string
	RegisterID    string
	EmployeeID    string
	// SourceID is the tokenized card source produced by the register hardware.
	SourceID string
}

// Terminal is the external payment terminal collaborator.
type Terminal interface {
	// CollectPayment authorizes and captures a card payment.
	CollectPayment(ctx context.Context, amount money.Cents, meta Metadata) (*CollectResult, error)
	// RefundPayment returns funds against a previously captured intent.
	RefundPayment(ctx context.Context, intentID string, amount money.Cents) error
	// Cancel aborts an in-flight intent. Best effort; callers tolerate failure.
	Cancel(ctx context.Context, intentID string) error
}
