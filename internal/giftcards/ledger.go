// Package giftcards holds the gift card balance ledger. Redemption is
// all-or-nothing: a card either covers the requested amount in full or the
// redemption fails without a partial draw.
package giftcards

import (
	"context"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// Ledger is the gift card collaborator consumed by the payment dispatcher and
// refund engine.
type Ledger interface {
	// Redeem draws amount from the card and returns the remaining balance.
	Redeem(ctx context.Context, code string, amount money.Cents) (money.Cents, error)
	// Credit returns funds to the card, creating it if needed.
	Credit(ctx context.Context, code string, amount money.Cents) error
	// Balance reads the current balance of the card.
	Balance(ctx context.Context, code string) (money.Cents, error)
}
