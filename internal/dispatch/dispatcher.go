// Package dispatch routes a payment attempt to the strategy for its
// instrument and normalizes the result into method-specific details. Split
// tenders are not a strategy: the caller simply issues one payment per
// instrument against the same transaction.
package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway-pos-backend/internal/customers"
	"github.com/fairwaylabs/fairway-pos-backend/internal/giftcards"
	"github.com/fairwaylabs/fairway-pos-backend/internal/terminal"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// Request is one payment attempt as handed over by the ledger. Only the
// fields for the requested method are consulted.
type Request struct {
	Method enums.PaymentMethod
	Amount money.Cents

	// cash
	Tendered money.Cents

	// gift card
	GiftCardCode string

	// house account
	CustomerID uuid.UUID

	// card terminal routing
	Meta terminal.Metadata
}

// Dispatcher executes a payment attempt against the instrument collaborator
// for its method.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (models.PaymentDetails, error)
}

type dispatcher struct {
	terminal  terminal.Terminal
	giftCards giftcards.Ledger
	customers customers.Directory
}

// New wires the dispatcher with its instrument collaborators.
func New(term terminal.Terminal, giftCards giftcards.Ledger, directory customers.Directory) (Dispatcher, error) {
	if term == nil {
		return nil, fmt.Errorf("payment terminal required")
	}
	if giftCards == nil {
		return nil, fmt.Errorf("gift card ledger required")
	}
	if directory == nil {
		return nil, fmt.Errorf("customer directory required")
	}
	return &dispatcher{terminal: term, giftCards: giftCards, customers: directory}, nil
}

func (d *dispatcher) Dispatch(ctx context.Context, req Request) (models.PaymentDetails, error) {
	if req.Amount <= 0 {
		return models.PaymentDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	switch req.Method {
	case enums.PaymentMethodCash:
		return d.dispatchCash(req)
	case enums.PaymentMethodCard:
		return d.dispatchCard(ctx, req)
	case enums.PaymentMethodGiftCard:
		return d.dispatchGiftCard(ctx, req)
	case enums.PaymentMethodHouseAccount:
		return d.dispatchHouseAccount(ctx, req)
	default:
		return models.PaymentDetails{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", req.Method))
	}
}

// dispatchCash re-validates tender even though the API layer already did. No
// external call is involved; change is computed locally.
func (d *dispatcher) dispatchCash(req Request) (models.PaymentDetails, error) {
	if req.Tendered < req.Amount {
		return models.PaymentDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "tendered amount is less than payment amount").
			WithDetails(map[string]any{
				"tendered": req.Tendered.String(),
				"amount":   req.Amount.String(),
			})
	}
	return models.PaymentDetails{
		TenderedCents: req.Tendered,
		ChangeCents:   req.Tendered - req.Amount,
	}, nil
}

// dispatchCard delegates to the terminal. Terminal failures propagate as-is;
// retries are a caller decision, never made here.
func (d *dispatcher) dispatchCard(ctx context.Context, req Request) (models.PaymentDetails, error) {
	result, err := d.terminal.CollectPayment(ctx, req.Amount, req.Meta)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return models.PaymentDetails{}, typed
		}
		return models.PaymentDetails{}, pkgerrors.Wrap(pkgerrors.CodePayment, err, "card payment declined")
	}
	return models.PaymentDetails{
		IntentID:          result.IntentID,
		InstrumentSummary: result.InstrumentSummary,
	}, nil
}

// dispatchGiftCard redeems all-or-nothing; the gift card ledger never applies
// a partial draw.
func (d *dispatcher) dispatchGiftCard(ctx context.Context, req Request) (models.PaymentDetails, error) {
	if req.GiftCardCode == "" {
		return models.PaymentDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "gift card code required")
	}
	remaining, err := d.giftCards.Redeem(ctx, req.GiftCardCode, req.Amount)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return models.PaymentDetails{}, typed
		}
		return models.PaymentDetails{}, pkgerrors.Wrap(pkgerrors.CodePayment, err, "gift card redemption failed")
	}
	return models.PaymentDetails{
		GiftCardCode:          req.GiftCardCode,
		RemainingBalanceCents: remaining,
	}, nil
}

// dispatchHouseAccount charges against the customer's house account. The
// balance write is a single call the directory applies atomically.
func (d *dispatcher) dispatchHouseAccount(ctx context.Context, req Request) (models.PaymentDetails, error) {
	if req.CustomerID == uuid.Nil {
		return models.PaymentDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "house account payments require a customer")
	}
	account, err := d.customers.GetAccount(ctx, req.CustomerID)
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound {
			return models.PaymentDetails{}, pkgerrors.Wrap(pkgerrors.CodePayment, err, "house account not found")
		}
		return models.PaymentDetails{}, err
	}

	newBalance := account.HouseBalance + req.Amount
	if newBalance > account.CreditLimit {
		return models.PaymentDetails{}, pkgerrors.New(pkgerrors.CodePayment, "house account credit limit exceeded").
			WithDetails(map[string]any{
				"current_balance": account.HouseBalance.String(),
				"credit_limit":    account.CreditLimit.String(),
				"amount":          req.Amount.String(),
			})
	}
	if err := d.customers.UpdateHouseAccountBalance(ctx, req.CustomerID, newBalance); err != nil {
		return models.PaymentDetails{}, pkgerrors.Wrap(pkgerrors.CodePayment, err, "house account charge failed")
	}
	return models.PaymentDetails{
		NewHouseBalanceCents: newBalance,
	}, nil
}
