// Package pricing computes the cents-exact pricing breakdown for a cart.
// Every function here is pure; no ledger state is touched.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// Item is one priced cart line.
type Item struct {
	Name      string
	UnitPrice money.Cents
	Quantity  int
}

// Discount describes an optional cart-level discount.
type Discount struct {
	Type           enums.DiscountType
	Value          decimal.Decimal
	MembershipTier string
}

// TierTable maps a lowercase membership tier to its discount rate. The table
// is supplied by the membership collaborator; an unknown tier yields no
// discount rather than an error.
type TierTable map[string]decimal.Decimal

// Rate looks up a tier's discount rate, defaulting to zero.
func (t TierTable) Rate(tier string) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	if rate, ok := t[strings.ToLower(strings.TrimSpace(tier))]; ok {
		return rate
	}
	return decimal.Zero
}

// Input collects everything the calculator needs.
type Input struct {
	Items    []Item
	Discount *Discount
	Tiers    TierTable
	TaxRate  decimal.Decimal
	// Tip is a flat amount. TipPercent, when set, computes the tip from the
	// payable base (taxable amount plus tax) instead.
	Tip        money.Cents
	TipPercent *decimal.Decimal
}

// Calculate produces the frozen pricing breakdown. Each line total is
// cents-exact before summing, so per-line rounding error cannot compound.
func Calculate(input Input) (models.Pricing, error) {
	if len(input.Items) == 0 {
		return models.Pricing{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	var subtotal money.Cents
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return models.Pricing{}, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"item": item.Name, "quantity": item.Quantity})
		}
		if item.UnitPrice < 0 {
			return models.Pricing{}, pkgerrors.New(pkgerrors.CodeValidation, "item price cannot be negative").
				WithDetails(map[string]any{"item": item.Name})
		}
		subtotal += item.UnitPrice.MulInt(item.Quantity)
	}

	discountAmount, discountInfo, err := computeDiscount(subtotal, input.Discount, input.Tiers)
	if err != nil {
		return models.Pricing{}, err
	}

	taxable := subtotal - discountAmount
	if taxable < 0 {
		taxable = 0
	}

	if input.TaxRate.IsNegative() {
		return models.Pricing{}, pkgerrors.New(pkgerrors.CodeValidation, "tax rate cannot be negative")
	}
	tax := taxable.MulRate(input.TaxRate)

	tip := input.Tip
	tipPercent := ""
	if input.TipPercent != nil {
		if input.TipPercent.IsNegative() {
			return models.Pricing{}, pkgerrors.New(pkgerrors.CodeValidation, "tip percent cannot be negative")
		}
		tip = (taxable + tax).MulRate(input.TipPercent.Div(decimal.NewFromInt(100)))
		tipPercent = input.TipPercent.String()
	}
	if tip < 0 {
		return models.Pricing{}, pkgerrors.New(pkgerrors.CodeValidation, "tip cannot be negative")
	}

	return models.Pricing{
		SubtotalCents: subtotal,
		DiscountCents: discountAmount,
		DiscountInfo:  discountInfo,
		TaxableCents:  taxable,
		TaxCents:      tax,
		TaxRate:       input.TaxRate.String(),
		TipCents:      tip,
		TipPercent:    tipPercent,
		TotalCents:    taxable + tax + tip,
	}, nil
}

// LineItems converts calculator items into the frozen transaction item form.
func LineItems(items []Item) []models.TransactionItem {
	out := make([]models.TransactionItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.TransactionItem{
			Name:           item.Name,
			UnitPriceCents: item.UnitPrice,
			Quantity:       item.Quantity,
			LineTotalCents: item.UnitPrice.MulInt(item.Quantity),
		})
	}
	return out
}

func computeDiscount(subtotal money.Cents, discount *Discount, tiers TierTable) (money.Cents, *models.DiscountInfo, error) {
	if discount == nil {
		return 0, nil, nil
	}

	info := &models.DiscountInfo{Type: discount.Type}
	switch discount.Type {
	case enums.DiscountTypePercent:
		if discount.Value.IsNegative() {
			return 0, nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percent cannot be negative")
		}
		info.Value = discount.Value.String()
		amount := subtotal.MulRate(discount.Value.Div(decimal.NewFromInt(100)))
		return money.Min(amount, subtotal), info, nil

	case enums.DiscountTypeFixed:
		fixed := money.FromDecimal(discount.Value)
		if fixed < 0 {
			return 0, nil, pkgerrors.New(pkgerrors.CodeValidation, "discount amount cannot be negative")
		}
		info.Value = discount.Value.String()
		return money.Min(fixed, subtotal), info, nil

	case enums.DiscountTypeMembership:
		info.MembershipTier = discount.MembershipTier
		rate := tiers.Rate(discount.MembershipTier)
		amount := subtotal.MulRate(rate)
		return money.Min(amount, subtotal), info, nil

	default:
		return 0, nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown discount type").
			WithDetails(map[string]any{"type": discount.Type})
	}
}
