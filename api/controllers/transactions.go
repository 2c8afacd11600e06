package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairwaylabs/fairway-pos-backend/api/middleware"
	"github.com/fairwaylabs/fairway-pos-backend/api/responses"
	"github.com/fairwaylabs/fairway-pos-backend/api/validators"
	"github.com/fairwaylabs/fairway-pos-backend/internal/ledger"
	"github.com/fairwaylabs/fairway-pos-backend/internal/pricing"
	"github.com/fairwaylabs/fairway-pos-backend/internal/refunds"
	"github.com/fairwaylabs/fairway-pos-backend/internal/voids"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

type itemRequest struct {
	Name      string `json:"name" validate:"required"`
	UnitPrice string `json:"unit_price" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type discountRequest struct {
	Type           string `json:"type" validate:"required,oneof=percent fixed membership"`
	Value          string `json:"value,omitempty"`
	MembershipTier string `json:"membership_tier,omitempty"`
}

type customerRequest struct {
	ID    string `json:"id" validate:"required,uuid"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type createTransactionRequest struct {
	Items      []itemRequest    `json:"items" validate:"required,min=1,dive"`
	Discount   *discountRequest `json:"discount,omitempty"`
	TaxRate    *string          `json:"tax_rate,omitempty"`
	Tip        *string          `json:"tip,omitempty"`
	TipPercent *string          `json:"tip_percent,omitempty"`
	Customer   *customerRequest `json:"customer,omitempty"`
	Source     string           `json:"source,omitempty"`
	BookingRef *string          `json:"booking_ref,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
}

type paymentRequestBody struct {
	Method       string `json:"method" validate:"required,oneof=cash card gift_card house_account"`
	Amount       string `json:"amount" validate:"required"`
	Tendered     string `json:"tendered,omitempty"`
	GiftCardCode string `json:"gift_card_code,omitempty"`
	SourceID     string `json:"source_id,omitempty"`
}

type refundRequestBody struct {
	Amount string        `json:"amount" validate:"required"`
	Reason string        `json:"reason" validate:"required"`
	Method string        `json:"method" validate:"required,oneof=original cash store_credit"`
	Items  []itemRequest `json:"items,omitempty" validate:"omitempty,dive"`
}

type voidRequestBody struct {
	Reason string `json:"reason" validate:"required"`
}

// CreateTransaction opens a priced transaction in pending state.
func CreateTransaction(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createTransactionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := buildCreateInput(r, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transaction, err := svc.Create(r.Context(), *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, transactionResponseFrom(transaction))
	}
}

// GetTransaction returns the full settlement record.
func GetTransaction(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := transactionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transaction, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionResponseFrom(transaction))
	}
}

// AddPayment settles part of a pending transaction.
func AddPayment(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := transactionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body paymentRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(body.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		amount, err := parseAmount(body.Amount, "amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req := ledger.PaymentRequest{
			Method:       method,
			Amount:       amount,
			GiftCardCode: body.GiftCardCode,
			SourceID:     body.SourceID,
		}
		if body.Tendered != "" {
			tendered, err := parseAmount(body.Tendered, "tendered")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			req.Tendered = tendered
		}

		result, err := svc.AddPayment(r.Context(), id, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, addPaymentResponse{
			Payment:     paymentResponseFrom(result.Payment),
			Transaction: transactionResponseFrom(result.Transaction),
		})
	}
}

// GetBalance returns the amount still owed on a transaction.
func GetBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := transactionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.RemainingBalance(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"transaction_id":    id.String(),
			"remaining_balance": balance.String(),
		})
	}
}

// CreateRefund allocates a refund against a settled transaction.
func CreateRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := transactionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body refundRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParseRefundMethod(body.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund method"))
			return
		}
		amount, err := parseAmount(body.Amount, "amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := refundItems(body.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, refundErr := svc.CreateRefund(r.Context(), refunds.CreateInput{
			TransactionID: id,
			Amount:        amount,
			Reason:        body.Reason,
			Items:         items,
			Method:        method,
			EmployeeID:    middleware.EmployeeIDFromContext(r.Context()),
		})
		if refundErr != nil && refund == nil {
			responses.WriteError(r.Context(), logg, w, refundErr)
			return
		}

		resp := refundResponseFrom(refund)
		if refundErr != nil {
			// Allocation stopped partway; the recorded portion stands.
			resp.Partial = true
			if typed := pkgerrors.As(refundErr); typed != nil {
				resp.Error = typed.Message()
			}
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// VoidTransaction cancels a still-pending transaction.
func VoidTransaction(svc voids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := transactionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body voidRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transaction, err := svc.Void(r.Context(), voids.Input{
			TransactionID: id,
			Reason:        body.Reason,
			EmployeeID:    middleware.EmployeeIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionResponseFrom(transaction))
	}
}

func transactionIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "transactionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction id")
	}
	return id, nil
}

func parseAmount(raw, field string) (money.Cents, error) {
	amount, err := money.Parse(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return amount, nil
}

func buildCreateInput(r *http.Request, body createTransactionRequest) (*ledger.CreateInput, error) {
	items := make([]pricing.Item, 0, len(body.Items))
	for _, item := range body.Items {
		price, err := parseAmount(item.UnitPrice, "unit_price")
		if err != nil {
			return nil, err
		}
		items = append(items, pricing.Item{Name: item.Name, UnitPrice: price, Quantity: item.Quantity})
	}

	input := &ledger.CreateInput{
		Items:        items,
		Source:       body.Source,
		RegisterID:   middleware.RegisterIDFromContext(r.Context()),
		EmployeeID:   middleware.EmployeeIDFromContext(r.Context()),
		EmployeeName: middleware.EmployeeNameFromContext(r.Context()),
		BookingRef:   body.BookingRef,
		Notes:        body.Notes,
	}

	if body.Discount != nil {
		discountType, err := enums.ParseDiscountType(body.Discount.Type)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
		}
		discount := &pricing.Discount{Type: discountType, MembershipTier: body.Discount.MembershipTier}
		if body.Discount.Value != "" {
			value, err := decimal.NewFromString(body.Discount.Value)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount value")
			}
			discount.Value = value
		}
		input.Discount = discount
	}

	if body.TaxRate != nil {
		rate, err := decimal.NewFromString(*body.TaxRate)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tax rate")
		}
		input.TaxRate = &rate
	}
	if body.Tip != nil {
		tip, err := parseAmount(*body.Tip, "tip")
		if err != nil {
			return nil, err
		}
		input.Tip = tip
	}
	if body.TipPercent != nil {
		percent, err := decimal.NewFromString(*body.TipPercent)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tip percent")
		}
		input.TipPercent = &percent
	}

	if body.Customer != nil {
		customerID, err := uuid.Parse(body.Customer.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id")
		}
		input.Customer = &ledger.CustomerRef{
			ID:    customerID,
			Name:  body.Customer.Name,
			Email: body.Customer.Email,
		}
	}

	return input, nil
}

func refundItems(items []itemRequest) ([]models.TransactionItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]models.TransactionItem, 0, len(items))
	for _, item := range items {
		price, err := parseAmount(item.UnitPrice, "unit_price")
		if err != nil {
			return nil, err
		}
		out = append(out, models.TransactionItem{
			Name:           item.Name,
			UnitPriceCents: price,
			Quantity:       item.Quantity,
			LineTotalCents: price.MulInt(item.Quantity),
		})
	}
	return out, nil
}

type itemResponse struct {
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type pricingResponse struct {
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discount_amount"`
	TaxableAmount  string `json:"taxable_amount"`
	Tax            string `json:"tax"`
	TaxRate        string `json:"tax_rate"`
	Tip            string `json:"tip"`
	TipPercent     string `json:"tip_percent,omitempty"`
	Total          string `json:"total"`
}

type paymentResponse struct {
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Amount  string         `json:"amount"`
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
	Error   *string        `json:"error,omitempty"`
}

type refundResponse struct {
	ID          string               `json:"id"`
	Amount      string               `json:"amount"`
	Reason      string               `json:"reason"`
	Method      string               `json:"method"`
	Status      string               `json:"status"`
	Allocations []allocationResponse `json:"allocations,omitempty"`
	ProcessedBy string               `json:"processed_by,omitempty"`
	Partial     bool                 `json:"partial,omitempty"`
	Error       string               `json:"error,omitempty"`
}

type allocationResponse struct {
	PaymentID string `json:"payment_id"`
	Method    string `json:"method"`
	Amount    string `json:"amount"`
}

type transactionResponse struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Items            []itemResponse    `json:"items"`
	Pricing          pricingResponse   `json:"pricing"`
	Payments         []paymentResponse `json:"payments,omitempty"`
	Refunds          []refundResponse  `json:"refunds,omitempty"`
	RefundedTotal    string            `json:"refunded_total"`
	RemainingBalance string            `json:"remaining_balance"`
	CustomerID       *string           `json:"customer_id,omitempty"`
	CustomerName     *string           `json:"customer_name,omitempty"`
	Source           string            `json:"source"`
	RegisterID       string            `json:"register_id"`
	EmployeeID       string            `json:"employee_id"`
	BookingRef       *string           `json:"booking_ref,omitempty"`
	Notes            *string           `json:"notes,omitempty"`
	VoidReason       *string           `json:"void_reason,omitempty"`
	VoidedBy         *string           `json:"voided_by,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	VoidedAt         *time.Time        `json:"voided_at,omitempty"`
}

type addPaymentResponse struct {
	Payment     paymentResponse     `json:"payment"`
	Transaction transactionResponse `json:"transaction"`
}

func transactionResponseFrom(transaction *models.Transaction) transactionResponse {
	items := make([]itemResponse, 0, len(transaction.Items))
	for _, item := range transaction.Items {
		items = append(items, itemResponse{
			Name:      item.Name,
			UnitPrice: item.UnitPriceCents.String(),
			Quantity:  item.Quantity,
			LineTotal: item.LineTotalCents.String(),
		})
	}

	payments := make([]paymentResponse, 0, len(transaction.Payments))
	for i := range transaction.Payments {
		payments = append(payments, paymentResponseFrom(&transaction.Payments[i]))
	}

	refundList := make([]refundResponse, 0, len(transaction.Refunds))
	for i := range transaction.Refunds {
		refundList = append(refundList, refundResponseFrom(&transaction.Refunds[i]))
	}

	resp := transactionResponse{
		ID:     transaction.ID.String(),
		Status: transaction.Status.String(),
		Items:  items,
		Pricing: pricingResponse{
			Subtotal:       transaction.Pricing.SubtotalCents.String(),
			DiscountAmount: transaction.Pricing.DiscountCents.String(),
			TaxableAmount:  transaction.Pricing.TaxableCents.String(),
			Tax:            transaction.Pricing.TaxCents.String(),
			TaxRate:        transaction.Pricing.TaxRate,
			Tip:            transaction.Pricing.TipCents.String(),
			TipPercent:     transaction.Pricing.TipPercent,
			Total:          transaction.Pricing.TotalCents.String(),
		},
		Payments:         payments,
		Refunds:          refundList,
		RefundedTotal:    transaction.RefundedTotalCents.String(),
		RemainingBalance: transaction.RemainingBalance().String(),
		CustomerName:     transaction.CustomerName,
		Source:           transaction.Source,
		RegisterID:       transaction.RegisterID,
		EmployeeID:       transaction.EmployeeID,
		BookingRef:       transaction.BookingRef,
		Notes:            transaction.Notes,
		VoidReason:       transaction.VoidReason,
		VoidedBy:         transaction.VoidedBy,
		CreatedAt:        transaction.CreatedAt,
		CompletedAt:      transaction.CompletedAt,
		VoidedAt:         transaction.VoidedAt,
	}
	if transaction.CustomerID != nil {
		id := transaction.CustomerID.String()
		resp.CustomerID = &id
	}
	return resp
}

func paymentResponseFrom(payment *models.Payment) paymentResponse {
	resp := paymentResponse{
		ID:     payment.ID.String(),
		Method: payment.Method.String(),
		Amount: payment.AmountCents.String(),
		Status: payment.Status.String(),
		Error:  payment.ErrorMessage,
	}

	details := map[string]any{}
	switch payment.Method {
	case enums.PaymentMethodCash:
		details["tendered"] = payment.Details.TenderedCents.String()
		details["change"] = payment.Details.ChangeCents.String()
	case enums.PaymentMethodCard:
		if payment.Details.IntentID != "" {
			details["intent_id"] = payment.Details.IntentID
		}
		if payment.Details.InstrumentSummary != "" {
			details["instrument_summary"] = payment.Details.InstrumentSummary
		}
	case enums.PaymentMethodGiftCard:
		if payment.Details.GiftCardCode != "" {
			details["gift_card_code"] = payment.Details.GiftCardCode
			details["remaining_balance"] = payment.Details.RemainingBalanceCents.String()
		}
	case enums.PaymentMethodHouseAccount:
		details["new_house_balance"] = payment.Details.NewHouseBalanceCents.String()
	}
	if len(details) > 0 && payment.Status == enums.PaymentStatusCompleted {
		resp.Details = details
	}
	return resp
}

func refundResponseFrom(refund *models.Refund) refundResponse {
	allocations := make([]allocationResponse, 0, len(refund.Allocations))
	for _, allocation := range refund.Allocations {
		allocations = append(allocations, allocationResponse{
			PaymentID: allocation.PaymentID.String(),
			Method:    allocation.Method.String(),
			Amount:    allocation.AmountCents.String(),
		})
	}
	return refundResponse{
		ID:          refund.ID.String(),
		Amount:      refund.AmountCents.String(),
		Reason:      refund.Reason,
		Method:      refund.Method.String(),
		Status:      refund.Status.String(),
		Allocations: allocations,
		ProcessedBy: refund.ProcessedBy,
	}
}
