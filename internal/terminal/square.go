package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
	"github.com/google/uuid"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// SquareTerminal drives card collection through the Square Payments API.
type SquareTerminal struct {
	sdk        *sqclient.Client
	locationID string
	logg       *logger.Logger
}

// NewSquareTerminal validates the credentials and wires the Square SDK.
func NewSquareTerminal(ctx context.Context, cfg config.TerminalConfig, logg *logger.Logger) (*SquareTerminal, error) {
	env := cfg.Environment()
	baseURL, ok := baseURLs[env]
	if !ok {
		return nil, errInvalidSquareEnv
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(accessToken),
	)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("square terminal initialized (%s)", env))
	}

	return &SquareTerminal{sdk: sdk, locationID: locationID, logg: logg}, nil
}

func (t *SquareTerminal) CollectPayment(ctx context.Context, amount money.Cents, meta Metadata) (*CollectResult, error) {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: fmt.Sprintf("pay-%s", uuid.NewString()),
		SourceID:       meta.SourceID,
		LocationID:     ptrString(t.locationID),
		AmountMoney: &sq.Money{
			Amount:   int64Ptr(int64(amount)),
			Currency: sq.CurrencyUsd.Ptr(),
		},
	}
	if meta.TransactionID != "" {
		req.ReferenceID = ptrString(meta.TransactionID)
	}

	resp, err := t.sdk.Payments.Create(ctx, req)
	if err != nil {
		return nil, t.mapSquareError(ctx, err, "collect payment")
	}

	payment := resp.GetPayment()
	result := &CollectResult{
		IntentID:          stringValue(payment.GetID()),
		InstrumentSummary: cardSummary(payment),
	}
	if t.logg != nil {
		fields := map[string]any{"intent_id": result.IntentID, "amount_cents": amount}
		t.logg.Info(t.logg.WithFields(ctx, fields), "square payment captured")
	}
	return result, nil
}

func (t *SquareTerminal) RefundPayment(ctx context.Context, intentID string, amount money.Cents) error {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: fmt.Sprintf("refund-%s", uuid.NewString()),
		PaymentID:      ptrString(intentID),
		AmountMoney: &sq.Money{
			Amount:   int64Ptr(int64(amount)),
			Currency: sq.CurrencyUsd.Ptr(),
		},
	}

	if _, err := t.sdk.Refunds.RefundPayment(ctx, req); err != nil {
		return t.mapSquareError(ctx, err, "refund payment")
	}
	return nil
}

func (t *SquareTerminal) Cancel(ctx context.Context, intentID string) error {
	req := &sq.CancelPaymentsRequest{PaymentID: intentID}
	if _, err := t.sdk.Payments.Cancel(ctx, req); err != nil {
		return t.mapSquareError(ctx, err, "cancel payment")
	}
	return nil
}

func (t *SquareTerminal) mapSquareError(ctx context.Context, err error, op string) error {
	if t.logg != nil {
		t.logg.Error(ctx, fmt.Sprintf("square %s failed", op), err)
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("square %s failed", op))
}

func cardSummary(payment *sq.Payment) string {
	if payment == nil {
		return ""
	}
	card := payment.GetCardDetails()
	if card == nil || card.GetCard() == nil {
		return ""
	}
	details := card.GetCard()
	brand := ""
	if b := details.GetCardBrand(); b != nil {
		brand = string(*b)
	}
	last4 := stringValue(details.GetLast4())
	if brand == "" && last4 == "" {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s", brand, last4))
}

func ptrString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
