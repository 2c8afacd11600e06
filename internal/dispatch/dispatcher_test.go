package dispatch

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwaylabs/fairway-pos-backend/internal/customers"
	"github.com/fairwaylabs/fairway-pos-backend/internal/terminal"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

type stubTerminal struct {
	result    *terminal.CollectResult
	collectFn func(amount money.Cents, meta terminal.Metadata) (*terminal.CollectResult, error)
	err       error
}

func (s *stubTerminal) CollectPayment(_ context.Context, amount money.Cents, meta terminal.Metadata) (*terminal.CollectResult, error) {
	if s.collectFn != nil {
		return s.collectFn(amount, meta)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubTerminal) RefundPayment(context.Context, string, money.Cents) error { return nil }

func (s *stubTerminal) Cancel(context.Context, string) error { return nil }

type stubGiftCards struct {
	remaining money.Cents
	err       error
	redeemed  []money.Cents
}

func (s *stubGiftCards) Redeem(_ context.Context, _ string, amount money.Cents) (money.Cents, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.redeemed = append(s.redeemed, amount)
	return s.remaining, nil
}

func (s *stubGiftCards) Credit(context.Context, string, money.Cents) error { return nil }

func (s *stubGiftCards) Balance(context.Context, string) (money.Cents, error) {
	return s.remaining, nil
}

type stubDirectory struct {
	account   *customers.Account
	lookupErr error
	updateErr error
	updated   []money.Cents
}

func (s *stubDirectory) GetAccount(context.Context, uuid.UUID) (*customers.Account, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.account, nil
}

func (s *stubDirectory) UpdateHouseAccountBalance(_ context.Context, _ uuid.UUID, balance money.Cents) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, balance)
	return nil
}

func (s *stubDirectory) AddStoreCredit(context.Context, uuid.UUID, money.Cents) error { return nil }

func (s *stubDirectory) RecordPurchase(context.Context, customers.ActivityRecord) error { return nil }

func (s *stubDirectory) RecordRefund(context.Context, customers.ActivityRecord) error { return nil }

func newTestDispatcher(t *testing.T, term *stubTerminal, cards *stubGiftCards, dir *stubDirectory) Dispatcher {
	t.Helper()

	d, err := New(term, cards, dir)
	require.NoError(t, err)
	return d
}

func TestDispatchCash(t *testing.T) {
	d := newTestDispatcher(t, &stubTerminal{}, &stubGiftCards{}, &stubDirectory{})

	details, err := d.Dispatch(context.Background(), Request{
		Method:   enums.PaymentMethodCash,
		Amount:   3401,
		Tendered: 4000,
	})
	require.NoError(t, err)
	assert.Equal(t, money.Cents(4000), details.TenderedCents)
	assert.Equal(t, money.Cents(599), details.ChangeCents)
}

func TestDispatchCash_insufficientTender(t *testing.T) {
	d := newTestDispatcher(t, &stubTerminal{}, &stubGiftCards{}, &stubDirectory{})

	_, err := d.Dispatch(context.Background(), Request{
		Method:   enums.PaymentMethodCash,
		Amount:   3401,
		Tendered: 3000,
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDispatchCard(t *testing.T) {
	term := &stubTerminal{result: &terminal.CollectResult{
		IntentID:          "sim-abc",
		InstrumentSummary: "VISA •••• 4242",
	}}
	d := newTestDispatcher(t, term, &stubGiftCards{}, &stubDirectory{})

	details, err := d.Dispatch(context.Background(), Request{
		Method: enums.PaymentMethodCard,
		Amount: 6000,
		Meta:   terminal.Metadata{RegisterID: "reg-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sim-abc", details.IntentID)
	assert.Equal(t, "VISA •••• 4242", details.InstrumentSummary)
}

func TestDispatchCard_terminalDecline(t *testing.T) {
	term := &stubTerminal{err: pkgerrors.New(pkgerrors.CodePayment, "card declined")}
	d := newTestDispatcher(t, term, &stubGiftCards{}, &stubDirectory{})

	_, err := d.Dispatch(context.Background(), Request{
		Method: enums.PaymentMethodCard,
		Amount: 6000,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePayment, pkgerrors.CodeOf(err))
	assert.Equal(t, "card declined", pkgerrors.As(err).Message())
}

func TestDispatchGiftCard(t *testing.T) {
	cards := &stubGiftCards{remaining: 1500}
	d := newTestDispatcher(t, &stubTerminal{}, cards, &stubDirectory{})

	details, err := d.Dispatch(context.Background(), Request{
		Method:       enums.PaymentMethodGiftCard,
		Amount:       2500,
		GiftCardCode: "GC-1001",
	})
	require.NoError(t, err)
	assert.Equal(t, "GC-1001", details.GiftCardCode)
	assert.Equal(t, money.Cents(1500), details.RemainingBalanceCents)
	assert.Equal(t, []money.Cents{2500}, cards.redeemed)
}

func TestDispatchGiftCard_missingCode(t *testing.T) {
	d := newTestDispatcher(t, &stubTerminal{}, &stubGiftCards{}, &stubDirectory{})

	_, err := d.Dispatch(context.Background(), Request{
		Method: enums.PaymentMethodGiftCard,
		Amount: 2500,
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDispatchGiftCard_insufficientBalance(t *testing.T) {
	cards := &stubGiftCards{err: pkgerrors.New(pkgerrors.CodePayment, "insufficient gift card balance")}
	d := newTestDispatcher(t, &stubTerminal{}, cards, &stubDirectory{})

	_, err := d.Dispatch(context.Background(), Request{
		Method:       enums.PaymentMethodGiftCard,
		Amount:       2500,
		GiftCardCode: "GC-1001",
	})
	assert.Equal(t, pkgerrors.CodePayment, pkgerrors.CodeOf(err))
	assert.Empty(t, cards.redeemed)
}

func TestDispatchHouseAccount(t *testing.T) {
	customerID := uuid.New()
	dir := &stubDirectory{account: &customers.Account{
		CustomerID:   customerID,
		HouseBalance: 1000,
		CreditLimit:  50000,
	}}
	d := newTestDispatcher(t, &stubTerminal{}, &stubGiftCards{}, dir)

	details, err := d.Dispatch(context.Background(), Request{
		Method:     enums.PaymentMethodHouseAccount,
		Amount:     3401,
		CustomerID: customerID,
	})
	require.NoError(t, err)
	assert.Equal(t, money.Cents(4401), details.NewHouseBalanceCents)
	assert.Equal(t, []money.Cents{4401}, dir.updated)
}

func TestDispatchHouseAccount_creditLimitExceeded(t *testing.T) {
	customerID := uuid.New()
	dir := &stubDirectory{account: &customers.Account{
		CustomerID:   customerID,
		HouseBalance: 48000,
		CreditLimit:  50000,
	}}
	d := newTestDispatcher(t, &stubTerminal{}, &stubGiftCards{}, dir)

	_, err := d.Dispatch(context.Background(), Request{
		Method:     enums.PaymentMethodHouseAccount,
		Amount:     3401,
		CustomerID: customerID,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePayment, pkgerrors.CodeOf(err))
	assert.Empty(t, dir.updated)

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "480.00", details["current_balance"])
	assert.Equal(t, "500.00", details["credit_limit"])
}

func TestDispatchHouseAccount_requiresCustomer(t *testing.T) {
	d := newTestDispatcher(t, &stubTerminal{}, &stubGiftCards{}, &stubDirectory{})

	_, err := d.Dispatch(context.Background(), Request{
		Method: enums.PaymentMethodHouseAccount,
		Amount: 3401,
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDispatch_unsupportedMethod(t *testing.T) {
	d := newTestDispatcher(t, &stubTerminal{}, &stubGiftCards{}, &stubDirectory{})

	_, err := d.Dispatch(context.Background(), Request{Method: enums.PaymentMethod("crypto"), Amount: 100})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
