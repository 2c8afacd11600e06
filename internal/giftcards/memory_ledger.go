package giftcards

import (
	"context"
	"strings"
	"sync"

	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// MemoryLedger is an in-process gift card ledger for tests and registers
// running without Redis.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]money.Cents
}

// NewMemoryLedger builds an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]money.Cents)}
}

// Load seeds a card balance directly.
func (l *MemoryLedger) Load(code string, balance money.Cents) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[normalize(code)] = balance
}

func (l *MemoryLedger) Redeem(ctx context.Context, code string, amount money.Cents) (money.Cents, error) {
	if amount <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "redeem amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[normalize(code)]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodePayment, "unknown gift card")
	}
	if balance < amount {
		return 0, pkgerrors.New(pkgerrors.CodePayment, "insufficient gift card balance").
			WithDetails(map[string]any{"balance": balance.Float()})
	}
	l.balances[normalize(code)] = balance - amount
	return balance - amount, nil
}

func (l *MemoryLedger) Credit(ctx context.Context, code string, amount money.Cents) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[normalize(code)] += amount
	return nil
}

func (l *MemoryLedger) Balance(ctx context.Context, code string) (money.Cents, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[normalize(code)]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodePayment, "unknown gift card")
	}
	return balance, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
