package terminal

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
)

// Simulator is the terminal used when no card hardware is configured. It
// approves every collection and tracks intents in memory so cancel/refund
// behave consistently within a process.
type Simulator struct {
	mu      sync.Mutex
	intents map[string]money.Cents
	logg    *logger.Logger
}

// NewSimulator wires a simulated terminal.
func NewSimulator(logg *logger.Logger) *Simulator {
	return &Simulator{
		intents: make(map[string]money.Cents),
		logg:    logg,
	}
}

func (s *Simulator) CollectPayment(ctx context.Context, amount money.Cents, meta Metadata) (*CollectResult, error) {
	intentID := "sim-" + uuid.NewString()

	s.mu.Lock()
	s.intents[intentID] = amount
	s.mu.Unlock()

	if s.logg != nil {
		fields := map[string]any{"intent_id": intentID, "amount_cents": amount}
		s.logg.Info(s.logg.WithFields(ctx, fields), "simulated card payment captured")
	}
	return &CollectResult{
		IntentID:          intentID,
		InstrumentSummary: "SIMULATED 0000",
	}, nil
}

func (s *Simulator) RefundPayment(ctx context.Context, intentID string, amount money.Cents) error {
	s.mu.Lock()
	captured, ok := s.intents[intentID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown intent %q", intentID)
	}
	if amount > captured {
		return fmt.Errorf("refund %s exceeds captured amount %s", amount, captured)
	}
	return nil
}

func (s *Simulator) Cancel(ctx context.Context, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intents, intentID)
	return nil
}
