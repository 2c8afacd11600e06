package enums

import "fmt"

// TransactionStatus tracks the lifecycle of a register transaction.
type TransactionStatus string

const (
	TransactionStatusPending           TransactionStatus = "pending"
	TransactionStatusCompleted         TransactionStatus = "completed"
	TransactionStatusVoided            TransactionStatus = "voided"
	TransactionStatusPartiallyRefunded TransactionStatus = "partially_refunded"
	TransactionStatusFullyRefunded     TransactionStatus = "fully_refunded"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusVoided,
	TransactionStatusPartiallyRefunded,
	TransactionStatusFullyRefunded,
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// AcceptsPayments reports whether the status still admits new payments.
func (t TransactionStatus) AcceptsPayments() bool {
	return t == TransactionStatusPending
}

// AcceptsRefunds reports whether the status admits refunds. Only a void
// closes the door: a pending transaction with collected payments can already
// be refunded.
func (t TransactionStatus) AcceptsRefunds() bool {
	return t != TransactionStatusVoided
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
