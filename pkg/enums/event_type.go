package enums

// EventType names the domain events published on the event bus.
type EventType string

const (
	EventTransactionCompleted EventType = "transaction.completed"
	EventTransactionVoided    EventType = "transaction.voided"
	EventRefundCompleted      EventType = "refund.completed"
)

// String implements fmt.Stringer.
func (e EventType) String() string {
	return string(e)
}
