package webhook

import "context"

// State is the delivery state of an idempotency key.
type State int

const (
	// StateAbsent means the key has never been seen.
	StateAbsent State = iota
	// StatePending means a delivery is in progress.
	StatePending
	// StateUsed means a delivery was attempted.
	StateUsed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateUsed:
		return "used"
	default:
		return "absent"
	}
}

// IdempotencyStore tracks webhook keys. Implementations must be safe for
// concurrent use, and CheckAndMark must be atomic: for any key exactly one
// caller observes StateAbsent.
type IdempotencyStore interface {
	// CheckAndMark returns the state before the call, marking the key
	// Pending when it was Absent.
	CheckAndMark(ctx context.Context, key string) (State, error)

	// MarkUsed moves the key to Used.
	MarkUsed(ctx context.Context, key string) error
}
