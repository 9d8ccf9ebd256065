package lottery

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the lottery id is unknown to the active store.
	ErrNotFound = errors.New("lottery not found")

	// ErrAlreadyFinalized is returned for duplicate finalization triggers.
	// It is an idempotent no-op, not an alarm.
	ErrAlreadyFinalized = errors.New("lottery already finalized")

	// ErrClosed means the lottery's deadline has passed but its timer has
	// not fired yet. Timer latency is not a sale window.
	ErrClosed = errors.New("lottery is closed for purchases")

	// ErrForbidden is returned when a privileged operation is attempted
	// without authorization.
	ErrForbidden = errors.New("operation requires elevated privilege")
)

// ValidationError rejects malformed input before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CapacityError rejects a purchase that would oversell the lottery. The
// whole request is rejected; there are no partial sales.
type CapacityError struct {
	Requested int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough tickets remaining: requested %d, %d left", e.Requested, e.Remaining)
}

// PersistenceError means a durable write failed and the in-progress mutation
// was aborted. The previously durable snapshot is intact.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
