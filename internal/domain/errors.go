package domain

import "errors"

var (
	// ErrNotFound means the referenced signal does not exist at all.
	ErrNotFound = errors.New("signal not found")

	// ErrAlreadyProcessed means a transition was attempted on a signal whose
	// approval status is terminal. The attempt has no side effect.
	ErrAlreadyProcessed = errors.New("signal already processed")

	// ErrDuplicateID means an insert collided with an existing signal id.
	// The creator re-derives the id and retries.
	ErrDuplicateID = errors.New("duplicate signal id")

	// ErrStoreUnavailable marks persistence failures. It aborts the current
	// scheduler tick only; the next tick retries.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnconfigured marks a tier whose destination is not set. Dispatch to
	// it is a logged no-op, never fatal.
	ErrUnconfigured = errors.New("destination not configured")
)
