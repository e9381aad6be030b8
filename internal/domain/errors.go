package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidOrder is returned when a module reorder request is not a
// permutation of the existing module indices.
var ErrInvalidOrder = errors.New("invalid module order")

// ErrCancelled is returned when a negotiation is aborted by the caller.
var ErrCancelled = errors.New("negotiation cancelled")

// CapabilityError wraps a Proposer or Critic call failure (network error,
// timeout, or output that never became a valid artifact across retries).
type CapabilityError struct {
	Op       string // "propose" or "critique"
	Attempts int
	Err      error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// ValidationError reports an artifact, critique, or request that fails its
// schema checks.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}
