// internal/browser/errors.go
package browser

import (
	"context"
	"errors"
	"fmt"
)

// Transient lookup failures. Callers isolate these to a single field, card or
// metric rather than aborting a whole flow.
var (
	ErrNotFound        = errors.New("element not found")
	ErrTimeout         = errors.New("timed out waiting for element")
	ErrNotInteractable = errors.New("element not interactable")
	ErrClosed          = errors.New("browser closed")
)

// IsTransient reports whether err is one of the lookup failures that should be
// treated as a missing value instead of a fatal error.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrNotInteractable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// LookupError records which selector failed and why.
type LookupError struct {
	Op       string
	Selector Selector
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Selector, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// StateError is returned when a session state blob cannot be decoded or applied.
type StateError struct {
	Phase string // "decode" or "apply"
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session state %s failed: %v", e.Phase, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }
