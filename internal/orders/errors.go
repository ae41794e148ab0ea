package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStaleState        = errors.New("stale state")
	ErrAlreadyApplied    = errors.New("already applied")
	ErrInvalidInput      = errors.New("invalid input")
)

// StaleError is returned when the caller's view of the order is out of date.
// It matches both ErrStaleState and ErrInvalidTransition.
type StaleError struct {
	OrderID  string
	Expected Status
	Actual   Status
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("order %s: expected status %s, found %s", e.OrderID, e.Expected, e.Actual)
}

func (e *StaleError) Is(target error) bool {
	return target == ErrStaleState || target == ErrInvalidTransition
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidTransition}, args...)...)
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrForbidden}, args...)...)
}
