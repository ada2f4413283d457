package primitive

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig is wrapped by every error Build returns.
	ErrInvalidConfig = errors.New("invalid manager configuration")

	// ErrAlreadyRunning is returned when starting something twice.
	ErrAlreadyRunning = errors.New("already running")

	// ErrStopped is returned when starting something that has been stopped.
	// Nothing in this package restarts.
	ErrStopped = errors.New("stopped")
)

// WriteFailure records one property write that an actuator refused.
type WriteFailure struct {
	Actuator string
	Property string
	Value    float64
	Err      error
}

func (f WriteFailure) Error() string {
	return fmt.Sprintf("%s.%s <- %g: %v", f.Actuator, f.Property, f.Value, f.Err)
}

func (f WriteFailure) Unwrap() error {
	return f.Err
}

// TickError gathers the write failures of one tick. It is reported once the
// tick has visited every actuator.
type TickError struct {
	Tick     uint64
	Failures []WriteFailure
}

func (e *TickError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}

	return fmt.Sprintf("tick %d: %d write failure(s): %s",
		e.Tick, len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *TickError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}

	return errs
}
