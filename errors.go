package job

import (
	"errors"
	"fmt"
)

// CancellationException is the expected, non-fatal failure a cancelled
// Job carries and that GetCancellationException returns (spec.md
// section 7, "Cancellation"). Cause is nil for a freshly generated
// cancellation, or the original cause being wrapped.
type CancellationException struct {
	Message string
	Cause   error
}

func (e *CancellationException) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

func (e *CancellationException) Unwrap() error { return e.Cause }

// CompletionHandlerException wraps a panic or error a completion
// listener raised (spec.md section 7). It never aborts notification of
// the remaining listeners; additional faults from other listeners are
// attached as Suppressed.
type CompletionHandlerException struct {
	Cause      error
	suppressed []error
}

func (e *CompletionHandlerException) Error() string {
	return fmt.Sprintf("completion handler failed: %s", e.Cause.Error())
}

func (e *CompletionHandlerException) Unwrap() error { return e.Cause }

// Suppressed returns additional listener faults recorded alongside the
// first one.
func (e *CompletionHandlerException) Suppressed() []error {
	return e.suppressed
}

func (e *CompletionHandlerException) addSuppressed(err error) {
	e.suppressed = append(e.suppressed, err)
}

// IllegalStateException signals a programmer error: calling
// GetCancellationException before the Job is cancelling or terminal, or
// completing a Job that is already terminal or already completing
// (spec.md section 7, "Illegal state"). Attaching a child that already
// has a parent is not checked.
type IllegalStateException struct {
	Message string
}

func (e *IllegalStateException) Error() string { return e.Message }

// materializeCause fills in the generated cancellation exception a nil
// cause stands for (spec.md section 3, invariant 2).
func materializeCause(cause error) error {
	if cause == nil {
		return &CancellationException{Message: "Job was cancelled"}
	}
	return cause
}

// sameCause implements spec.md section 4.4's cause-identity rule: two
// causes are "the same" if they are reference-equal, or if one is a
// wrapped form whose inner cause is reference-equal to the other.
// errors.Is already walks Unwrap chains comparing with ==, which is
// exactly this rule in both directions.
func sameCause(a, b error) bool {
	return errors.Is(a, b) || errors.Is(b, a)
}
