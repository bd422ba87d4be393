package job

import (
	"sync/atomic"

	"github.com/ternarybob/job/internal/retry"
)

// stateKind tags which of the shapes in spec.md section 3 a stateBox
// represents. All shapes live behind one struct (rather than one type
// per shape) so they can be held in a single atomic.Pointer - the
// "tagged union" spec.md section 9 asks a re-implementation to preserve.
type stateKind uint8

const (
	kindEmpty stateKind = iota
	kindSingleListener
	kindList
	kindFinishing
	kindCancelled
	kindCompletedExceptionally
	kindCompletedValue
)

// stateBox is the value held by a stateCell. Only the fields relevant to
// kind are meaningful; this mirrors the compact encoding spec.md section
// 3 describes (not, of course, its exact bit layout - Go has no sum
// types, so a tagged struct is the idiomatic stand-in).
type stateBox struct {
	kind stateKind

	// kindEmpty
	active bool

	// kindSingleListener
	node *listenerNode

	// kindList, kindFinishing
	list *nodeList

	// kindFinishing, kindCancelled
	hasCancelCause bool
	cause          error

	// kindFinishing
	completing bool

	// kindCompletedExceptionally
	err error

	// kindCompletedValue
	value any
}

func newEmptyState(active bool) *stateBox {
	return &stateBox{kind: kindEmpty, active: active}
}

func newSingleListenerState(n *listenerNode) *stateBox {
	return &stateBox{kind: kindSingleListener, node: n}
}

func newListState(l *nodeList) *stateBox {
	return &stateBox{kind: kindList, list: l}
}

func newFinishingState(l *nodeList, cancelCause error, completing bool) *stateBox {
	return &stateBox{
		kind:           kindFinishing,
		list:           l,
		hasCancelCause: cancelCause != nil,
		cause:          cancelCause,
		completing:     completing,
	}
}

func newCancelledState(cause error) *stateBox {
	return &stateBox{kind: kindCancelled, hasCancelCause: true, cause: cause}
}

func newCompletedExceptionallyState(err error) *stateBox {
	return &stateBox{kind: kindCompletedExceptionally, err: err}
}

func newCompletedValueState(v any) *stateBox {
	return &stateBox{kind: kindCompletedValue, value: v}
}

func (s *stateBox) isTerminal() bool {
	switch s.kind {
	case kindCancelled, kindCompletedExceptionally, kindCompletedValue:
		return true
	default:
		return false
	}
}

// terminalCause returns the cause to hand listeners on terminal
// transition: the cancellation cause, the failure, or nil on a normal
// completion (spec.md section 3, invariant 5).
func (s *stateBox) terminalCause() error {
	switch s.kind {
	case kindCancelled:
		return s.cause
	case kindCompletedExceptionally:
		return s.err
	default:
		return nil
	}
}

// listOrNil returns the listener list backing this state, if any.
func (s *stateBox) listOrNil() *nodeList {
	switch s.kind {
	case kindList, kindFinishing:
		return s.list
	default:
		return nil
	}
}

func (s *stateBox) completionModeName() string {
	switch s.kind {
	case kindCancelled:
		return "cancelled"
	case kindCompletedExceptionally:
		return "completed_exceptionally"
	case kindCompletedValue:
		return "completed_value"
	default:
		return "unknown"
	}
}

// stateCell is a single atomic slot. Readers never need to "help" an
// in-progress operation (spec.md section 9's OpDescriptor paragraph):
// this implementation uses single-CAS transitions with caller-driven
// retry instead, which spec.md explicitly allows provided the
// lock-freedom and progress properties of section 5 are preserved - they
// are, since every operation here is a bounded number of reads plus one
// CAS per retry.
type stateCell struct {
	ptr atomic.Pointer[stateBox]
}

func (c *stateCell) load() *stateBox {
	return c.ptr.Load()
}

func (c *stateCell) store(v *stateBox) {
	c.ptr.Store(v)
}

func (c *stateCell) cas(old, next *stateBox) bool {
	return c.ptr.CompareAndSwap(old, next)
}

// backoffLoop yields the processor after a few failed CAS attempts
// within one retry loop. threshold is passed straight to
// retry.Backoff.Spin: after that many failed attempts each further one
// yields, and threshold <= 0 never yields. Every CAS loop in this
// package passes the Job's configured casSpinThreshold.
type backoffLoop struct {
	retry.Backoff
}

func (b *backoffLoop) spin(threshold int) {
	b.Spin(threshold)
}
