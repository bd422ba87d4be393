// Package job implements a cancellable, composable unit of asynchronous
// work: a lock-free state machine organized into parent/child
// hierarchies, with completion listeners and suspendable join/await
// operations.
//
// A Job is created lazy (New) or active (New with WithActive), started
// on demand, cancelled with a cause, and transitions monotonically
// toward one of three terminal states: cancelled, completed
// exceptionally, or completed with a value. Parents wait for every
// attached child to reach a terminal state before they themselves can
// complete; cancelling a parent propagates cancellation to every
// currently attached child.
//
// The scheduler, the intrusive listener list, and the select
// multiplexing subsystem are external collaborators - see the internal/
// packages of this module for one concrete (swappable) realization of
// each.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/job/internal/idgen"
	"github.com/ternarybob/job/internal/joblog"
	"github.com/ternarybob/job/internal/scheduler"
)

// Status is the coarse, externally observable lifecycle stage of a Job.
type Status int

const (
	StatusNew Status = iota
	StatusActive
	StatusCancelling
	StatusCompleting
	StatusCancelled
	StatusCompletedExceptionally
	StatusCompletedValue
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusActive:
		return "active"
	case StatusCancelling:
		return "cancelling"
	case StatusCompleting:
		return "completing"
	case StatusCancelled:
		return "cancelled"
	case StatusCompletedExceptionally:
		return "completed_exceptionally"
	case StatusCompletedValue:
		return "completed_value"
	default:
		return "unknown"
	}
}

// DisposableHandle removes a previously installed listener or child link.
// Dispose is idempotent.
type DisposableHandle interface {
	Dispose()
}

type noopHandle struct{}

func (noopHandle) Dispose() {}

// Job is the state machine described by this package's doc comment.
type Job struct {
	state stateCell

	name               string
	hasCancellingState bool

	parentMu     sync.Mutex
	parentHandle DisposableHandle

	scheduler scheduler.Scheduler
	logger    *joblog.Logger
	cfg       options

	onStartHook         func()
	onCancellationHook  func(exceptionally bool)
	afterCompletionHook func(st *stateBox)
	handleExceptionHook func(err error)
}

// New creates a Job according to opts. By default the Job is lazy
// (StatusNew) and has a distinct cancelling phase.
func New(opts ...Option) *Job {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}

	j := &Job{
		hasCancellingState: !o.simple,
		scheduler:          o.scheduler,
		cfg:                o,
	}
	if j.scheduler == nil {
		var schedOpts []scheduler.GoroutineOption
		if o.dispatchRateLimiter != nil {
			schedOpts = append(schedOpts, scheduler.WithRateLimit(o.dispatchRateLimiter.limit, o.dispatchRateLimiter.burst))
		}
		j.scheduler = scheduler.NewGoroutine(o.arborLogger, schedOpts...)
	}

	if o.name != "" {
		j.name = o.name
	} else {
		j.name = idgen.New()
	}
	j.logger = joblog.New(o.arborLogger, j.name)

	j.onStartHook = o.onStart
	j.onCancellationHook = o.onCancellation
	j.afterCompletionHook = func(*stateBox) {}
	j.handleExceptionHook = o.handleException
	if j.handleExceptionHook == nil {
		j.handleExceptionHook = func(err error) { j.logger.LogListenerFault(err) }
	}

	j.state.store(newEmptyState(o.active))

	if o.parent != nil {
		handle := o.parent.attachChildInternal(j)
		j.parentMu.Lock()
		j.parentHandle = handle
		j.parentMu.Unlock()
	}

	return j
}

// NewSimple creates a Job with no distinct cancelling phase: cancel is a
// direct CAS to Cancelled from any incomplete state. This matches the
// "bare factory product that has no body to run down" case spec.md
// section 4.4 carves out for cancel().
func NewSimple(opts ...Option) *Job {
	return New(append(opts, withSimple())...)
}

// Name returns the Job's debug name (the nameString() hook's default
// implementation).
func (j *Job) Name() string { return j.name }

func (j *Job) nameString() string { return j.name }

// ---- status accessors ----

// IsActive reports whether the Job has been started and is neither
// terminal nor in a state headed irrevocably to cancellation.
func (j *Job) IsActive() bool {
	st := j.state.load()
	switch st.kind {
	case kindEmpty:
		return st.active
	case kindSingleListener:
		return true
	case kindList:
		return st.list.active.Load()
	case kindFinishing:
		return !st.hasCancelCause
	default:
		return false
	}
}

// IsCompleted reports whether the Job has reached a terminal state.
func (j *Job) IsCompleted() bool {
	return j.state.load().isTerminal()
}

// IsCancelled reports whether the Job is cancelled or is in the process
// of being cancelled.
func (j *Job) IsCancelled() bool {
	st := j.state.load()
	switch st.kind {
	case kindCancelled:
		return true
	case kindFinishing:
		return st.hasCancelCause
	default:
		return false
	}
}

// Status returns the coarse lifecycle stage implied by the current state.
func (j *Job) Status() Status {
	st := j.state.load()
	switch st.kind {
	case kindEmpty:
		if st.active {
			return StatusActive
		}
		return StatusNew
	case kindSingleListener:
		return StatusActive
	case kindList:
		if st.list.active.Load() {
			return StatusActive
		}
		return StatusNew
	case kindFinishing:
		if st.hasCancelCause {
			return StatusCancelling
		}
		return StatusCompleting
	case kindCancelled:
		return StatusCancelled
	case kindCompletedExceptionally:
		return StatusCompletedExceptionally
	case kindCompletedValue:
		return StatusCompletedValue
	default:
		return StatusNew
	}
}

// ---- start ----

// Start transitions a lazy Job to active. Returns true iff this call
// effected the transition.
func (j *Job) Start() bool {
	var bo backoffLoop
	for {
		st := j.state.load()
		switch st.kind {
		case kindEmpty:
			if st.active {
				return false
			}
			next := newEmptyState(true)
			if j.state.cas(st, next) {
				j.logger.LogStart()
				if j.onStartHook != nil {
					j.onStartHook()
				}
				return true
			}
		case kindList:
			if st.list.active.CompareAndSwap(false, true) {
				j.logger.LogStart()
				if j.onStartHook != nil {
					j.onStartHook()
				}
				return true
			}
			return false
		default:
			return false
		}
		bo.spin(j.cfg.casSpinThreshold)
	}
}

// ---- cancel ----

// Cancel requests cancellation with the given cause (nil materializes a
// generated cancellation exception). Returns true iff this call effected
// the transition into cancelling (or, for simple Jobs, cancelled).
func (j *Job) Cancel(cause error) bool {
	cause = materializeCause(cause)

	if !j.hasCancellingState {
		return j.cancelSimple(cause)
	}
	return j.cancelWithPhase(cause)
}

func (j *Job) cancelSimple(cause error) bool {
	var bo backoffLoop
	for {
		st := j.state.load()
		if st.isTerminal() {
			return false
		}
		next := newCancelledState(cause)
		if j.state.cas(st, next) {
			j.logger.LogCancel(cause)
			j.notifyTerminal(next, st)
			return true
		}
		bo.spin(j.cfg.casSpinThreshold)
	}
}

func (j *Job) cancelWithPhase(cause error) bool {
	var bo backoffLoop
	for {
		st := j.state.load()
		switch st.kind {
		case kindEmpty:
			if !st.active {
				next := newCancelledState(cause)
				if j.state.cas(st, next) {
					j.logger.LogCancel(cause)
					j.notifyTerminal(next, st)
					return true
				}
				bo.spin(j.cfg.casSpinThreshold)
				continue
			}
			// Promote to a list first so concurrent installs still see
			// somewhere to attach, then retry onto the list branch.
			list := newNodeList(true, j.cfg.listPreallocHint)
			next := newListState(list)
			j.state.cas(st, next)
			bo.spin(j.cfg.casSpinThreshold)

		case kindSingleListener:
			list := newNodeList(true, j.cfg.listPreallocHint)
			list.unsyncedAppend(st.node)
			next := newListState(list)
			j.state.cas(st, next)
			bo.spin(j.cfg.casSpinThreshold)

		case kindList:
			next := newFinishingState(st.list, cause, false)
			if j.state.cas(st, next) {
				j.logger.LogCancel(cause)
				j.notifyCancelling(st.list, cause)
				if j.onCancellationHook != nil {
					j.onCancellationHook(false)
				}
				return true
			}
			bo.spin(j.cfg.casSpinThreshold)

		case kindFinishing:
			if st.hasCancelCause {
				return false
			}
			next := newFinishingState(st.list, cause, st.completing)
			if j.state.cas(st, next) {
				j.logger.LogCancel(cause)
				j.notifyCancelling(st.list, cause)
				if j.onCancellationHook != nil {
					j.onCancellationHook(false)
				}
				return true
			}
			bo.spin(j.cfg.casSpinThreshold)

		default:
			return false
		}
	}
}

func (j *Job) notifyCancelling(list *nodeList, cause error) {
	for _, n := range list.snapshotCancelling() {
		n.invokeOnce(cause)
	}
}

// CancelChildren calls Cancel(cause) on every currently attached child.
// It does not change this Job's own state.
func (j *Job) CancelChildren(cause error) {
	cause = materializeCause(cause)
	st := j.state.load()
	if st.kind == kindSingleListener {
		if st.node.child != nil && !st.node.removed.Load() {
			st.node.child.Cancel(cause)
		}
		return
	}
	list := st.listOrNil()
	if list == nil {
		return
	}
	for _, n := range list.snapshotChildren() {
		if n.child != nil {
			n.child.Cancel(cause)
		}
	}
}

// ---- listener installation ----

// InvokeOnCompletion installs handler to be invoked when the Job enters
// Cancelling (if onCancelling is true) or reaches a terminal state. If
// the Job is already terminal, handler runs synchronously before this
// call returns and the returned handle is a no-op.
func (j *Job) InvokeOnCompletion(onCancelling bool, handler func(cause error)) DisposableHandle {
	node := newListenerNode(j, onCancelling, handler)
	return j.installListener(node)
}

func (j *Job) installListener(node *listenerNode) DisposableHandle {
	var bo backoffLoop
	for {
		st := j.state.load()
		switch st.kind {
		case kindCancelled:
			node.invokeOnce(st.cause)
			return noopHandle{}
		case kindCompletedExceptionally:
			node.invokeOnce(st.err)
			return noopHandle{}
		case kindCompletedValue:
			node.invokeOnce(nil)
			return noopHandle{}

		case kindEmpty:
			if st.active {
				next := newSingleListenerState(node)
				if j.state.cas(st, next) {
					return node
				}
			} else {
				list := newNodeList(false, j.cfg.listPreallocHint)
				next := newListState(list)
				j.state.cas(st, next)
			}

		case kindSingleListener:
			list := newNodeList(true, j.cfg.listPreallocHint)
			list.unsyncedAppend(st.node)
			next := newListState(list)
			j.state.cas(st, next)

		case kindList:
			if st.list.appendIf(&j.state, st, node) {
				return node
			}

		case kindFinishing:
			if st.hasCancelCause && node.onCancelling {
				node.invokeOnce(st.cause)
				return noopHandle{}
			}
			if st.list.appendIf(&j.state, st, node) {
				return node
			}

		default:
			return noopHandle{}
		}
		bo.spin(j.cfg.casSpinThreshold)
	}
}

// attachChildInternal installs a cancellation-phase listener that
// propagates this Job's cancellation to child, and records child on the
// node so CancelChildren and the completion wait loop can reach it.
func (j *Job) attachChildInternal(child *Job) DisposableHandle {
	node := newListenerNode(j, true, func(cause error) {
		if ce, err := j.GetCancellationException(); err == nil {
			child.Cancel(ce)
			return
		}
		child.Cancel(cause)
	})
	node.child = child
	return j.installListener(node)
}

// AttachChild registers child with this Job as its parent: cancelling
// this Job cancels child, and this Job will not reach a terminal state
// until child does. The child is expected to Dispose the returned handle
// from its own terminal transition (New wires this automatically when
// WithParent is used).
func (j *Job) AttachChild(child *Job) DisposableHandle {
	return j.attachChildInternal(child)
}

// ---- cancellation exception ----

// GetCancellationException returns a cancellation exception describing
// why the Job is cancelled or has completed. It is an illegal-state
// fault to call this before the Job is at least cancelling.
func (j *Job) GetCancellationException() (*CancellationException, error) {
	st := j.state.load()
	switch st.kind {
	case kindCancelled:
		return asCancellationException(st.cause), nil
	case kindFinishing:
		if st.hasCancelCause {
			return asCancellationException(st.cause), nil
		}
	case kindCompletedExceptionally:
		return &CancellationException{Message: "Job has failed", Cause: st.err}, nil
	case kindCompletedValue:
		return &CancellationException{Message: "Job has completed normally"}, nil
	}
	j.logger.LogIllegalState("GetCancellationException called on an incomplete job")
	return nil, &IllegalStateException{Message: fmt.Sprintf("job %q has not completed", j.name)}
}

func asCancellationException(cause error) *CancellationException {
	var ce *CancellationException
	if errors.As(cause, &ce) {
		return ce
	}
	return &CancellationException{Message: "Job was cancelled", Cause: cause}
}

// ---- context helper ----

// ctxCancelled reports whether ctx has already been cancelled, mapped to
// the "caller's own cancellation aborts the wait" rule join/await apply.
func ctxCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return &CancellationException{Message: "caller was cancelled", Cause: ctx.Err()}
	default:
		return nil
	}
}
