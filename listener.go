package job

import "sync/atomic"

var listenerSeq atomic.Uint64

// listenerNode is both the list element (spec.md section 4.2: "a node
// may be used as both state wrapper and list element") and, while a Job
// holds exactly one listener, the SingleListener state itself.
type listenerNode struct {
	owner        *Job
	onCancelling bool
	handler      func(cause error)

	// child is non-nil when this node represents an attached child
	// (spec.md's Child = "a specific kind of cancellation-phase listener
	// on the parent").
	child *Job

	seq uint64

	fired   atomic.Bool
	removed atomic.Bool

	list       *nodeList
	prev, next *listenerNode
}

func newListenerNode(owner *Job, onCancelling bool, handler func(cause error)) *listenerNode {
	return &listenerNode{
		owner:        owner,
		onCancelling: onCancelling,
		handler:      handler,
		seq:          listenerSeq.Add(1),
	}
}

// invokeOnce guarantees at-most-one invocation across however many times
// a cancellation-phase node might otherwise be notified (spec.md section
// 4.3).
func (n *listenerNode) invokeOnce(cause error) {
	if n.removed.Load() {
		return
	}
	if n.fired.CompareAndSwap(false, true) {
		n.handler(cause)
	}
}

// Dispose removes this node from whatever list it is linked into.
// Idempotent. Implements DisposableHandle so InvokeOnCompletion and
// AttachChild can return listenerNode directly.
func (n *listenerNode) Dispose() {
	if n.list != nil {
		n.list.remove(n)
	} else {
		n.removed.Store(true)
	}
}
