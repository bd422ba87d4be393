package job

import (
	"sync"
	"sync/atomic"
)

// nodeList is the intrusive listener list spec.md section 4.2 treats as
// an external collaborator, specified only by the contract it must
// satisfy: conditional append, idempotent removal under concurrent
// traversal, and typed iteration. A mutex-guarded doubly-linked list
// satisfies that contract directly - JobCore's own transitions (the part
// of this system that must be genuinely lock-free per spec.md section 5)
// never hold this lock while doing their own CAS work, so contention
// here is always a short, bounded critical section.
//
// The list also carries its own active flag so start() can flip New to
// Active without having to CAS the outer stateBox pointer (spec.md
// section 4.4: "if ListNew, atomically flip the list's active flag").
type nodeList struct {
	active atomic.Bool

	// preallocHint sizes the backing array snapshot() allocates for its
	// returned slice, so a Job with many listeners doesn't grow that
	// slice by repeated doubling on every terminal transition. It never
	// affects correctness - only amortized allocation count.
	preallocHint int

	mu   sync.Mutex
	head *listenerNode
	tail *listenerNode
}

func newNodeList(active bool, preallocHint int) *nodeList {
	l := &nodeList{preallocHint: preallocHint}
	l.active.Store(active)
	return l
}

// unsyncedAppend links n without taking the lock. Only safe while the
// list is not yet reachable from the shared stateCell (i.e. during the
// Single -> List promotion, before the CAS that publishes it).
func (l *nodeList) unsyncedAppend(n *listenerNode) {
	n.list = l
	if l.tail == nil {
		l.head, l.tail = n, n
		return
	}
	n.prev = l.tail
	l.tail.next = n
	l.tail = n
}

// appendIf links n at the tail iff the owning stateCell still holds
// expect - the "append-if-condition" predicate from spec.md section 4.2.
// This is what lets a terminal transition (a CAS away from expect) race
// safely against a concurrent listener install: the check and the link
// happen under the list lock, so a node whose append succeeds is linked
// before the terminal transition's snapshot is taken, and an append that
// starts after the CAS fails and retries.
func (l *nodeList) appendIf(cell *stateCell, expect *stateBox, n *listenerNode) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cell.load() != expect {
		return false
	}
	n.list = l
	if l.tail == nil {
		l.head, l.tail = n, n
	} else {
		n.prev = l.tail
		l.tail.next = n
		l.tail = n
	}
	return true
}

// remove unlinks n. Idempotent and safe under concurrent traversal.
func (l *nodeList) remove(n *listenerNode) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n.removed.Load() {
		return
	}
	n.removed.Store(true)

	if n.prev != nil {
		n.prev.next = n.next
	} else if l.head == n {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if l.tail == n {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

// snapshot returns every non-removed node in insertion order. Taken
// under the lock but the nodes are invoked outside it, since a handler
// may call dispose (which re-takes this lock) or install further
// listeners.
func (l *nodeList) snapshot() []*listenerNode {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*listenerNode, 0, l.preallocHint)
	for n := l.head; n != nil; n = n.next {
		if !n.removed.Load() {
			out = append(out, n)
		}
	}
	return out
}

// snapshotCancelling returns only the cancellation-phase nodes.
func (l *nodeList) snapshotCancelling() []*listenerNode {
	all := l.snapshot()
	out := all[:0:0]
	for _, n := range all {
		if n.onCancelling {
			out = append(out, n)
		}
	}
	return out
}

// snapshotChildren returns only the nodes that represent attached
// children, in insertion (= attachment) order.
func (l *nodeList) snapshotChildren() []*listenerNode {
	all := l.snapshot()
	out := all[:0:0]
	for _, n := range all {
		if n.child != nil {
			out = append(out, n)
		}
	}
	return out
}

// firstChild returns the first still-attached child node, or nil.
func (l *nodeList) firstChild() *listenerNode {
	children := l.snapshotChildren()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// nextChildAfter returns the child attached immediately after prev, or
// nil if prev was the last. Tolerant of prev having since been removed:
// it walks the live child snapshot and returns the first child whose
// attachment order is strictly after prev's (tracked via seq), which is
// the Go stand-in for spec.md section 4.4's "restart backward to the
// nearest non-removed predecessor, then walk forward".
func (l *nodeList) nextChildAfter(prev *listenerNode) *listenerNode {
	children := l.snapshotChildren()
	for i, n := range children {
		if n == prev {
			if i+1 < len(children) {
				return children[i+1]
			}
			return nil
		}
	}
	// prev is no longer in the list (already removed): every remaining
	// child attached after it by definition has a larger seq number.
	for _, n := range children {
		if n.seq > prev.seq {
			return n
		}
	}
	return nil
}
