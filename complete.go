package job

import "fmt"

// Complete proposes v as this Job's normal terminal value. It waits for
// any attached child to quiesce first (spec.md section 4.4,
// makeCompleting) and returns an IllegalStateException if the Job is
// already terminal or already completing.
func (j *Job) Complete(v any) error {
	return j.makeCompleting(newCompletedValueState(v))
}

// CompleteExceptionally proposes err as this Job's terminal failure,
// subject to the same child-quiescence wait as Complete.
func (j *Job) CompleteExceptionally(err error) error {
	return j.makeCompleting(newCompletedExceptionallyState(err))
}

// makeCompleting implements spec.md section 4.4's completion protocol.
func (j *Job) makeCompleting(proposed *stateBox) error {
	var bo backoffLoop
	for {
		st := j.state.load()

		if st.isTerminal() {
			return &IllegalStateException{Message: fmt.Sprintf("job %q is already complete", j.name)}
		}
		if st.kind == kindFinishing && st.completing {
			return &IllegalStateException{Message: fmt.Sprintf("job %q is already completing", j.name)}
		}
		if st.kind == kindSingleListener && st.node.child != nil {
			// A lone child is held as the single-listener state; promote
			// it to a list so the child wait below can see it.
			list := newNodeList(true, j.cfg.listPreallocHint)
			list.unsyncedAppend(st.node)
			j.state.cas(st, newListState(list))
			bo.spin(j.cfg.casSpinThreshold)
			continue
		}

		list := st.listOrNil()
		var children []*listenerNode
		if list != nil {
			children = list.snapshotChildren()
		}

		if len(children) == 0 {
			final := proposed
			if st.kind == kindFinishing && st.hasCancelCause {
				final = j.coerceCancelling(st, proposed)
			}
			if j.state.cas(st, final) {
				j.notifyTerminal(final, st)
				return nil
			}
			bo.spin(j.cfg.casSpinThreshold)
			continue
		}

		var cancelCause error
		if st.kind == kindFinishing && st.hasCancelCause {
			cancelCause = st.cause
		}
		next := newFinishingState(list, cancelCause, true)
		if j.state.cas(st, next) {
			first := children[0]
			j.waitOnChild(first, proposed)
			return nil
		}
		bo.spin(j.cfg.casSpinThreshold)
	}
}

// waitOnChild installs a completion-phase listener on child.child that,
// once it fires, resumes the wait loop for the next attached child (or
// finalizes if there was none).
func (j *Job) waitOnChild(childNode *listenerNode, proposed *stateBox) {
	childNode.child.InvokeOnCompletion(false, func(error) {
		j.continueCompleting(childNode, proposed)
	})
}

// continueCompleting implements spec.md section 4.4's
// continueCompleting(lastChild, proposedUpdate).
func (j *Job) continueCompleting(lastChild *listenerNode, proposed *stateBox) {
	var bo backoffLoop
	for {
		st := j.state.load()
		if st.kind != kindFinishing {
			// Another path already finalized this Job (e.g. a racing
			// cancel with no children observed a different snapshot);
			// nothing left to do.
			return
		}

		next := st.list.nextChildAfter(lastChild)
		if next != nil {
			j.waitOnChild(next, proposed)
			return
		}

		final := proposed
		if st.hasCancelCause {
			final = j.coerceCancelling(st, proposed)
		}
		if j.state.cas(st, final) {
			j.notifyTerminal(final, st)
			return
		}
		bo.spin(j.cfg.casSpinThreshold)
	}
}

// coerceCancelling implements spec.md section 4.4's cause-coercion rule:
// a Finishing state with a cancellation cause always wins over a
// proposed terminal update. If the proposed update was itself a
// different exception, it is reported out of band rather than silently
// dropped.
func (j *Job) coerceCancelling(st *stateBox, proposed *stateBox) *stateBox {
	if proposed.kind == kindCompletedExceptionally && !sameCause(proposed.err, st.cause) {
		j.handleExceptionHook(fmt.Errorf("unexpected exception while cancellation in progress: %w", proposed.err))
	}
	return newCancelledState(st.cause)
}

// notifyTerminal runs the listener notification protocol of spec.md
// section 4.4: dispose the parent link, invoke every listener exactly
// once with the terminal cause, fire onCancellation if this is the first
// time the Job observes itself as no-longer-active, then
// afterCompletion.
func (j *Job) notifyTerminal(final *stateBox, prev *stateBox) {
	j.parentMu.Lock()
	parentHandle := j.parentHandle
	j.parentHandle = nil
	j.parentMu.Unlock()
	if parentHandle != nil {
		parentHandle.Dispose()
	}

	cause := final.terminalCause()
	var faults []error
	invoke := func(n *listenerNode) {
		defer func() {
			if r := recover(); r != nil {
				faults = append(faults, fmt.Errorf("panic in completion handler: %v", r))
			}
		}()
		n.invokeOnce(cause)
	}

	switch prev.kind {
	case kindSingleListener:
		invoke(prev.node)
	case kindList, kindFinishing:
		for _, n := range prev.list.snapshot() {
			invoke(n)
		}
	}

	if len(faults) > 0 {
		chErr := &CompletionHandlerException{Cause: faults[0]}
		for _, f := range faults[1:] {
			chErr.addSuppressed(f)
		}
		j.handleExceptionHook(chErr)
	}

	wasAlreadyCancelling := prev.kind == kindFinishing && prev.hasCancelCause
	if !wasAlreadyCancelling && j.onCancellationHook != nil {
		exceptionally := final.kind == kindCompletedExceptionally || final.kind == kindCancelled
		j.onCancellationHook(exceptionally)
	}

	j.logger.LogStateTransition(prev.completionModeName(), final.completionModeName(), cause)
	j.afterCompletionHook(final)
}
