package job

import "github.com/ternarybob/job/internal/selectmux"

// OnJoin implements spec.md section 4.6's onJoin clause: if this Job is
// already terminal, it tries to claim sel immediately and, if it wins,
// runs block on the calling goroutine ("undispatched mode"). Otherwise
// it installs a completion listener that tries to claim sel when this
// Job goes terminal and, if that listener wins the claim, dispatches
// block via this Job's Scheduler.
func (j *Job) OnJoin(sel *selectmux.Select, block func()) {
	st := j.state.load()
	if st.isTerminal() {
		if sel.TryClaim() {
			block()
		}
		return
	}

	j.InvokeOnCompletion(false, func(error) {
		if sel.TryClaim() {
			j.scheduler.Dispatch(block)
		}
	})
}

// OnAwait implements spec.md section 4.6's onAwait clause: identical to
// OnJoin, except the block it runs/dispatches is handed this Job's
// outcome (value or error) instead of running unconditionally.
func (j *Job) OnAwait(sel *selectmux.Select, block func(value any, err error)) {
	st := j.state.load()
	if st.isTerminal() {
		if sel.TryClaim() {
			v, err := j.outcomeOf(st)
			block(v, err)
		}
		return
	}

	j.InvokeOnCompletion(false, func(error) {
		if sel.TryClaim() {
			v, err := j.outcomeOf(j.state.load())
			j.scheduler.Dispatch(func() { block(v, err) })
		}
	})
}
