package job

import (
	"context"

	"github.com/ternarybob/job/internal/scheduler"
)

// Join suspends the caller until this Job reaches a terminal state. It
// never reports the joined Job's own failure as an error: it only
// waits. If ctx is cancelled first (including if it was already
// cancelled when Join was called), Join returns ctx's cancellation
// wrapped as a CancellationException and the joined Job is unaffected
// (spec.md section 4.4 / section 5).
//
// Join implicitly starts the Job if it is still lazy, matching
// spec.md's "join implicitly starts lazy children".
func (j *Job) Join(ctx context.Context) error {
	if err := ctxCancelled(ctx); err != nil {
		return err
	}
	if j.IsCompleted() {
		return nil
	}

	j.Start()

	cont := scheduler.NewContinuation()
	handle := j.InvokeOnCompletion(false, func(error) {
		cont.Resume(nil)
	})
	cont.OnDispose(func() { handle.Dispose() })

	select {
	case <-cont.Done():
		_, err := cont.Result()
		return err
	case <-ctx.Done():
		cont.ResumeWithException(&CancellationException{Message: "caller was cancelled", Cause: ctx.Err()})
		return &CancellationException{Message: "caller was cancelled", Cause: ctx.Err()}
	}
}

// Await is Join, except on terminal it surfaces this Job's own outcome:
// the carried value on normal completion, or the cancellation/failure
// cause as an error otherwise (spec.md section 4.4).
func (j *Job) Await(ctx context.Context) (any, error) {
	if err := ctxCancelled(ctx); err != nil {
		return nil, err
	}

	st := j.state.load()
	if st.isTerminal() {
		return j.outcomeOf(st)
	}

	j.Start()

	cont := scheduler.NewContinuation()
	handle := j.InvokeOnCompletion(false, func(error) {
		cont.Resume(nil)
	})
	cont.OnDispose(func() { handle.Dispose() })

	select {
	case <-cont.Done():
		if _, err := cont.Result(); err != nil {
			return nil, err
		}
		return j.outcomeOf(j.state.load())
	case <-ctx.Done():
		cancelErr := &CancellationException{Message: "caller was cancelled", Cause: ctx.Err()}
		cont.ResumeWithException(cancelErr)
		return nil, cancelErr
	}
}

func (j *Job) outcomeOf(st *stateBox) (any, error) {
	switch st.kind {
	case kindCancelled:
		return nil, asCancellationException(st.cause)
	case kindCompletedExceptionally:
		return nil, st.err
	case kindCompletedValue:
		return st.value, nil
	default:
		return nil, &IllegalStateException{Message: "await observed a non-terminal state"}
	}
}
