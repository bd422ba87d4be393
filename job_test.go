package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ternarybob/job/internal/selectmux"
)

func TestNew_DefaultsToLazy(t *testing.T) {
	j := New()
	assert.Equal(t, StatusNew, j.Status())
	assert.False(t, j.IsActive())
	assert.False(t, j.IsCompleted())
}

func TestNew_WithActive(t *testing.T) {
	j := New(WithActive())
	assert.Equal(t, StatusActive, j.Status())
	assert.True(t, j.IsActive())
}

func TestNew_GeneratesNameWhenUnset(t *testing.T) {
	j := New()
	assert.NotEmpty(t, j.Name())
}

func TestNew_WithNameOverride(t *testing.T) {
	j := New(WithName("worker-1"))
	assert.Equal(t, "worker-1", j.Name())
}

func TestStart_FirstCallTransitionsAndFiresOnStart(t *testing.T) {
	fired := false
	j := New(WithOnStart(func() { fired = true }))

	ok := j.Start()

	assert.True(t, ok)
	assert.True(t, fired)
	assert.True(t, j.IsActive())
}

func TestStart_SecondCallIsNoop(t *testing.T) {
	j := New()
	require.True(t, j.Start())
	assert.False(t, j.Start())
}

func TestStart_AlreadyActiveIsNoop(t *testing.T) {
	j := New(WithActive())
	assert.False(t, j.Start())
}

func TestStart_AfterTerminalIsNoop(t *testing.T) {
	j := New(WithActive())
	require.NoError(t, j.Complete(42))
	assert.False(t, j.Start())
}

func TestCancel_LazyJobGoesStraightToCancelled(t *testing.T) {
	j := New()
	ok := j.Cancel(nil)

	assert.True(t, ok)
	assert.True(t, j.IsCancelled())
	assert.True(t, j.IsCompleted())
}

func TestCancel_ActiveJobEntersCancellingThenCancelled(t *testing.T) {
	j := New(WithActive())
	ok := j.Cancel(nil)

	require.True(t, ok)
	assert.Equal(t, StatusCancelling, j.Status())
	assert.True(t, j.IsCancelled())

	require.NoError(t, j.Complete(nil))
	assert.Equal(t, StatusCancelled, j.Status())
}

func TestCancel_TwiceOnlyFirstWins(t *testing.T) {
	j := New(WithActive())
	assert.True(t, j.Cancel(nil))
	assert.False(t, j.Cancel(nil))
}

func TestCancel_AfterTerminalIsNoop(t *testing.T) {
	j := New(WithActive())
	require.NoError(t, j.Complete(1))
	assert.False(t, j.Cancel(nil))
}

func TestCancel_NilCauseMaterializesCancellationException(t *testing.T) {
	j := New(WithActive())
	j.Cancel(nil)

	ce, err := j.GetCancellationException()
	require.NoError(t, err)
	assert.NotNil(t, ce)
}

func TestGetCancellationException_BeforeTerminalIsIllegalState(t *testing.T) {
	j := New(WithActive())
	_, err := j.GetCancellationException()

	var ise *IllegalStateException
	assert.ErrorAs(t, err, &ise)
}

func TestInvokeOnCompletion_FiresOnTerminal(t *testing.T) {
	j := New(WithActive())
	var gotCause error
	fired := make(chan struct{})
	j.InvokeOnCompletion(false, func(cause error) {
		gotCause = cause
		close(fired)
	})

	require.NoError(t, j.Complete("value"))
	<-fired
	assert.NoError(t, gotCause)
}

func TestInvokeOnCompletion_AlreadyTerminalFiresSynchronously(t *testing.T) {
	j := New(WithActive())
	require.NoError(t, j.Complete(nil))

	fired := false
	handle := j.InvokeOnCompletion(false, func(error) { fired = true })

	assert.True(t, fired)
	assert.IsType(t, noopHandle{}, handle)
}

func TestInvokeOnCompletion_DisposeBeforeTerminalPreventsFiring(t *testing.T) {
	j := New(WithActive())
	fired := false
	handle := j.InvokeOnCompletion(false, func(error) { fired = true })
	handle.Dispose()

	require.NoError(t, j.Complete(nil))
	assert.False(t, fired)
}

func TestInvokeOnCompletion_MultipleListenersAllFire(t *testing.T) {
	j := New(WithActive())
	count := 0
	for i := 0; i < 5; i++ {
		j.InvokeOnCompletion(false, func(error) { count++ })
	}

	require.NoError(t, j.Complete(nil))
	assert.Equal(t, 5, count)
}

func TestAttachChild_ParentCancelPropagatesToChild(t *testing.T) {
	parent := New(WithActive())
	child := New(WithActive(), WithParent(parent))

	parent.Cancel(nil)

	assert.True(t, child.IsCancelled())
}

func TestAttachChild_ParentWaitsForChildBeforeCompleting(t *testing.T) {
	parent := New(WithActive())
	child := New(WithActive(), WithParent(parent))

	done := make(chan error, 1)
	go func() { done <- parent.Complete(nil) }()

	assert.False(t, parent.IsCompleted())

	require.NoError(t, child.Complete(nil))
	require.NoError(t, <-done)
	assert.True(t, parent.IsCompleted())
}

func TestCancelChildren_CancelsEveryAttachedChild(t *testing.T) {
	parent := New(WithActive())
	a := New(WithActive(), WithParent(parent))
	b := New(WithActive(), WithParent(parent))

	parent.CancelChildren(nil)

	assert.True(t, a.IsCancelled())
	assert.True(t, b.IsCancelled())
	assert.False(t, parent.IsCompleted())
}

func TestOnCancellationHook_FiresOnceOnTerminalTransition(t *testing.T) {
	calls := 0
	var exceptionally bool
	j := New(WithActive(), WithOnCancellation(func(e bool) {
		calls++
		exceptionally = e
	}))

	require.NoError(t, j.CompleteExceptionally(assertTestErr{}))

	assert.Equal(t, 1, calls)
	assert.True(t, exceptionally)
}

func TestHandleExceptionHook_ReceivesCompletionHandlerFault(t *testing.T) {
	var caught error
	j := New(WithActive(), WithHandleException(func(err error) { caught = err }))
	j.InvokeOnCompletion(false, func(error) { panic("boom") })

	require.NoError(t, j.Complete(nil))

	var chErr *CompletionHandlerException
	assert.ErrorAs(t, caught, &chErr)
}

func TestWithDispatchRateLimit_StillDeliversOnJoinDispatch(t *testing.T) {
	j := New(WithActive(), WithDispatchRateLimit(rate.Limit(1000), 10))

	sel := selectmux.New()
	ran := make(chan struct{})
	j.OnJoin(sel, func() { close(ran) })
	require.NoError(t, j.Complete(nil))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("rate-limited dispatch never ran")
	}
}

type assertTestErr struct{}

func (assertTestErr) Error() string { return "boom" }
