package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin_ReturnsOnceJobCompletes(t *testing.T) {
	j := New(WithActive())
	go func() {
		time.Sleep(10 * time.Millisecond)
		j.Complete(nil)
	}()

	err := j.Join(context.Background())
	assert.NoError(t, err)
}

func TestJoin_NeverReportsJobsOwnFailure(t *testing.T) {
	j := New(WithActive())
	go func() {
		time.Sleep(10 * time.Millisecond)
		j.CompleteExceptionally(errors.New("boom"))
	}()

	err := j.Join(context.Background())
	assert.NoError(t, err)
	assert.True(t, j.IsCompleted())
}

func TestJoin_StartsALazyJob(t *testing.T) {
	j := New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		j.Complete(nil)
	}()

	require.NoError(t, j.Join(context.Background()))
	assert.True(t, j.IsActive() || j.IsCompleted())
}

func TestJoin_CallerCancellationAbortsWaitWithoutAffectingJob(t *testing.T) {
	j := New(WithActive())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := j.Join(ctx)

	var ce *CancellationException
	assert.ErrorAs(t, err, &ce)
	assert.False(t, j.IsCompleted())
}

func TestJoin_CtxCancelledMidWaitAbortsWait(t *testing.T) {
	j := New(WithActive())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- j.Join(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	err := <-errCh
	var ce *CancellationException
	assert.ErrorAs(t, err, &ce)
}

func TestAwait_ReturnsCarriedValueOnNormalCompletion(t *testing.T) {
	j := New(WithActive())
	go func() {
		time.Sleep(10 * time.Millisecond)
		j.Complete(7)
	}()

	v, err := j.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestAwait_ReturnsFailureAsError(t *testing.T) {
	j := New(WithActive())
	failure := errors.New("step failed")
	go func() {
		time.Sleep(10 * time.Millisecond)
		j.CompleteExceptionally(failure)
	}()

	_, err := j.Await(context.Background())
	assert.Equal(t, failure, err)
}

func TestAwait_ReturnsCancellationExceptionWhenCancelled(t *testing.T) {
	j := New(WithActive())
	go func() {
		time.Sleep(10 * time.Millisecond)
		j.Cancel(nil)
		j.Complete(nil)
	}()

	_, err := j.Await(context.Background())
	var ce *CancellationException
	assert.ErrorAs(t, err, &ce)
}

func TestAwait_AlreadyTerminalReturnsImmediately(t *testing.T) {
	j := New(WithActive())
	require.NoError(t, j.Complete("fast"))

	v, err := j.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
}
