package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestInline_RunsSynchronously(t *testing.T) {
	ran := false
	Inline{}.Dispatch(func() { ran = true })
	assert.True(t, ran)
}

func TestGoroutine_DispatchRunsEventually(t *testing.T) {
	s := NewGoroutine(nil)
	done := make(chan struct{})
	s.Dispatch(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatched work never ran")
	}
}

func TestGoroutine_RecoversFromPanic(t *testing.T) {
	s := NewGoroutine(nil)
	done := make(chan struct{})
	s.Dispatch(func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking dispatch should still mark done before recovery")
	}
	s.Wait()
}

func TestGoroutine_WaitBlocksUntilAllDispatchedWorkReturns(t *testing.T) {
	s := NewGoroutine(nil)
	var completed int64
	for i := 0; i < 20; i++ {
		s.Dispatch(func() { atomic.AddInt64(&completed, 1) })
	}
	s.Wait()

	assert.Equal(t, int64(20), atomic.LoadInt64(&completed))
	assert.Equal(t, 0, s.InFlight())
}

func TestGoroutine_WithRateLimitStillRunsEveryDispatch(t *testing.T) {
	s := NewGoroutine(nil, WithRateLimit(rate.Limit(1000), 10))

	var completed int64
	for i := 0; i < 5; i++ {
		s.Dispatch(func() { atomic.AddInt64(&completed, 1) })
	}
	s.Wait()

	assert.Equal(t, int64(5), atomic.LoadInt64(&completed))
}

func TestGoroutine_InFlightTracksRunningWork(t *testing.T) {
	s := NewGoroutine(nil)
	var wg sync.WaitGroup
	wg.Add(1)
	release := make(chan struct{})
	s.Dispatch(func() {
		wg.Done()
		<-release
	})

	wg.Wait()
	assert.Equal(t, 1, s.InFlight())
	close(release)
	s.Wait()
	assert.Equal(t, 0, s.InFlight())
}
