// Package scheduler is the ambient cooperative dispatcher boundary that
// spec.md section 4.5 and the OUT OF SCOPE list in section 1 call out:
// JobCore never blocks a thread itself, it hands resumption work to
// something that can run it elsewhere. This is a minimal, swappable
// realization of that contract - not a fair or preemptive scheduler
// (spec.md's non-goals), just enough to drive join/await end to end.
//
// Grounded on the worker-pool shape of internal/jobs/worker/job_processor.go
// (ctx/cancel + sync.WaitGroup tracking spawned goroutines) and the
// panic-safe goroutine wrapper internal/common/goroutine.go's SafeGo.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Scheduler dispatches a unit of resumption work. Implementations may run
// fn on a new goroutine, a bounded pool, or (in tests) synchronously.
type Scheduler interface {
	Dispatch(fn func())
}

// Inline runs fn synchronously on the calling goroutine. Useful for tests
// that want deterministic ordering, and for onJoin/onAwait's "undispatched"
// fast path (spec.md section 4.6).
type Inline struct{}

func (Inline) Dispatch(fn func()) { fn() }

// Goroutine dispatches each unit of work onto its own goroutine, with
// panic recovery so a misbehaving completion handler can never take down
// the process - the same guarantee internal/common.SafeGo gives
// background tasks elsewhere in the codebase.
type Goroutine struct {
	logger  arbor.ILogger
	limiter *rate.Limiter

	mu      sync.Mutex
	wg      sync.WaitGroup
	running int
}

// GoroutineOption configures a Goroutine scheduler at construction time.
type GoroutineOption func(*Goroutine)

// WithRateLimit caps how fast dispatched work starts running, the same
// token-bucket shape used for outbound API clients in
// internal/services/navexa/client.go and internal/eodhd/client.go. It
// throttles dispatch, never the core's own CAS retry loops - applying a
// rate limit inside the wait-free core would violate its progress
// guarantee.
func WithRateLimit(r rate.Limit, burst int) GoroutineOption {
	return func(g *Goroutine) { g.limiter = rate.NewLimiter(r, burst) }
}

// NewGoroutine builds the default Scheduler. logger may be nil.
func NewGoroutine(logger arbor.ILogger, opts ...GoroutineOption) *Goroutine {
	g := &Goroutine{logger: logger}
	for _, apply := range opts {
		apply(g)
	}
	return g
}

func (s *Goroutine) Dispatch(fn func()) {
	s.mu.Lock()
	s.running++
	s.mu.Unlock()
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.running--
			s.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				if s.logger != nil {
					s.logger.Error().
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(buf[:n])).
						Msg("recovered from panic in scheduled continuation")
				}
			}
		}()
		if s.limiter != nil {
			s.limiter.Wait(context.Background())
		}
		fn()
	}()
}

// Wait blocks until every dispatched unit of work has returned. Intended
// for tests and graceful shutdown; never called from JobCore itself.
func (s *Goroutine) Wait() {
	s.wg.Wait()
}

// InFlight reports how many dispatched units of work have not yet returned.
func (s *Goroutine) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
