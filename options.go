package job

import (
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/job/internal/jobconfig"
	"github.com/ternarybob/job/internal/scheduler"
)

type options struct {
	name        string
	active      bool
	simple      bool
	parent      *Job
	arborLogger arbor.ILogger
	scheduler   scheduler.Scheduler

	dispatchRateLimiter *rateLimit

	onStart         func()
	onCancellation  func(exceptionally bool)
	handleException func(err error)

	casSpinThreshold int
	listPreallocHint int
}

type rateLimit struct {
	limit rate.Limit
	burst int
}

func defaultOptions() options {
	cfg := jobconfig.FromEnv()
	return options{
		casSpinThreshold: cfg.CASSpinThreshold,
		listPreallocHint: cfg.ListPreallocHint,
	}
}

// Option configures a Job at construction time.
type Option func(*options)

// WithName sets the Job's debug name (spec.md's nameString() hook).
// Without it a short generated id is used.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithActive creates the Job already started (StatusActive) instead of
// the default lazy StatusNew.
func WithActive() Option {
	return func(o *options) { o.active = true }
}

// WithParent attaches the new Job as a child of parent: parent will not
// complete until this Job does, and cancelling parent cancels this Job.
func WithParent(parent *Job) Option {
	return func(o *options) { o.parent = parent }
}

// WithLogger installs an arbor logger for lifecycle events. Optional -
// the core never requires a logger.
func WithLogger(l arbor.ILogger) Option {
	return func(o *options) { o.arborLogger = l }
}

// WithScheduler overrides the default goroutine-based Scheduler that
// runs OnJoin/OnAwait dispatch. Join and Await do not use it: they wait
// on a scheduler.Continuation directly.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithDispatchRateLimit caps how fast the default Scheduler starts the
// resumption work OnJoin/OnAwait dispatch once a select clause wins
// (InvokeOnCompletion's own listeners run synchronously off the
// terminal transition and are unaffected). Has no effect if
// WithScheduler supplies a custom Scheduler - the limit only
// configures this package's own internal/scheduler.Goroutine.
func WithDispatchRateLimit(limit rate.Limit, burst int) Option {
	return func(o *options) { o.dispatchRateLimiter = &rateLimit{limit: limit, burst: burst} }
}

// WithOnStart installs the onStart() extension hook, invoked exactly
// once when Start() first succeeds.
func WithOnStart(fn func()) Option {
	return func(o *options) { o.onStart = fn }
}

// WithOnCancellation installs the onCancellation(exceptionally) hook.
func WithOnCancellation(fn func(exceptionally bool)) Option {
	return func(o *options) { o.onCancellation = fn }
}

// WithHandleException installs the handleException hook, invoked for
// completion-handler faults and unexpected-during-cancelling faults that
// the Job does not otherwise re-raise synchronously.
func WithHandleException(fn func(err error)) Option {
	return func(o *options) { o.handleException = fn }
}

func withSimple() Option {
	return func(o *options) { o.simple = true }
}
