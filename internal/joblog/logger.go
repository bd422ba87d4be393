// Package joblog adapts the ambient arbor logger to job lifecycle events.
//
// It mirrors internal/jobs/types.JobLogger: a thin wrapper that stamps
// every record with the job's debug name and exposes a handful of
// structured helpers for the events the core state machine cares about
// (transitions, listener faults). It carries no database correlation id -
// the only "correlation" a Job has is its own name.
package joblog

import (
	"github.com/ternarybob/arbor"
)

// Logger wraps arbor.ILogger with job-name context.
type Logger struct {
	base arbor.ILogger
	name string
}

// New creates a Logger for the given job name. base may be nil, in which
// case every method is a no-op - the core never requires a logger.
func New(base arbor.ILogger, name string) *Logger {
	return &Logger{base: base, name: name}
}

func (l *Logger) enabled() bool {
	return l != nil && l.base != nil
}

// LogStateTransition records a state machine transition at debug level.
func (l *Logger) LogStateTransition(from, to string, cause error) {
	if !l.enabled() {
		return
	}
	ev := l.base.Debug().Str("job", l.name).Str("from", from).Str("to", to)
	if cause != nil {
		ev = ev.Str("cause", cause.Error())
	}
	ev.Msg("job state transition")
}

// LogStart records that a Job was started.
func (l *Logger) LogStart() {
	if !l.enabled() {
		return
	}
	l.base.Debug().Str("job", l.name).Msg("job started")
}

// LogCancel records that cancellation was initiated.
func (l *Logger) LogCancel(cause error) {
	if !l.enabled() {
		return
	}
	ev := l.base.Debug().Str("job", l.name)
	if cause != nil {
		ev = ev.Str("cause", cause.Error())
	}
	ev.Msg("job cancelling")
}

// LogListenerFault records that a completion listener panicked or returned
// control with an error. It never aborts notification of the remaining
// listeners - see errors.go's CompletionHandlerException.
func (l *Logger) LogListenerFault(err error) {
	if !l.enabled() {
		return
	}
	l.base.Error().Str("job", l.name).Str("error", err.Error()).Msg("completion handler failed")
}

// LogIllegalState records a programmer-error condition before it is
// returned to the caller.
func (l *Logger) LogIllegalState(msg string) {
	if !l.enabled() {
		return
	}
	l.base.Error().Str("job", l.name).Str("reason", msg).Msg("illegal job state transition")
}
