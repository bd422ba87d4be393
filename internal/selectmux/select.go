// Package selectmux is a minimal realization of the "select" multiplexing
// subsystem spec.md section 1 keeps out of JobCore's scope, exposed only
// through the two registration hooks in section 4.6 (onJoin/onAwait).
//
// Grounded on the fan-out subscription shape of
// orchestrator.ParentJobOrchestrator.SubscribeToChildStatusChanges:
// register once, fire on the first relevant event, generalized from
// "subscribe to job status" to "first of N clauses wins", using the same
// single-winner-claims-the-result idea golang.org/x/sync/errgroup uses
// for its first-error-wins semantics (cue-lang-cue/cmd/cue/cmd/custom.go
// uses errgroup.WithContext the same way: first done wins, rest are moot).
package selectmux

import "sync/atomic"

// Select is a single race among clauses registered against possibly many
// Jobs. Exactly one clause may claim it; every later or concurrent
// attempt observes the claim already taken.
type Select struct {
	claimed atomic.Bool
}

// New creates an unclaimed Select.
func New() *Select {
	return &Select{}
}

// TryClaim attempts to win the race. Returns true exactly once across all
// callers.
func (s *Select) TryClaim() bool {
	return s.claimed.CompareAndSwap(false, true)
}

// Claimed reports whether some clause has already won.
func (s *Select) Claimed() bool {
	return s.claimed.Load()
}
