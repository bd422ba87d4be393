// Package jobconfig carries the small set of tunables that affect the
// ambient stack around JobCore without touching its semantics, loaded
// the way internal/services/config/service.go loads values: environment
// variables with hard-coded defaults, no required config file.
package jobconfig

import (
	"os"
	"strconv"
)

// Config holds tunables read once at process start.
type Config struct {
	// ListPreallocHint sizes the backing array a listener list's
	// snapshot() preallocates, used when a Job promotes from a single
	// listener to a list (job.newNodeList); it never changes
	// correctness, only amortized allocation count.
	ListPreallocHint int

	// CASSpinThreshold is how many failed CAS attempts a retry loop
	// tolerates before it yields via runtime.Gosched (internal/retry).
	CASSpinThreshold int
}

// Default returns the built-in tunables.
func Default() Config {
	return Config{
		ListPreallocHint: 4,
		CASSpinThreshold: 8,
	}
}

// FromEnv overlays environment variables onto Default().
func FromEnv() Config {
	cfg := Default()
	if v := os.Getenv("JOB_LIST_PREALLOC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ListPreallocHint = n
		}
	}
	if v := os.Getenv("JOB_CAS_SPIN_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CASSpinThreshold = n
		}
	}
	return cfg
}
