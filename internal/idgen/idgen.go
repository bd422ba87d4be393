// Package idgen generates debug identifiers for Jobs.
package idgen

import "github.com/google/uuid"

// New returns a short debug id used as the default job name when the
// caller does not supply one via job.WithName.
func New() string {
	return uuid.NewString()[:8]
}
