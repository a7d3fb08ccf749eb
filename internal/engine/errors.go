// Package engine provides the facade implementing the external logical
// operations over the lower-level components.
package engine

import "interpreter-engine/internal/models"

// Re-exported sentinels so transport layers can match on the engine's error
// taxonomy without reaching into models.
var (
	ErrInvalidInput     = models.ErrInvalidInput
	ErrPolicyLocked     = models.ErrPolicyLocked
	ErrConcurrentUpdate = models.ErrConcurrentUpdate
	ErrNoCandidates     = models.ErrNoCandidates
	ErrDRAllBlocked     = models.ErrDRAllBlocked
	ErrSystemDegraded   = models.ErrSystemDegraded
)
