package engine

import "errors"

// ErrScopeViolation is returned when an operation arrives with no owner
// scope. Scope checks are fatal, never silently widened.
var ErrScopeViolation = errors.New("engine: scope violation")
