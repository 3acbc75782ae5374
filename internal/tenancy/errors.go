// Package tenancy implements per-request tenant context, row-level query
// filtering, policy-based access control and the ingress isolation
// middleware that every multi-tenant request passes through.
package tenancy

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("tenancy: permission denied")
	ErrInvalidContext   = errors.New("tenancy: invalid context")
	ErrContextMissing   = errors.New("tenancy: context missing")
	ErrConfig           = errors.New("tenancy: invalid configuration")
)

// PermissionDeniedError reports a row-level or policy access rejection.
type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string { return "permission denied: " + e.Reason }
func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

// InvalidContextError reports an attempt to Set a context missing a
// workspace or user id.
type InvalidContextError struct {
	Reason string
}

func (e *InvalidContextError) Error() string { return "invalid tenant context: " + e.Reason }
func (e *InvalidContextError) Unwrap() error { return ErrInvalidContext }

// ContextMissingError reports a Require() call with no active context.
type ContextMissingError struct{}

func (e *ContextMissingError) Error() string { return "no tenant context is active" }
func (e *ContextMissingError) Unwrap() error { return ErrContextMissing }

// ConfigError reports an out-of-range value discovered by Validate().
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tenancy config: %s: %s", e.Field, e.Reason)
}
func (e *ConfigError) Unwrap() error { return ErrConfig }
