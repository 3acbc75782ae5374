// Package tradepipeline implements the five-stage order processor, the
// signal-normalization bridge, the in-memory position store, and the
// execution reconciler.
package tradepipeline

import "errors"

var (
	ErrValidationRejection = errors.New("tradepipeline: validation rejection")
	ErrRiskRejection       = errors.New("tradepipeline: risk rejection")
	ErrConfig              = errors.New("tradepipeline: invalid configuration")
)

// ValidationRejectionError reports a Stage-1 rejection. The pipeline never
// returns this as a Go error from Process; it is only used by callers that
// want a typed handle on a PipelineResult's RejectionReason.
type ValidationRejectionError struct{ Reason string }

func (e *ValidationRejectionError) Error() string { return "validation rejected: " + e.Reason }
func (e *ValidationRejectionError) Unwrap() error { return ErrValidationRejection }

// RiskRejectionError is the Stage-2 analogue of ValidationRejectionError.
type RiskRejectionError struct{ Reason string }

func (e *RiskRejectionError) Error() string { return "risk check rejected: " + e.Reason }
func (e *RiskRejectionError) Unwrap() error { return ErrRiskRejection }

// ConfigError reports an out-of-range value discovered by Validate().
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string { return "tradepipeline config: " + e.Field + ": " + e.Reason }
func (e *ConfigError) Unwrap() error { return ErrConfig }
