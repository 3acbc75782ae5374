// Package capacity implements the resource monitor, demand forecaster,
// scaling manager, and cost analyzer that make up the capacity control
// plane.
package capacity

import "errors"

var ErrConfig = errors.New("capacity: invalid configuration")

// ConfigError reports an out-of-range value discovered by Validate().
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string { return "capacity config: " + e.Field + ": " + e.Reason }
func (e *ConfigError) Unwrap() error { return ErrConfig }
