package resilience

import "time"

// BackoffStrategy selects the delay formula used between retry attempts.
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffConstant    BackoffStrategy = "constant"
)

// CircuitBreakerConfig parameterizes a single named breaker.
type CircuitBreakerConfig struct {
	FailureThreshold  int           // consecutive CLOSED failures before tripping OPEN
	SuccessThreshold  int           // consecutive HALF_OPEN successes before closing
	RecoveryTimeout   time.Duration // time OPEN must elapse before a HALF_OPEN probe is allowed
	HalfOpenMaxCalls  int           // concurrent probes admitted while HALF_OPEN
	ExcludedErrors    []error       // errors counted as successes but still returned to the caller
}

// DefaultCircuitBreakerConfig returns the conservative defaults used
// throughout Sentinel's outbound broker and market-data clients.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Validate returns a *ConfigError describing the first out-of-range field.
func (c CircuitBreakerConfig) Validate() error {
	switch {
	case c.FailureThreshold <= 0:
		return &ConfigError{Field: "FailureThreshold", Reason: "must be positive"}
	case c.SuccessThreshold <= 0:
		return &ConfigError{Field: "SuccessThreshold", Reason: "must be positive"}
	case c.RecoveryTimeout <= 0:
		return &ConfigError{Field: "RecoveryTimeout", Reason: "must be positive"}
	case c.HalfOpenMaxCalls <= 0:
		return &ConfigError{Field: "HalfOpenMaxCalls", Reason: "must be positive"}
	}
	return nil
}

// RetryConfig parameterizes a retry-wrapped callable.
type RetryConfig struct {
	MaxAttempts    int
	Strategy       BackoffStrategy
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterMax      time.Duration
	RetryIf        func(error) bool       // nil means retry every error
	OnRetry        func(attempt int, err error) // called before sleeping, nil is a no-op
}

// DefaultRetryConfig returns exponential backoff with three attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Strategy:    BackoffExponential,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		JitterMax:   50 * time.Millisecond,
	}
}

func (c RetryConfig) Validate() error {
	switch {
	case c.MaxAttempts <= 0:
		return &ConfigError{Field: "MaxAttempts", Reason: "must be positive"}
	case c.BaseDelay <= 0:
		return &ConfigError{Field: "BaseDelay", Reason: "must be positive"}
	case c.MaxDelay < c.BaseDelay:
		return &ConfigError{Field: "MaxDelay", Reason: "must be >= BaseDelay"}
	case c.JitterMax < 0:
		return &ConfigError{Field: "JitterMax", Reason: "must be non-negative"}
	case c.Strategy != BackoffExponential && c.Strategy != BackoffLinear && c.Strategy != BackoffConstant:
		return &ConfigError{Field: "Strategy", Reason: "unknown backoff strategy"}
	}
	return nil
}

// RateLimiterConfig parameterizes a token bucket.
type RateLimiterConfig struct {
	MaxTokens     float64
	RatePerSecond float64
}

// DefaultRateLimiterConfig allows a burst of 10 and a steady 5 req/s.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{MaxTokens: 10, RatePerSecond: 5}
}

func (c RateLimiterConfig) Validate() error {
	switch {
	case c.MaxTokens <= 0:
		return &ConfigError{Field: "MaxTokens", Reason: "must be positive"}
	case c.RatePerSecond <= 0:
		return &ConfigError{Field: "RatePerSecond", Reason: "must be positive"}
	}
	return nil
}

// BulkheadConfig parameterizes a bounded concurrency pool.
type BulkheadConfig struct {
	MaxConcurrent int
	Timeout       time.Duration
}

// DefaultBulkheadConfig allows 10 concurrent callers with a 5s queue wait.
func DefaultBulkheadConfig() BulkheadConfig {
	return BulkheadConfig{MaxConcurrent: 10, Timeout: 5 * time.Second}
}

func (c BulkheadConfig) Validate() error {
	switch {
	case c.MaxConcurrent <= 0:
		return &ConfigError{Field: "MaxConcurrent", Reason: "must be positive"}
	case c.Timeout <= 0:
		return &ConfigError{Field: "Timeout", Reason: "must be positive"}
	}
	return nil
}
