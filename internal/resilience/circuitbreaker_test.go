package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

var errBoom = errors.New("boom")

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		RecoveryTimeout:  100 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	}
	cb := NewCircuitBreaker("upstream", cfg, testLogger())

	for i := 0; i < 3; i++ {
		_, err := cb.Call(func() (any, error) { return nil, errBoom })
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, StateOpen, cb.State())

	_, err := cb.Call(func() (any, error) { return "ok", nil })
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "upstream", openErr.Name)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	result, err := cb.Call(func() (any, error) { return "recovered", nil })
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ExcludedErrorsDoNotTrip(t *testing.T) {
	excluded := errors.New("not a real failure")
	cfg := CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		RecoveryTimeout:  time.Second,
		HalfOpenMaxCalls: 1,
		ExcludedErrors:   []error{excluded},
	}
	cb := NewCircuitBreaker("excluded", cfg, testLogger())

	for i := 0; i < 5; i++ {
		_, err := cb.Call(func() (any, error) { return nil, excluded })
		assert.ErrorIs(t, err, excluded)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_PropagatesUnderlyingError(t *testing.T) {
	cb := NewCircuitBreaker("propagate", DefaultCircuitBreakerConfig(), testLogger())
	_, err := cb.Call(func() (any, error) { return nil, errBoom })
	assert.ErrorIs(t, err, errBoom)
}
