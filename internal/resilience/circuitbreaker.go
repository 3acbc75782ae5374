package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// State names the breaker's trip state with its own vocabulary rather than
// gobreaker's state enum, since callers observe this type directly.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

func fromGobreakerState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Counts reports the breaker's rolling counters, reset on every CLOSED
// transition.
type Counts struct {
	Failures  int
	Successes int
	Total     int
	Rejected  int
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with the name-scoped
// rejection error, excluded-error accounting and half-open admission cap
// on top of gobreaker's own state machine.
//
// HalfOpenMaxCalls and SuccessThreshold are meant to be independent knobs,
// but gobreaker only exposes one (MaxRequests, which both caps concurrent
// half-open admission and is the number of ConsecutiveSuccesses required to
// close). We bind gobreaker's MaxRequests to SuccessThreshold so the close
// transition is correct, and layer our own semaphore on top to enforce a
// possibly-larger HalfOpenMaxCalls independently.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig
	cb   *gobreaker.CircuitBreaker
	log  zerolog.Logger

	mu          sync.Mutex
	rejected    int
	lastOpenAt  time.Time
	halfOpenSem chan struct{}
}

// NewCircuitBreaker constructs a named breaker. cfg is validated; an invalid
// cfg yields a breaker that is still usable but has been logged at Warn.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, log zerolog.Logger) *CircuitBreaker {
	if err := cfg.Validate(); err != nil {
		log.Warn().Str("breaker", name).Err(err).Msg("circuit breaker config invalid, using as-is")
	}
	scoped := log.With().Str("component", "circuit_breaker").Str("breaker", name).Logger()

	cb := &CircuitBreaker{
		name:        name,
		cfg:         cfg,
		log:         scoped,
		halfOpenSem: make(chan struct{}, maxInt(cfg.HalfOpenMaxCalls, 1)),
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(maxInt(cfg.SuccessThreshold, 1)),
		Interval:    0,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxInt(cfg.FailureThreshold, 1))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			for _, excluded := range cfg.ExcludedErrors {
				if excluded != nil && err.Error() == excluded.Error() {
					return true
				}
			}
			return false
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			cb.onStateChange(from, to)
		},
	}
	cb.cb = gobreaker.NewCircuitBreaker(settings)
	return cb
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (cb *CircuitBreaker) onStateChange(from, to gobreaker.State) {
	cb.mu.Lock()
	if to == gobreaker.StateOpen {
		cb.lastOpenAt = time.Now()
	}
	cb.mu.Unlock()
	cb.log.Info().
		Str("from", string(fromGobreakerState(from))).
		Str("to", string(fromGobreakerState(to))).
		Msg("circuit breaker state transition")
}

// Name returns the breaker's registry key.
func (cb *CircuitBreaker) Name() string { return cb.name }

// State returns the current state, evaluating the OPEN→HALF_OPEN timeout
// lazily as gobreaker does on every inspection.
func (cb *CircuitBreaker) State() State {
	return fromGobreakerState(cb.cb.State())
}

// Counts returns a point-in-time snapshot of the rolling counters.
func (cb *CircuitBreaker) Counts() Counts {
	c := cb.cb.Counts()
	cb.mu.Lock()
	rejected := cb.rejected
	cb.mu.Unlock()
	return Counts{
		Failures:  int(c.TotalFailures),
		Successes: int(c.TotalSuccesses),
		Total:     int(c.Requests),
		Rejected:  rejected,
	}
}

// remainingRecovery returns the time left before an OPEN breaker allows its
// next HALF_OPEN probe.
func (cb *CircuitBreaker) remainingRecovery() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	remaining := cb.cfg.RecoveryTimeout - time.Since(cb.lastOpenAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Call executes fn through the breaker. If the breaker is OPEN it returns a
// *CircuitOpenError without invoking fn. Any error returned by fn is
// returned to the caller unchanged (wrapped only by gobreaker's bookkeeping,
// never swallowed).
func (cb *CircuitBreaker) Call(fn func() (any, error)) (any, error) {
	if cb.State() == StateHalfOpen {
		select {
		case cb.halfOpenSem <- struct{}{}:
			defer func() { <-cb.halfOpenSem }()
		default:
			cb.mu.Lock()
			cb.rejected++
			cb.mu.Unlock()
			return nil, &CircuitOpenError{Name: cb.name, RemainingRecovery: cb.remainingRecovery()}
		}
	}

	result, err := cb.cb.Execute(func() (any, error) { return fn() })
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		cb.mu.Lock()
		cb.rejected++
		cb.mu.Unlock()
		return nil, &CircuitOpenError{Name: cb.name, RemainingRecovery: cb.remainingRecovery()}
	}
	return result, err
}

// CallCtx is Call with a context.Context passed through to fn; the breaker
// itself does not block, so ctx is only forwarded, never selected on.
func (cb *CircuitBreaker) CallCtx(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return cb.Call(func() (any, error) { return fn(ctx) })
}
