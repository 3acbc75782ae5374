package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// Retrier wraps a callable so that matching failures are retried with
// bounded backoff, built on backoff.Retry rather than a hand-rolled sleep
// loop. One Retrier instance is stateless and safe to reuse across calls;
// delay computation (delayBackOff) is instantiated fresh per Do call so
// concurrent callers don't share an attempt counter.
type Retrier struct {
	name string
	cfg  RetryConfig
	log  zerolog.Logger
}

// NewRetrier constructs a named retry wrapper.
func NewRetrier(name string, cfg RetryConfig, log zerolog.Logger) *Retrier {
	if err := cfg.Validate(); err != nil {
		log.Warn().Str("retrier", name).Err(err).Msg("retry config invalid, using as-is")
	}
	return &Retrier{name: name, cfg: cfg, log: log.With().Str("component", "retry").Str("retrier", name).Logger()}
}

// delayBackOff implements backoff.BackOff for the exponential/linear/
// constant backoff strategies, including jitter and the max-delay
// cap. It is single-use: construct one per Do call.
type delayBackOff struct {
	cfg     RetryConfig
	attempt int
}

func (d *delayBackOff) Reset() { d.attempt = 0 }

func (d *delayBackOff) NextBackOff() time.Duration {
	delay := computeDelay(d.cfg, d.attempt)
	d.attempt++
	return delay
}

// computeDelay returns the i-th (0-based) retry delay:
// a strategy-dependent base, plus uniform jitter in [0, JitterMax], capped
// at MaxDelay.
func computeDelay(cfg RetryConfig, i int) time.Duration {
	var base time.Duration
	switch cfg.Strategy {
	case BackoffLinear:
		base = cfg.BaseDelay * time.Duration(i+1)
	case BackoffConstant:
		base = cfg.BaseDelay
	default: // exponential
		base = time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(i)))
	}
	jitter := time.Duration(0)
	if cfg.JitterMax > 0 {
		jitter = time.Duration(rand.Int63n(int64(cfg.JitterMax) + 1))
	}
	total := base + jitter
	if total > cfg.MaxDelay {
		total = cfg.MaxDelay
	}
	return total
}

// Do executes fn, retrying per cfg on failures RetryIf accepts (all errors
// if RetryIf is nil). On exhaustion it returns a *MaxRetriesExceededError
// wrapping the last error observed.
func (r *Retrier) Do(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	attempts := 0
	var lastErr error

	op := func() (any, error) {
		attempts++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if r.cfg.RetryIf != nil && !r.cfg.RetryIf(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, d time.Duration) {
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempts, err)
		}
		r.log.Warn().Err(err).Int("attempt", attempts).Dur("next_delay", d).Msg("retrying")
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&delayBackOff{cfg: r.cfg}),
		backoff.WithMaxTries(uint(r.cfg.MaxAttempts)),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if lastErr == nil {
		lastErr = err
	}
	return nil, &MaxRetriesExceededError{Attempts: attempts, LastErr: lastErr}
}
