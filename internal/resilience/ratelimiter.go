package resilience

import (
	"math"
	"sync"
	"time"
)

// RateLimiter is a lazily-refilled token bucket. Refill happens inline on
// every Consume/RetryAfter call rather than on a background ticker, so an
// idle bucket costs nothing until it is touched again.
type RateLimiter struct {
	mu            sync.Mutex
	maxTokens     float64
	ratePerSecond float64
	tokens        float64
	lastRefill    time.Time

	totalAllowed  int64
	totalRejected int64
}

// NewRateLimiter constructs a bucket starting full.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		maxTokens:     cfg.MaxTokens,
		ratePerSecond: cfg.RatePerSecond,
		tokens:        cfg.MaxTokens,
		lastRefill:    time.Now(),
	}
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens = math.Min(rl.maxTokens, rl.tokens+elapsed*rl.ratePerSecond)
	rl.lastRefill = now
}

// Consume attempts to spend n tokens (default 1), returning true if enough
// tokens were available.
func (rl *RateLimiter) Consume(n float64) bool {
	if n <= 0 {
		n = 1
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	if rl.tokens >= n {
		rl.tokens -= n
		rl.totalAllowed++
		return true
	}
	rl.totalRejected++
	return false
}

// RetryAfter returns the number of seconds until at least one token will be
// available, 0 if one is already available.
func (rl *RateLimiter) RetryAfter() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	if rl.tokens >= 1 {
		return 0
	}
	deficit := 1 - rl.tokens
	return deficit / rl.ratePerSecond
}

// RateLimiterStats is a point-in-time snapshot of a bucket's counters.
type RateLimiterStats struct {
	Tokens        float64
	MaxTokens     float64
	TotalAllowed  int64
	TotalRejected int64
}

func (rl *RateLimiter) Stats() RateLimiterStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	return RateLimiterStats{
		Tokens:        rl.tokens,
		MaxTokens:     rl.maxTokens,
		TotalAllowed:  rl.totalAllowed,
		TotalRejected: rl.totalRejected,
	}
}

// RateLimiterRegistry maps opaque keys (client IPs, workspace ids) to
// independent buckets sharing a default config unless overridden per key.
type RateLimiterRegistry struct {
	mu      sync.Mutex
	cfg     RateLimiterConfig
	buckets map[string]*RateLimiter
}

// NewRateLimiterRegistry constructs a registry whose buckets default to cfg.
func NewRateLimiterRegistry(cfg RateLimiterConfig) *RateLimiterRegistry {
	return &RateLimiterRegistry{cfg: cfg, buckets: make(map[string]*RateLimiter)}
}

// GetOrCreate returns the bucket for key, creating one with the registry's
// default config if absent. Per-call overrideCfg is only applied on first
// creation; subsequent calls ignore it.
func (reg *RateLimiterRegistry) GetOrCreate(key string, overrideCfg *RateLimiterConfig) *RateLimiter {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if rl, ok := reg.buckets[key]; ok {
		return rl
	}
	cfg := reg.cfg
	if overrideCfg != nil {
		cfg = *overrideCfg
	}
	rl := NewRateLimiter(cfg)
	reg.buckets[key] = rl
	return rl
}

// Consume is a convenience wrapper around GetOrCreate(key, nil).Consume(n).
func (reg *RateLimiterRegistry) Consume(key string, n float64) bool {
	return reg.GetOrCreate(key, nil).Consume(n)
}

// Len reports how many distinct keys currently have a bucket.
func (reg *RateLimiterRegistry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.buckets)
}

// All returns a snapshot of every bucket's stats keyed by its registry key,
// for introspection endpoints.
func (reg *RateLimiterRegistry) All() map[string]RateLimiterStats {
	reg.mu.Lock()
	keys := make([]string, 0, len(reg.buckets))
	buckets := make([]*RateLimiter, 0, len(reg.buckets))
	for k, b := range reg.buckets {
		keys = append(keys, k)
		buckets = append(buckets, b)
	}
	reg.mu.Unlock()

	out := make(map[string]RateLimiterStats, len(keys))
	for i, k := range keys {
		out[k] = buckets[i].Stats()
	}
	return out
}
