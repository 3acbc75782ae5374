package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_ConsumeWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxTokens: 3, RatePerSecond: 1})
	assert.True(t, rl.Consume(1))
	assert.True(t, rl.Consume(1))
	assert.True(t, rl.Consume(1))
	assert.False(t, rl.Consume(1))
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxTokens: 1, RatePerSecond: 20})
	assert.True(t, rl.Consume(1))
	assert.False(t, rl.Consume(1))
	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Consume(1))
}

func TestRateLimiter_TokensNeverExceedMax(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxTokens: 2, RatePerSecond: 1000})
	time.Sleep(10 * time.Millisecond)
	stats := rl.Stats()
	assert.LessOrEqual(t, stats.Tokens, stats.MaxTokens)
}

func TestRateLimiter_RetryAfterZeroWhenAvailable(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxTokens: 5, RatePerSecond: 1})
	assert.Equal(t, float64(0), rl.RetryAfter())
}

func TestRateLimiter_RetryAfterPositiveWhenEmpty(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxTokens: 1, RatePerSecond: 2})
	rl.Consume(1)
	assert.Greater(t, rl.RetryAfter(), 0.0)
}

func TestRateLimiterRegistry_IndependentBucketsPerKey(t *testing.T) {
	reg := NewRateLimiterRegistry(RateLimiterConfig{MaxTokens: 1, RatePerSecond: 1})
	assert.True(t, reg.Consume("ip-a", 1))
	assert.True(t, reg.Consume("ip-b", 1))
	assert.False(t, reg.Consume("ip-a", 1))
}

func TestRateLimiterRegistry_GetOrCreateIdempotent(t *testing.T) {
	reg := NewRateLimiterRegistry(RateLimiterConfig{MaxTokens: 5, RatePerSecond: 1})
	a := reg.GetOrCreate("k", nil)
	override := RateLimiterConfig{MaxTokens: 999, RatePerSecond: 999}
	b := reg.GetOrCreate("k", &override)
	assert.Same(t, a, b)
	assert.Equal(t, 5.0, b.Stats().MaxTokens)
}
