package resilience

import (
	"sync"

	"github.com/rs/zerolog"
)

// CircuitBreakerRegistry is a name-keyed, mutex-guarded store of breakers.
// GetOrCreate is idempotent: the config passed on the second call for an
// existing name is ignored.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	log      zerolog.Logger
	breakers map[string]*CircuitBreaker
}

func NewCircuitBreakerRegistry(log zerolog.Logger) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{log: log, breakers: make(map[string]*CircuitBreaker)}
}

func (r *CircuitBreakerRegistry) GetOrCreate(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(name, cfg, r.log)
	r.breakers[name] = cb
	return cb
}

func (r *CircuitBreakerRegistry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

// All returns a snapshot slice of every registered breaker, for
// introspection endpoints.
func (r *CircuitBreakerRegistry) All() []*CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb)
	}
	return out
}

// BulkheadRegistry is the bulkhead analogue of CircuitBreakerRegistry.
type BulkheadRegistry struct {
	mu        sync.Mutex
	log       zerolog.Logger
	bulkheads map[string]*Bulkhead
}

func NewBulkheadRegistry(log zerolog.Logger) *BulkheadRegistry {
	return &BulkheadRegistry{log: log, bulkheads: make(map[string]*Bulkhead)}
}

func (r *BulkheadRegistry) GetOrCreate(name string, cfg BulkheadConfig) *Bulkhead {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bulkheads[name]; ok {
		return b
	}
	b := NewBulkhead(name, cfg, r.log)
	r.bulkheads[name] = b
	return b
}

func (r *BulkheadRegistry) Get(name string) (*Bulkhead, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bulkheads[name]
	return b, ok
}

// All returns a snapshot slice of every registered bulkhead, for
// introspection endpoints.
func (r *BulkheadRegistry) All() []*Bulkhead {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Bulkhead, 0, len(r.bulkheads))
	for _, b := range r.bulkheads {
		out = append(out, b)
	}
	return out
}

var (
	defaultOnce        sync.Once
	defaultCBRegistry  *CircuitBreakerRegistry
	defaultBHRegistry  *BulkheadRegistry
	defaultRLRegistry  *RateLimiterRegistry
)

// DefaultRegistries lazily constructs the three process-wide singleton
// registries the runtime needs: the circuit breaker, bulkhead, and rate limiter
// registries. Construction is idempotent and safe for concurrent callers.
func DefaultRegistries(log zerolog.Logger) (*CircuitBreakerRegistry, *BulkheadRegistry, *RateLimiterRegistry) {
	defaultOnce.Do(func() {
		defaultCBRegistry = NewCircuitBreakerRegistry(log)
		defaultBHRegistry = NewBulkheadRegistry(log)
		defaultRLRegistry = NewRateLimiterRegistry(DefaultRateLimiterConfig())
	})
	return defaultCBRegistry, defaultBHRegistry, defaultRLRegistry
}
