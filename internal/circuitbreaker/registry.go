package circuitbreaker

import (
	"log/slog"
	"sync"
)

// Config is the root circuit breaker configuration: one TargetConfig per
// named target. Targets missing from the map are created lazily with
// DefaultTargetConfig on first access.
type Config struct {
	Targets map[string]TargetConfig
}

// Registry holds the canonical breaker instance for every target. It is
// the sole owner of breaker storage; callers receive shared pointers, so
// mutations through any handle are visible to all holders.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	defaults TargetConfig
	logger   *slog.Logger
}

// NewRegistry creates a registry pre-populated with a closed breaker for
// every configured target.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	breakers := make(map[string]*CircuitBreaker, len(cfg.Targets))
	for name, targetCfg := range cfg.Targets {
		breakers[name] = NewCircuitBreaker(targetCfg, logger.With(slog.String("target", name)))
	}

	return &Registry{
		breakers: breakers,
		defaults: DefaultTargetConfig(),
		logger:   logger,
	}
}

// Get returns the breaker for target, or false if it was never configured
// or referenced. It never creates.
func (r *Registry) Get(target string) (*CircuitBreaker, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	cb, exists := r.breakers[target]
	return cb, exists
}

// GetOrDefault returns the breaker for target, creating one with default
// configuration if none exists. Concurrent first access from many callers
// yields exactly one canonical instance.
func (r *Registry) GetOrDefault(target string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[target]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[target]; exists {
		return cb
	}

	cb = NewCircuitBreaker(r.defaults, r.logger.With(slog.String("target", target)))
	r.breakers[target] = cb
	return cb
}

// Targets lists all currently known target names.
func (r *Registry) Targets() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// States returns the current state of every known breaker.
func (r *Registry) States() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	states := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		states[name] = cb.State()
	}
	return states
}
