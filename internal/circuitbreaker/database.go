package circuitbreaker

import (
	"context"
	"database/sql"
)

// GuardedDB wraps a database connection pool so every query routes through
// the circuit breaker for a fixed target. It holds no state beyond the pool,
// the registry, and the target name.
type GuardedDB struct {
	db       *sql.DB
	registry *Registry
	target   string
}

// NewGuardedDB binds a pool and a target name to a registry.
func NewGuardedDB(db *sql.DB, registry *Registry, target string) *GuardedDB {
	return &GuardedDB{
		db:       db,
		registry: registry,
		target:   target,
	}
}

// Query executes fn through the breaker. The closure receives the
// underlying pool and captures any result values itself.
func (g *GuardedDB) Query(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	cb := g.registry.GetOrDefault(g.target)

	return Exec(ctx, cb, g.target, func(ctx context.Context) error {
		return fn(ctx, g.db)
	})
}

// DB returns the raw pool. Calls made through it bypass the breaker.
func (g *GuardedDB) DB() *sql.DB {
	return g.db
}

// Breaker returns the breaker guarding this pool.
func (g *GuardedDB) Breaker() *CircuitBreaker {
	return g.registry.GetOrDefault(g.target)
}

// Target returns the breaker target name bound to this pool.
func (g *GuardedDB) Target() string {
	return g.target
}
