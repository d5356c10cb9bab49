// Package circuitbreaker implements per-target circuit breaking for calls
// to external dependencies.
//
// A circuit breaker prevents cascading failures by failing fast when a
// dependency is unhealthy. It has three states:
//
//   - closed: normal operation, requests pass through, failures are counted
//   - open: the target is failing, requests are rejected without being attempted
//   - half-open: a limited number of probes test whether the target recovered
//
// Breakers are organized per target (one for the database, one per external
// service), never per route. The Registry owns the canonical instance for
// each target name; all callers share it.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(cfg, logger)
//	cb := registry.GetOrDefault("payment-api")
//
//	result, err := circuitbreaker.Do(ctx, cb, "payment-api", func(ctx context.Context) (string, error) {
//	    return fetchInvoice(ctx)
//	})
//
// Callers that need finer control can drive the protocol manually:
//
//	if cb.ShouldAllow() {
//	    if err := call(); err != nil {
//	        cb.RecordFailure()
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
package circuitbreaker
