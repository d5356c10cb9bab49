// Package metrics provides real-time metrics collection for the gateway.
//
// It uses a channel-based event pipeline to asynchronously collect metrics about:
//   - Guarded call counts per target
//   - Calls rejected by an open circuit
//   - Failures and timeouts recorded against each target
//   - Response times with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path. Events are sent via buffered channels with
// non-blocking semantics to prevent performance degradation under load.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.EventChannel() <- metrics.MetricEvent{
//		Type:     metrics.EventCallCompleted,
//		Target:   "payment-api",
//		Duration: 150 * time.Millisecond,
//		Outcome:  metrics.OutcomeSuccess,
//	}
//
// Metric aggregation deliberately lives outside the circuitbreaker package:
// the breaker core only tracks the counters it needs for admission decisions.
package metrics
