// Package probe periodically checks upstream /health endpoints and records
// the outcomes on each upstream's circuit breaker. It is the manual consumer
// of the breaker protocol: it never asks for admission, it only reports what
// it observed.
package probe
