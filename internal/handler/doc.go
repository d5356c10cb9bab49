// Package handler exposes the gateway's HTTP surface: the guarded proxy
// endpoint that forwards /proxy/{upstream}/... requests through per-upstream
// circuit breakers, and the breaker introspection endpoint.
package handler
