package circuitbreaker

import (
	"context"
	"net/http"
)

// GuardedClient wraps an HTTP client so every request routes through the
// circuit breaker for a fixed target.
type GuardedClient struct {
	client   *http.Client
	registry *Registry
	target   string
}

// NewGuardedClient binds an HTTP client and a target name to a registry.
// A nil client falls back to http.DefaultClient.
func NewGuardedClient(client *http.Client, registry *Registry, target string) *GuardedClient {
	if client == nil {
		client = http.DefaultClient
	}

	return &GuardedClient{
		client:   client,
		registry: registry,
		target:   target,
	}
}

// Do sends the request through the breaker. The request's own context
// carries any deadline the breaker imposes.
func (c *GuardedClient) Do(req *http.Request) (*http.Response, error) {
	cb := c.registry.GetOrDefault(c.target)

	return Do(req.Context(), cb, c.target, func(ctx context.Context) (*http.Response, error) {
		return c.client.Do(req.WithContext(ctx))
	})
}

// Client returns the raw HTTP client. Calls made through it bypass the
// breaker.
func (c *GuardedClient) Client() *http.Client {
	return c.client
}

// Breaker returns the breaker guarding this client.
func (c *GuardedClient) Breaker() *CircuitBreaker {
	return c.registry.GetOrDefault(c.target)
}

// Target returns the breaker target name bound to this client.
func (c *GuardedClient) Target() string {
	return c.target
}
