package probe

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
)

const probeTimeout = 5 * time.Second

// Run periodically checks an upstream's /health endpoint and feeds the
// outcome straight into the breaker with RecordSuccess and RecordFailure.
// It drives the breaker manually, without an admission check, so breaker
// state stays fresh even when no traffic flows: a failing health check
// while the circuit is open extends the open window, and successful
// checks close a half-open circuit once the upstream recovers.
func Run(
	ctx context.Context,
	target string,
	baseURL *url.URL,
	cb *circuitbreaker.CircuitBreaker,
	interval time.Duration,
	logger *slog.Logger,
) {
	client := &http.Client{
		Timeout: probeTimeout,
	}

	healthURL := baseURL.ResolveReference(&url.URL{Path: "/health"})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true

	for {
		select {
		case <-ctx.Done():
			logger.Info("Probe stopped",
				slog.String("target", target))
			return

		case <-ticker.C:
			ok := check(ctx, client, healthURL)

			if ok {
				cb.RecordSuccess()
			} else {
				cb.RecordFailure()
			}

			if ok != healthy {
				healthy = ok
				if healthy {
					logger.Info("Upstream is back up",
						slog.String("target", target),
						slog.String("state", cb.State().String()))
				} else {
					logger.Warn("Upstream is down",
						slog.String("target", target),
						slog.String("state", cb.State().String()))
				}
			}
		}
	}
}

func check(ctx context.Context, client *http.Client, healthURL *url.URL) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return false
	}

	res, err := client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK
}
