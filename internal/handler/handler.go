package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-guard/internal/metrics"
)

// GatewayHandler forwards requests to named upstreams through their circuit
// breakers. Requests arrive as /proxy/{upstream}/rest-of-path and are
// rejected fast with 503 while the upstream's circuit is open.
type GatewayHandler struct {
	logger           *slog.Logger
	registry         *circuitbreaker.Registry
	upstreams        map[string]*url.URL
	clients          map[string]*circuitbreaker.GuardedClient
	metricsCollector *metrics.Collector
}

// NewGatewayHandler builds a handler with one guarded client per upstream.
// All upstreams share the given HTTP client; a nil client falls back to
// http.DefaultClient.
func NewGatewayHandler(
	logger *slog.Logger,
	registry *circuitbreaker.Registry,
	upstreams map[string]*url.URL,
	httpClient *http.Client,
	metricsCollector *metrics.Collector,
) *GatewayHandler {
	clients := make(map[string]*circuitbreaker.GuardedClient, len(upstreams))
	for name := range upstreams {
		clients[name] = circuitbreaker.NewGuardedClient(httpClient, registry, name)
	}

	return &GatewayHandler{
		logger:           logger,
		registry:         registry,
		upstreams:        upstreams,
		clients:          clients,
		metricsCollector: metricsCollector,
	}
}

func (g *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, rest, ok := splitProxyPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	upstream, exists := g.upstreams[name]
	if !exists {
		writeJSONError(w, http.StatusNotFound, "unknown upstream", name)
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.Must(uuid.NewV7()).String()
	}

	g.logger.Info("Forwarding request",
		slog.String("request_id", requestID),
		slog.String("method", r.Method),
		slog.String("upstream", name),
		slog.String("path", rest))

	g.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventRequestReceived,
		Timestamp: time.Now(),
		Target:    name,
	})

	outURL := upstream.ResolveReference(&url.URL{Path: rest, RawQuery: r.URL.RawQuery})

	req, err := http.NewRequestWithContext(r.Context(), r.Method, outURL.String(), r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request", name)
		return
	}
	req.Header = r.Header.Clone()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	res, err := g.clients[name].Do(req)
	duration := time.Since(start)

	if err != nil {
		g.handleCallError(w, name, requestID, duration, err)
		return
	}
	defer res.Body.Close()

	g.emitEvent(metrics.MetricEvent{
		Type:       metrics.EventCallCompleted,
		Timestamp:  time.Now(),
		Target:     name,
		Duration:   duration,
		StatusCode: res.StatusCode,
		Outcome:    metrics.OutcomeSuccess,
	})

	for key, values := range res.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(res.StatusCode)

	if _, err := io.Copy(w, res.Body); err != nil {
		g.logger.Warn("Failed to copy upstream response",
			slog.String("request_id", requestID),
			slog.String("upstream", name),
			slog.Any("err", err))
	}
}

func (g *GatewayHandler) handleCallError(w http.ResponseWriter, name, requestID string, duration time.Duration, err error) {
	switch {
	case circuitbreaker.IsCircuitOpen(err):
		g.logger.Warn("Rejected by open circuit",
			slog.String("request_id", requestID),
			slog.String("upstream", name))

		g.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventCallRejected,
			Timestamp: time.Now(),
			Target:    name,
		})
		writeJSONError(w, http.StatusServiceUnavailable, "circuit open", name)

	case circuitbreaker.IsTimeout(err):
		g.logger.Warn("Upstream call timed out",
			slog.String("request_id", requestID),
			slog.String("upstream", name),
			slog.Duration("after", duration))

		g.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventCallCompleted,
			Timestamp: time.Now(),
			Target:    name,
			Duration:  duration,
			Outcome:   metrics.OutcomeTimeout,
		})
		writeJSONError(w, http.StatusGatewayTimeout, "upstream timeout", name)

	default:
		g.logger.Warn("Upstream call failed",
			slog.String("request_id", requestID),
			slog.String("upstream", name),
			slog.Any("err", err))

		g.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventCallCompleted,
			Timestamp: time.Now(),
			Target:    name,
			Duration:  duration,
			Outcome:   metrics.OutcomeFailure,
		})
		writeJSONError(w, http.StatusBadGateway, "upstream unavailable", name)
	}
}

// BreakersHandler serves the state of every known breaker as JSON.
func BreakersHandler(registry *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states := make(map[string]string)
		for target, state := range registry.States() {
			states[target] = state.String()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(states); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func (g *GatewayHandler) emitEvent(event metrics.MetricEvent) {
	if g.metricsCollector == nil {
		return
	}

	select {
	case g.metricsCollector.EventChannel() <- event:
	default:
		// Drop the event rather than block the request path.
	}
}

func splitProxyPath(path string) (name, rest string, ok bool) {
	trimmed, found := strings.CutPrefix(path, "/proxy/")
	if !found || trimmed == "" {
		return "", "", false
	}

	name, rest, _ = strings.Cut(trimmed, "/")
	if name == "" {
		return "", "", false
	}

	return name, "/" + rest, true
}

func writeJSONError(w http.ResponseWriter, status int, message, target string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":  message,
		"target": target,
	})
}
