package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/circuit-guard/config"
	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-guard/internal/handler"
	"github.com/angeloszaimis/circuit-guard/internal/httpserver"
	"github.com/angeloszaimis/circuit-guard/internal/metrics"
	"github.com/angeloszaimis/circuit-guard/internal/probe"
	"github.com/angeloszaimis/circuit-guard/pkg/logger"
)

const metricsBufferSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := circuitbreaker.NewRegistry(buildBreakerConfig(cfg), log)

	upstreams, err := initializeUpstreams(ctx, cfg, registry, log)
	if err != nil {
		log.Error("Failed to initialize upstreams", slog.Any("err", err))
		os.Exit(1)
	}

	metricsCollector := metrics.NewCollector(metricsBufferSize, log)
	metricsCollector.Start(ctx)

	gatewayHandler := handler.NewGatewayHandler(log, registry, upstreams, nil, metricsCollector)

	mux := setupRouter(gatewayHandler, metricsCollector, registry)

	srv, err := httpserver.New(cfg.Server.Address, mux)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func initializeUpstreams(ctx context.Context, cfg *config.Config, registry *circuitbreaker.Registry, log *slog.Logger) (map[string]*url.URL, error) {
	probeInterval, err := time.ParseDuration(cfg.Probe.Interval)
	if err != nil {
		return nil, err
	}

	upstreams := make(map[string]*url.URL)

	for _, upstream := range cfg.Upstreams {
		u, err := url.Parse(upstream.URL)
		if err != nil {
			log.Error("Failed to parse upstream URL",
				slog.String("upstream", upstream.Name),
				slog.String("url", upstream.URL),
				slog.String("error", err.Error()))
			continue
		}

		upstreams[upstream.Name] = u
		go probe.Run(ctx, upstream.Name, u, registry.GetOrDefault(upstream.Name), probeInterval, log)
	}

	if len(upstreams) == 0 {
		return nil, os.ErrInvalid
	}

	return upstreams, nil
}

// buildBreakerConfig translates the file-level target settings into breaker
// configuration, filling every omitted field with the breaker defaults.
func buildBreakerConfig(cfg *config.Config) circuitbreaker.Config {
	targets := make(map[string]circuitbreaker.TargetConfig, len(cfg.CircuitBreaker.Targets))
	for name, target := range cfg.CircuitBreaker.Targets {
		targets[name] = buildTargetConfig(target)
	}

	return circuitbreaker.Config{Targets: targets}
}

func buildTargetConfig(target config.TargetConfig) circuitbreaker.TargetConfig {
	result := circuitbreaker.DefaultTargetConfig()

	if target.FailureThreshold > 0 {
		result.FailureThreshold = uint32(target.FailureThreshold)
	}
	if target.SuccessThreshold > 0 {
		result.SuccessThreshold = uint32(target.SuccessThreshold)
	}
	if target.HalfOpenMaxCalls > 0 {
		result.HalfOpenMaxCalls = uint32(target.HalfOpenMaxCalls)
	}
	if target.ResetTimeout != "" {
		if d, err := time.ParseDuration(target.ResetTimeout); err == nil {
			result.ResetTimeout = d
		}
	}
	if target.CallTimeout != "" {
		if d, err := time.ParseDuration(target.CallTimeout); err == nil {
			result.CallTimeout = d
		}
	}

	return result
}
