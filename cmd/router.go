package main

import (
	"net/http"

	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
	"github.com/angeloszaimis/circuit-guard/internal/handler"
	"github.com/angeloszaimis/circuit-guard/internal/metrics"
)

func setupRouter(gatewayHandler *handler.GatewayHandler, metricsCollector *metrics.Collector, registry *circuitbreaker.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/proxy/", gatewayHandler.ServeHTTP)
	mux.HandleFunc("/breakers", handler.BreakersHandler(registry))
	mux.HandleFunc("/metrics", metricsCollector.Handler(registry))

	return mux
}
