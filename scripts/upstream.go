// Upstream is a simple test HTTP server for exercising the gateway's
// circuit breakers. It provides /work and /health endpoints, plus /toggle
// to flip the server between healthy and failing on demand.
//
// Usage:
//
//	go run upstream.go -port 9001
//
// While failing, /work returns 500 and /health returns 503, so a breaker
// guarding this upstream will open after enough failed calls and close
// again once the server is toggled back.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

func main() {
	port := flag.Int("port", 9001, "port to listen on")
	delay := flag.Duration("delay", 0, "artificial latency added to /work responses")
	startFailing := flag.Bool("failing", false, "start in the failing state")
	flag.Parse()

	var failing atomic.Bool
	failing.Store(*startFailing)

	mux := http.NewServeMux()

	mux.HandleFunc("/work", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("request: method=%s path=%s from=%s", r.Method, r.URL.Path, r.RemoteAddr)

		if *delay > 0 {
			time.Sleep(*delay)
		}

		if failing.Load() {
			http.Error(w, "simulated failure", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"port":   *port,
			"served": time.Now().Format(time.RFC3339Nano),
		})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/toggle", func(w http.ResponseWriter, r *http.Request) {
		nowFailing := !failing.Load()
		failing.Store(nowFailing)
		log.Printf("toggled: failing=%v", nowFailing)
		fmt.Fprintf(w, "failing=%v\n", nowFailing)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("upstream listening on %s (failing=%v)", addr, failing.Load())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
