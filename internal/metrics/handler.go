package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
)

// Handler serves a JSON snapshot of the collected metrics, merged with the
// live state of every breaker in the registry.
func (c *Collector) Handler(registry *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states := make(map[string]string)
		for target, state := range registry.States() {
			states[target] = state.String()
		}

		snap := c.metrics.Snapshot(states)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
