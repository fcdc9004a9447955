package api

import (
	"encoding/json"
	"net/http"

	"github.com/heysubinoy/rollbook/internal/store"
)

// MetricsHandler returns current store metrics as JSON.
func MetricsHandler(instrumentedStore *store.InstrumentedStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		metrics := instrumentedStore.GetMetrics()

		operations := make(map[string]uint64, len(metrics))
		errors := make(map[string]uint64, len(metrics))
		latency := make(map[string]string, len(metrics))
		for op, m := range metrics {
			operations[op] = m.Count
			errors[op] = m.Errors
			latency[op] = m.AvgLatency.String()
		}

		response := map[string]interface{}{
			"operations":  operations,
			"errors":      errors,
			"avg_latency": latency,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
