package main

import (
	"encoding/json"
	"net/http"

	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/cache"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/eventqueue"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/realtime"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/version"
)

type statsSource interface {
	Stats() realtime.ManagerStats
}

type queueSource interface {
	queueStats() (eventqueue.Stats, bool)
}

// newHealthHandler creates the HTTP handler for health checks.
func newHealthHandler(mgr statsSource, queues queueSource, store *cache.Store) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := mgr.Stats()

		health := struct {
			Status     string                 `json:"status"`
			Version    string                 `json:"version"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     healthStatus(stats),
			Version:    version.String(),
			Components: make(map[string]interface{}),
		}
		health.Components["realtime"] = stats
		if q, ok := queues.queueStats(); ok {
			health.Components["event_queue"] = q
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/cache", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(store.Snapshot())
	})

	return mux
}

// healthStatus maps session state to a health status. A session that is
// retrying is degraded; one that gave up or was rejected is unhealthy.
func healthStatus(stats realtime.ManagerStats) string {
	switch stats.State {
	case realtime.StateConnected:
		return "healthy"
	case realtime.StateDisconnected:
		return "unhealthy"
	default:
		return "degraded"
	}
}
