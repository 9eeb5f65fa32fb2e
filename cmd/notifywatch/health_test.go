package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/cache"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/eventqueue"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/realtime"
)

type fixedStats realtime.ManagerStats

func (f fixedStats) Stats() realtime.ManagerStats { return realtime.ManagerStats(f) }

type noQueue struct{}

func (noQueue) queueStats() (eventqueue.Stats, bool) { return eventqueue.Stats{}, false }

func TestHealthHandler_Status(t *testing.T) {
	tests := []struct {
		state      realtime.State
		wantStatus string
		wantCode   int
	}{
		{realtime.StateConnected, "healthy", http.StatusOK},
		{realtime.StateReconnecting, "degraded", http.StatusOK},
		{realtime.StateAuthenticating, "degraded", http.StatusOK},
		{realtime.StateDisconnected, "unhealthy", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := newHealthHandler(fixedStats{State: tt.state, MaxAttempts: 5}, noQueue{}, cache.NewStore(0))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}

			var body struct {
				Status     string `json:"status"`
				Components struct {
					Realtime struct {
						State       string `json:"state"`
						MaxAttempts int    `json:"max_attempts"`
					} `json:"realtime"`
				} `json:"components"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Components.Realtime.State != tt.state.String() {
				t.Errorf("realtime.state = %q, want %q", body.Components.Realtime.State, tt.state.String())
			}
			if body.Components.Realtime.MaxAttempts != 5 {
				t.Errorf("realtime.max_attempts = %d, want 5", body.Components.Realtime.MaxAttempts)
			}
		})
	}
}

func TestHealthHandler_DebugCache(t *testing.T) {
	store := cache.NewStore(0)
	store.SetUnreadCount("u1", 7)
	h := newHealthHandler(fixedStats{}, noQueue{}, store)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/cache", nil))

	var snap cache.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if snap.UnreadCounts["u1"] != 7 {
		t.Errorf("unread_counts[u1] = %d, want 7", snap.UnreadCounts["u1"])
	}
	if len(snap.Entries) != 1 || snap.Entries[0].Kind != cache.KindUnreadCount {
		t.Errorf("entries = %+v", snap.Entries)
	}
}
