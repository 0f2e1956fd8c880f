package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler serves /healthz: 200 while refresh cycles keep completing.
func HealthHandler(tracker *Tracker, pollInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusServiceUnavailable
		snapshot := Snapshot{}
		if tracker != nil {
			if tracker.Healthy(time.Now().UTC(), pollInterval) {
				status = http.StatusOK
			}
			snapshot = tracker.Snapshot()
		}
		WriteJSON(w, status, snapshot)
	}
}

// ReadyHandler serves /readyz: 200 once the first refresh cycle completed.
func ReadyHandler(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusServiceUnavailable
		snapshot := Snapshot{}
		if tracker != nil {
			if tracker.Ready() {
				status = http.StatusOK
			}
			snapshot = tracker.Snapshot()
		}
		WriteJSON(w, status, snapshot)
	}
}

// WriteJSON encodes payload with the given status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
