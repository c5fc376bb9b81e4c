package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string    `json:"status"` // "ok" or "degraded"
	Polling   bool      `json:"polling"`
	LastPoll  time.Time `json:"last_poll,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 while the poller runs and its last poll succeeded, 503
// otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "degraded"}

		if g.bot != nil {
			st := g.bot.PollerStatus()
			resp.Polling = st.Polling
			resp.LastPoll = st.LastPoll
			resp.LastError = st.LastError
			if st.Polling && st.LastError == "" {
				resp.Status = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
