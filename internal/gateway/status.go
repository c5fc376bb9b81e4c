package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/poller"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Bot     string                `json:"bot,omitempty"`
	Uptime  int64                 `json:"uptime_seconds"`
	Poller  *poller.Status        `json:"poller,omitempty"`
	Plugins []dispatch.PluginInfo `json:"plugins"`
	HTTP    MetricsSnapshot       `json:"http"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Plugins: []dispatch.PluginInfo{},
			HTTP:    g.metrics.Snapshot(),
		}

		if g.bot != nil {
			st := g.bot.PollerStatus()
			resp.Bot = g.bot.Username()
			resp.Uptime = int64(g.bot.Uptime().Seconds())
			resp.Poller = &st
			resp.Plugins = g.bot.Plugins()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
