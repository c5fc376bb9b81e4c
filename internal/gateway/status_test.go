package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/poller"
)

func TestStatus_ReportsBot(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	m.RecordRequest(http.StatusOK)
	m.RecordRequest(http.StatusBadGateway)
	m.RecordAuthFailure()

	g := &Gateway{
		metrics: m,
		bot: &fakeBot{
			status: poller.Status{Polling: true, Offset: 1042, Backoff: 0},
			plugins: []dispatch.PluginInfo{
				{Name: "guard", Priority: 0},
				{Name: "notes", Priority: 100, Commands: []string{"note"}},
			},
			uptime: 5 * time.Minute,
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	g.handleStatus().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Bot != "tgplug_bot" {
		t.Errorf("bot = %q", resp.Bot)
	}
	if resp.Uptime != 300 {
		t.Errorf("uptime = %d, want 300", resp.Uptime)
	}
	if resp.Poller == nil || resp.Poller.Offset != 1042 || !resp.Poller.Polling {
		t.Errorf("poller = %+v", resp.Poller)
	}
	if len(resp.Plugins) != 2 || resp.Plugins[1].Commands[0] != "note" {
		t.Errorf("plugins = %+v", resp.Plugins)
	}
	if resp.HTTP.Requests != 2 || resp.HTTP.ServerErrors != 1 || resp.HTTP.AuthFailures != 1 {
		t.Errorf("http = %+v", resp.HTTP)
	}
}

func TestStatus_NoBot(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	g.handleStatus().ServeHTTP(rr, req)

	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Poller != nil || resp.Plugins == nil {
		t.Errorf("resp = %+v", resp)
	}
}
