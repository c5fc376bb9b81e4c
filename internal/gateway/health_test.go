package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/tgplug/internal/poller"
)

func getHealth(t *testing.T, g *Gateway) (int, HealthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	g.handleHealth().ServeHTTP(rr, req)

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rr.Code, resp
}

func TestHealth_Polling(t *testing.T) {
	t.Parallel()

	g := &Gateway{bot: &fakeBot{status: poller.Status{Polling: true, LastPoll: time.Now()}}}
	code, resp := getHealth(t, g)

	if code != http.StatusOK {
		t.Errorf("status = %d, want %d", code, http.StatusOK)
	}
	if resp.Status != "ok" || !resp.Polling || resp.LastPoll.IsZero() {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHealth_LastPollFailed(t *testing.T) {
	t.Parallel()

	g := &Gateway{bot: &fakeBot{status: poller.Status{Polling: true, LastError: "telegram: getUpdates: EOF"}}}
	code, resp := getHealth(t, g)

	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if resp.Status != "degraded" || resp.LastError == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHealth_NotPolling(t *testing.T) {
	t.Parallel()

	for name, g := range map[string]*Gateway{
		"stopped": {bot: &fakeBot{}},
		"no bot":  {},
	} {
		if code, resp := getHealth(t, g); code != http.StatusServiceUnavailable || resp.Status != "degraded" {
			t.Errorf("%s: %d %+v", name, code, resp)
		}
	}
}
