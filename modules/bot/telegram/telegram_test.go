package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgplug/internal/command"
	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/metrics"
	api "github.com/flemzord/tgplug/internal/telegram"
)

const testToken = "123456:ABC-def_ghi"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func yamlNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatal(err)
	}
	return doc.Content[0]
}

// fakeAPI serves one /start update and records outgoing messages.
type fakeAPI struct {
	t *testing.T

	mu       sync.Mutex
	calls    []string
	sent     []api.SendMessage
	sentCh   chan struct{}
	served   bool
	getMeErr bool
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{t: t, sentCh: make(chan struct{}, 8)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()

	switch method {
	case "getMe":
		if f.getMeErr {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(f.t, w, map[string]any{"ok": false, "error_code": 401, "description": "Unauthorized"})
			return
		}
		writeJSON(f.t, w, api.APIResponse[api.User]{OK: true, Result: api.User{ID: 1, IsBot: true, Username: "tgplug_bot"}})
	case "deleteWebhook":
		writeJSON(f.t, w, api.APIResponse[bool]{OK: true, Result: true})
	case "getUpdates":
		f.mu.Lock()
		first := !f.served
		f.served = true
		f.mu.Unlock()
		if !first {
			select {
			case <-r.Context().Done():
			case <-time.After(20 * time.Millisecond):
			}
			writeJSON(f.t, w, api.APIResponse[[]api.Update]{OK: true, Result: []api.Update{}})
			return
		}
		writeJSON(f.t, w, api.APIResponse[[]api.Update]{OK: true, Result: []api.Update{{
			UpdateID: 41,
			Message: &api.Message{
				MessageID: 7,
				Chat:      api.Chat{ID: 99, Type: "private"},
				Text:      "/ping",
				Entities:  []api.MessageEntity{{Type: api.EntityBotCommand, Offset: 0, Length: 5}},
			},
		}}})
	case "sendMessage":
		var req api.SendMessage
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.sent = append(f.sent, req)
		f.mu.Unlock()
		f.sentCh <- struct{}{}
		writeJSON(f.t, w, api.APIResponse[api.Message]{OK: true, Result: api.Message{MessageID: 8}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newBot(t *testing.T, srvURL, extra string) (*Bot, *core.AppContext) {
	t.Helper()
	appCtx := core.NewAppContext(discardLogger(), t.TempDir())
	appCtx.RegisterService("metrics", metrics.New())

	b := &Bot{}
	if err := b.Configure(yamlNode(t, "token: "+testToken+"\napi_url: "+srvURL+"\npoll_timeout: 1\n"+extra)); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}
	if err := b.Provision(appCtx.ForModule(ModuleID)); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	return b, appCtx
}

func TestLifecycle(t *testing.T) {
	f, srv := newFakeAPI(t)
	b, appCtx := newBot(t, srv.URL, "")

	if svc, ok := appCtx.Service("bot.chain"); !ok || svc.(*dispatch.Chain) == nil {
		t.Error("bot.chain service not registered")
	}
	if svc, ok := appCtx.Service("bot.status"); !ok || svc.(*Bot) != b {
		t.Error("bot.status service not registered")
	}

	ping := command.New("ping", command.WithLogger(discardLogger()), command.WithMinInterval(time.Millisecond))
	ping.Handle("ping", func(context.Context, command.Invocation) (command.Result, error) {
		return command.Text("pong"), nil
	})
	if err := b.Register(ping); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case <-f.sentCh:
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	if err := b.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) != 1 || f.sent[0].ChatID != 99 || f.sent[0].Text != "pong" {
		t.Errorf("sent = %+v", f.sent)
	}
	if f.calls[0] != "getMe" || f.calls[1] != "deleteWebhook" {
		t.Errorf("start sequence = %v", f.calls[:2])
	}
	if got := b.Username(); got != "tgplug_bot" {
		t.Errorf("Username() = %q", got)
	}
	if st := b.PollerStatus(); st.Polling || st.Offset != 42 {
		t.Errorf("PollerStatus() = %+v, want stopped at offset 42", st)
	}
	if ps := b.Plugins(); len(ps) != 1 || ps[0].Name != "ping" {
		t.Errorf("Plugins() = %+v", ps)
	}
	if ping.Bound() {
		t.Error("plugin still bound after Stop")
	}
}

func TestStart_BadToken(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.getMeErr = true
	b, _ := newBot(t, srv.URL, "")

	err := b.Start()
	if err == nil || !strings.Contains(err.Error(), "getMe") {
		t.Fatalf("Start() = %v, want getMe error", err)
	}
	if b.Uptime() != 0 {
		t.Error("uptime set after failed start")
	}
	if err := b.Stop(t.Context()); err != nil {
		t.Errorf("Stop() after failed start: %v", err)
	}
}

func TestRegisterAfterStart(t *testing.T) {
	_, srv := newFakeAPI(t)
	b, _ := newBot(t, srv.URL, "")
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Stop(context.Background()) })

	err := b.Register(command.New("late"))
	if err == nil {
		t.Fatal("expected error registering after start")
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{Token: testToken}, ""},
		{"bad token", Config{Token: "nope"}, "token format"},
		{"bad url", Config{Token: testToken, APIURL: "ftp://x"}, "api_url"},
		{"timeout too long", Config{Token: testToken, PollTimeout: 51}, "poll_timeout must be 1-50"},
		{"negative timeout", Config{Token: testToken, PollTimeout: -1}, "poll_timeout must be 1-50"},
		{"limit too big", Config{Token: testToken, PollLimit: 101}, "poll_limit"},
		{"negative backoff", Config{Token: testToken, PollBackoff: -time.Second}, "poll_backoff"},
		{"request shorter than poll", Config{Token: testToken, PollTimeout: 30, RequestTimeout: 10 * time.Second}, "request_timeout"},
		{"breaker ratio", Config{Token: testToken, Breaker: BreakerConfig{Enabled: true, FailureRatio: 2}}, "failure_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			cfg.defaults()
			err := cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	c.defaults()
	if c.APIURL != api.DefaultBaseURL || c.PollTimeout != 30 || c.PollLimit != 10 ||
		c.PollBackoff != 5*time.Second || c.RequestTimeout != 120*time.Second {
		t.Errorf("defaults = %+v", c)
	}

	b := Config{Breaker: BreakerConfig{Enabled: true}}
	b.defaults()
	if b.Breaker.MinRequests != 5 || b.Breaker.FailureRatio != 0.6 {
		t.Errorf("breaker defaults = %+v", b.Breaker)
	}
}

func TestValidate_TokenRequired(t *testing.T) {
	t.Parallel()

	b := &Bot{}
	if err := b.Configure(yamlNode(t, "api_url: https://api.telegram.org\n")); err != nil {
		t.Fatal(err)
	}
	if err := b.Validate(); err == nil || !strings.Contains(err.Error(), "token is required") {
		t.Errorf("Validate() = %v", err)
	}
}
