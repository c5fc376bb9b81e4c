package tap

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/telegram"
)

func newTap(t *testing.T) (*Tap, *httptest.Server) {
	t.Helper()
	ctx := core.NewAppContext(slog.New(slog.NewTextHandler(io.Discard, nil)), t.TempDir())
	tp := &Tap{config: Config{MaxSubscribers: 1}}
	if err := tp.Provision(ctx); err != nil {
		t.Fatal(err)
	}
	tp.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	svc, ok := ctx.Service(ServiceHandler)
	if !ok {
		t.Fatal("handler service not registered")
	}
	srv := httptest.NewServer(svc.(http.Handler))
	t.Cleanup(srv.Close)
	return tp, srv
}

func waitSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", h.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTap_StreamsUpdates(t *testing.T) {
	tp, srv := newTap(t)

	conn, _, err := websocket.Dial(t.Context(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.CloseNow()
	waitSubscribers(t, tp.Hub(), 1)

	u := &telegram.Update{UpdateID: 77, Message: &telegram.Message{Chat: telegram.Chat{ID: 5}, Text: "hello"}}
	handled, err := tp.OnUpdate(t.Context(), u)
	if err != nil || handled {
		t.Fatalf("OnUpdate() = %v, %v; want false, nil", handled, err)
	}

	_, data, err := conn.Read(t.Context())
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.UpdateID != 77 || ev.Kind != "message" || ev.Update.Message.Text != "hello" {
		t.Errorf("event = %+v", ev)
	}
	if !ev.ReceivedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("received_at = %v", ev.ReceivedAt)
	}
}

func TestTap_MaxSubscribers(t *testing.T) {
	tp, srv := newTap(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	first, _, err := websocket.Dial(t.Context(), url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer first.CloseNow()
	waitSubscribers(t, tp.Hub(), 1)

	_, resp, err := websocket.Dial(t.Context(), url, nil)
	if err == nil {
		t.Fatal("second subscriber accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("response = %+v", resp)
	}
}

func TestTap_StopClosesSubscribers(t *testing.T) {
	tp, srv := newTap(t)

	conn, _, err := websocket.Dial(t.Context(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.CloseNow()
	waitSubscribers(t, tp.Hub(), 1)

	if err := tp.StopPlugin(t.Context()); err != nil {
		t.Fatal(err)
	}
	_, _, err = conn.Read(t.Context())
	if websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Errorf("close status = %v (err %v), want going away", websocket.CloseStatus(err), err)
	}
}

func TestTap_NoSubscribers(t *testing.T) {
	tp, _ := newTap(t)
	handled, err := tp.OnUpdate(t.Context(), &telegram.Update{UpdateID: 1})
	if err != nil || handled {
		t.Errorf("OnUpdate() = %v, %v", handled, err)
	}
	if tp.Name() != "tap" || tp.Priority() != DefaultPriority {
		t.Errorf("Name/Priority = %s/%d", tp.Name(), tp.Priority())
	}
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	t.Parallel()

	h := NewHub(1, 0)
	s, ok := h.subscribe()
	if !ok {
		t.Fatal("subscribe failed")
	}
	h.Publish([]byte("a"))
	h.Publish([]byte("b"))

	if got := string(<-s.send); got != "a" {
		t.Errorf("first event = %q", got)
	}
	if h.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", h.Dropped())
	}

	h.unsubscribe(s)
	h.unsubscribe(s)
	if _, open := <-s.send; open {
		t.Error("send channel still open")
	}
}

func TestHub_ClosedRefusesSubscribers(t *testing.T) {
	t.Parallel()

	h := NewHub(1, 0)
	h.Close()
	if _, ok := h.subscribe(); ok {
		t.Error("closed hub accepted a subscriber")
	}
}
