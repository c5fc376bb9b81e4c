package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/flemzord/tgplug/internal/telegram"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTransport struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeTransport) Send(_ context.Context, m telegram.Method) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, m.MethodName())
	return json.RawMessage(`true`), nil
}

// recorder collects events from every testPlugin sharing it.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type testPlugin struct {
	*Base
	rec      *recorder
	handle   bool
	err      error
	startErr error
	stopErr  error
}

func newTestPlugin(name string, priority int, rec *recorder) *testPlugin {
	return &testPlugin{Base: NewBase(name, priority), rec: rec}
}

func (p *testPlugin) StartPlugin(context.Context) error {
	p.rec.add("start " + p.Name())
	return p.startErr
}

func (p *testPlugin) StopPlugin(context.Context) error {
	p.rec.add("stop " + p.Name())
	return p.stopErr
}

func (p *testPlugin) OnUpdate(context.Context, *telegram.Update) (bool, error) {
	p.rec.add("update " + p.Name())
	return p.handle, p.err
}

func newTestChain() *Chain {
	return NewChain(&fakeTransport{}, WithLogger(discardLogger()))
}

func TestChain_PriorityOrderFirstHandledWins(t *testing.T) {
	rec := &recorder{}
	c := newTestChain()

	late := newTestPlugin("late", 90, rec)
	first := newTestPlugin("first", 10, rec)
	middle := newTestPlugin("middle", 50, rec)
	middle.handle = true

	for _, p := range []Plugin{late, first, middle} {
		if err := c.Register(p); err != nil {
			t.Fatalf("Register() error: %v", err)
		}
	}
	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	handled, err := c.OnUpdate(t.Context(), &telegram.Update{UpdateID: 1})
	if err != nil {
		t.Fatalf("OnUpdate() error: %v", err)
	}
	if !handled {
		t.Error("expected update to be handled")
	}

	want := []string{
		"start first", "start middle", "start late",
		"update first", "update middle",
	}
	if got := rec.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestChain_ExtremePriorities(t *testing.T) {
	rec := &recorder{}
	c := newTestChain()
	for _, p := range []Plugin{
		newTestPlugin("high", math.MaxInt, rec),
		newTestPlugin("low", math.MinInt+1, rec),
		newTestPlugin("zero", 0, rec),
	} {
		if err := c.Register(p); err != nil {
			t.Fatalf("Register() error: %v", err)
		}
	}
	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if _, err := c.OnUpdate(t.Context(), &telegram.Update{UpdateID: 1}); err != nil {
		t.Fatalf("OnUpdate() error: %v", err)
	}

	want := []string{
		"start low", "start zero", "start high",
		"update low", "update zero", "update high",
	}
	if got := rec.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestChain_EqualPrioritiesKeepRegistrationOrder(t *testing.T) {
	rec := &recorder{}
	c := newTestChain()
	for _, name := range []string{"a", "b", "c"} {
		_ = c.Register(newTestPlugin(name, DefaultPriority, rec))
	}
	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	want := []PluginInfo{{Name: "a", Priority: 100}, {Name: "b", Priority: 100}, {Name: "c", Priority: 100}}
	if got := c.Plugins(); !reflect.DeepEqual(got, want) {
		t.Errorf("Plugins() = %v, want %v", got, want)
	}
}

func TestChain_Unhandled(t *testing.T) {
	rec := &recorder{}
	c := newTestChain()
	_ = c.Register(newTestPlugin("a", 1, rec))
	_ = c.Register(newTestPlugin("b", 2, rec))
	_ = c.Start(t.Context())

	handled, err := c.OnUpdate(t.Context(), &telegram.Update{UpdateID: 1})
	if err != nil || handled {
		t.Errorf("OnUpdate() = %v, %v; want false, nil", handled, err)
	}
}

func TestChain_PluginErrorAbortsDispatch(t *testing.T) {
	rec := &recorder{}
	c := newTestChain()

	boom := errors.New("boom")
	failing := newTestPlugin("failing", 1, rec)
	failing.err = boom
	_ = c.Register(failing)
	_ = c.Register(newTestPlugin("after", 2, rec))
	_ = c.Start(t.Context())

	_, err := c.OnUpdate(t.Context(), &telegram.Update{UpdateID: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("OnUpdate() error = %v, want boom", err)
	}
	for _, e := range rec.get() {
		if e == "update after" {
			t.Error("plugin after the failing one should not run")
		}
	}
}

func TestChain_BindAndUnbind(t *testing.T) {
	rec := &recorder{}
	transport := &fakeTransport{}
	c := NewChain(transport, WithLogger(discardLogger()))
	p := newTestPlugin("p", 1, rec)
	_ = c.Register(p)

	if _, err := p.SendMethod(t.Context(), telegram.GetMe{}); !errors.Is(err, ErrUnbound) {
		t.Errorf("SendMethod before start = %v, want ErrUnbound", err)
	}

	_ = c.Start(t.Context())
	if _, err := p.SendMethod(t.Context(), telegram.GetMe{}); err != nil {
		t.Errorf("SendMethod after start: %v", err)
	}
	if len(transport.calls) != 1 || transport.calls[0] != "getMe" {
		t.Errorf("transport calls = %v", transport.calls)
	}

	if err := c.Stop(t.Context()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if p.Bound() {
		t.Error("plugin still bound after stop")
	}
}

func TestChain_StartFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	c := newTestChain()
	ok := newTestPlugin("ok", 1, rec)
	bad := newTestPlugin("bad", 2, rec)
	bad.startErr = errors.New("nope")
	_ = c.Register(ok)
	_ = c.Register(bad)

	if err := c.Start(t.Context()); err == nil {
		t.Fatal("expected start error")
	}
	want := []string{"start ok", "start bad", "stop ok"}
	if got := rec.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if ok.Bound() || bad.Bound() {
		t.Error("plugins should be unbound after failed start")
	}
}

func TestChain_StopJoinsErrors(t *testing.T) {
	rec := &recorder{}
	c := newTestChain()
	errA, errB := errors.New("a failed"), errors.New("b failed")
	a := newTestPlugin("a", 1, rec)
	a.stopErr = errA
	b := newTestPlugin("b", 2, rec)
	b.stopErr = errB
	_ = c.Register(a)
	_ = c.Register(b)
	_ = c.Start(t.Context())

	err := c.Stop(t.Context())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Stop() error = %v, want both", err)
	}
	want := []string{"start a", "start b", "stop a", "stop b"}
	if got := rec.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestChain_States(t *testing.T) {
	c := newTestChain()

	if _, err := c.OnUpdate(t.Context(), &telegram.Update{}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("OnUpdate before start = %v, want ErrNotStarted", err)
	}
	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := c.Start(t.Context()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
	if err := c.Register(newTestPlugin("late", 1, &recorder{})); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Register after start = %v, want ErrAlreadyStarted", err)
	}
	_ = c.Stop(t.Context())
	if _, err := c.OnUpdate(t.Context(), &telegram.Update{}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("OnUpdate after stop = %v, want ErrNotStarted", err)
	}
}

func TestChain_Span(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	rec := &recorder{}
	c := NewChain(&fakeTransport{}, WithLogger(discardLogger()), WithTracerProvider(tp))
	p := newTestPlugin("handler", 1, rec)
	p.handle = true
	_ = c.Register(p)
	_ = c.Start(t.Context())

	if _, err := c.OnUpdate(t.Context(), &telegram.Update{UpdateID: 77}); err != nil {
		t.Fatalf("OnUpdate() error: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["update.id"] != "77" || attrs["dispatch.handled_by"] != "handler" {
		t.Errorf("attributes = %v", attrs)
	}
}
