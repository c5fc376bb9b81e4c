package dispatch

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/tgplug/internal/metrics"
	"github.com/flemzord/tgplug/internal/telegram"
)

const tracerName = "github.com/flemzord/tgplug/internal/dispatch"

// Transport performs Bot API calls. *telegram.Client implements it.
type Transport interface {
	Send(ctx context.Context, m telegram.Method) (json.RawMessage, error)
}

type chainState int

const (
	stateNew chainState = iota
	stateStarted
	stateStopped
)

// PluginInfo describes a registered plugin.
type PluginInfo struct {
	Name     string   `json:"name"`
	Priority int      `json:"priority"`
	Commands []string `json:"commands,omitempty"`
}

// Commander is implemented by plugins that answer bot commands.
type Commander interface {
	Commands() []string
}

// Chain holds the plugins and dispatches updates to them in priority order.
// The plugin set is fixed once the chain is started.
type Chain struct {
	transport Transport
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	mu      sync.RWMutex
	plugins []Plugin
	state   chainState
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the chain logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) { c.logger = l }
}

// WithMetrics records dispatch counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Chain) { c.metrics = m }
}

// WithTracerProvider sets the provider dispatch spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Chain) { c.tracer = tp.Tracer(tracerName) }
}

// NewChain creates an empty chain sending through t.
func NewChain(t Transport, opts ...Option) *Chain {
	c := &Chain{
		transport: t,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register appends p. Ordering is applied at Start.
func (c *Chain) Register(p Plugin) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateNew {
		return ErrAlreadyStarted
	}
	c.plugins = append(c.plugins, p)
	return nil
}

// Plugins lists the registered plugins in dispatch order (registration
// order before Start).
func (c *Chain) Plugins() []PluginInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PluginInfo, len(c.plugins))
	for i, p := range c.plugins {
		out[i] = PluginInfo{Name: p.Name(), Priority: p.Priority()}
		if cmd, ok := p.(Commander); ok {
			out[i].Commands = cmd.Commands()
		}
	}
	return out
}

// Start sorts the plugins by ascending priority, keeping registration order
// among equals, then binds and starts them one after another. If a plugin
// fails to start, the ones already started are stopped again.
func (c *Chain) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateNew {
		return ErrAlreadyStarted
	}

	slices.SortStableFunc(c.plugins, func(a, b Plugin) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})

	for i, p := range c.plugins {
		p.Bind(c)
		c.logger.Info("starting plugin", "plugin", p.Name(), "priority", p.Priority())
		if err := p.StartPlugin(ctx); err != nil {
			p.Bind(nil)
			_ = c.stopPlugins(ctx, c.plugins[:i])
			return fmt.Errorf("dispatch: starting plugin %s: %w", p.Name(), err)
		}
	}

	c.state = stateStarted
	return nil
}

// Stop stops every plugin in priority order and unbinds it. All plugins are
// stopped even when some fail; the failures are joined.
func (c *Chain) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateStarted {
		return nil
	}
	c.state = stateStopped
	return c.stopPlugins(ctx, c.plugins)
}

func (c *Chain) stopPlugins(ctx context.Context, plugins []Plugin) error {
	var errs []error
	for _, p := range plugins {
		c.logger.Info("stopping plugin", "plugin", p.Name())
		if err := p.StopPlugin(ctx); err != nil {
			c.logger.Error("plugin stop failed", "plugin", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("dispatch: stopping plugin %s: %w", p.Name(), err))
		}
		p.Bind(nil)
	}
	return errors.Join(errs...)
}

// OnUpdate offers u to each plugin in order and stops at the first one that
// handles it. A plugin error ends the dispatch of u and is returned.
func (c *Chain) OnUpdate(ctx context.Context, u *telegram.Update) (bool, error) {
	c.mu.RLock()
	if c.state != stateStarted {
		c.mu.RUnlock()
		return false, ErrNotStarted
	}
	plugins := c.plugins
	c.mu.RUnlock()

	ctx, span := c.tracer.Start(ctx, "dispatch.update", trace.WithAttributes(
		attribute.Int64("update.id", u.UpdateID),
		attribute.String("update.kind", u.Kind()),
	))
	defer span.End()

	for _, p := range plugins {
		handled, err := p.OnUpdate(ctx, u)
		if err != nil {
			c.metrics.RecordDispatchError()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return false, fmt.Errorf("dispatch: plugin %s: %w", p.Name(), err)
		}
		if handled {
			c.metrics.RecordHandled(p.Name())
			span.SetAttributes(attribute.String("dispatch.handled_by", p.Name()))
			return true, nil
		}
	}

	c.metrics.RecordUnhandled()
	c.logger.Debug("update not handled", "update_id", u.UpdateID, "kind", u.Kind())
	return false, nil
}

// SendMethod forwards m to the transport. It is the Sender bound to every
// plugin.
func (c *Chain) SendMethod(ctx context.Context, m telegram.Method) (json.RawMessage, error) {
	return c.transport.Send(ctx, m)
}
