// Package gateway provides the "gateway.http" module: health, metrics,
// status and the live update stream over HTTP.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/poller"
)

// Service names resolved at Start.
const (
	ServiceBot     = "bot.status"
	ServiceMetrics = "metrics"
	ServiceTap     = "plugin.tap.handler"
)

func init() {
	core.RegisterModule(&Gateway{})
}

var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// BotStatus is the view of the bot module the gateway reports on.
type BotStatus interface {
	PollerStatus() poller.Status
	Plugins() []dispatch.PluginInfo
	Username() string
	Uptime() time.Duration
}

// MetricsHandler serves metrics in an exposition format.
type MetricsHandler interface {
	Handler() http.Handler
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing
// imports it.
type Gateway struct {
	config  Config
	appCtx  *core.AppContext
	logger  *slog.Logger
	server  *http.Server
	metrics *Metrics
	limiter *rate.Limiter

	// Resolved lazily at Start() via service registry.
	bot     BotStatus
	promReg MetricsHandler
	tap     http.Handler
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = &Metrics{}
	if g.config.Auth.IsConfigured() {
		g.limiter = newAuthLimiter(g.config.Auth)
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	a := g.config.Auth
	if (a.BasicUser == "") != (a.BasicPass == "") {
		return errors.New("gateway: auth.basic_user and auth.basic_pass must be set together")
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	// Optional services; missing ones leave their routes unmounted.
	if svc, ok := g.appCtx.Service(ServiceBot); ok {
		if bot, ok := svc.(BotStatus); ok {
			g.bot = bot
		}
	}
	if svc, ok := g.appCtx.Service(ServiceMetrics); ok {
		if m, ok := svc.(MetricsHandler); ok {
			g.promReg = m
		}
	}
	if svc, ok := g.appCtx.Service(ServiceTap); ok {
		if h, ok := svc.(http.Handler); ok {
			g.tap = h
		}
	}

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
// Hijacked websocket connections are not tracked by Shutdown; the tap
// plugin closes them when the chain stops.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
