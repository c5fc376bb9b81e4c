package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/metrics"
	"github.com/flemzord/tgplug/internal/poller"
	api "github.com/flemzord/tgplug/internal/telegram"
)

// ModuleID is the configuration key of this module.
const ModuleID = "bot.telegram"

// startTimeout bounds the getMe and deleteWebhook calls made by Start.
const startTimeout = 30 * time.Second

func init() {
	core.RegisterModule(&Bot{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Bot)(nil)
	_ core.Provisioner  = (*Bot)(nil)
	_ core.Validator    = (*Bot)(nil)
	_ core.Starter      = (*Bot)(nil)
	_ core.Stopper      = (*Bot)(nil)
)

// Bot wires the Bot API client, the dispatch chain and the poller.
type Bot struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	client  *api.Client
	chain   *dispatch.Chain
	poller  *poller.Poller

	mu      sync.RWMutex
	me      *api.User
	started time.Time
}

// ModuleInfo implements core.Module.
func (b *Bot) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Bot{} },
	}
}

// Configure implements core.Configurable.
func (b *Bot) Configure(node *yaml.Node) error {
	if err := node.Decode(&b.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	b.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (b *Bot) Provision(ctx *core.AppContext) error {
	b.config.defaults()
	b.logger = ctx.Logger
	if svc, ok := ctx.Service("metrics"); ok {
		b.metrics, _ = svc.(*metrics.Metrics)
	}

	opts := []api.Option{
		api.WithTimeout(b.config.RequestTimeout),
		api.WithLogger(b.logger),
		api.WithMetrics(b.metrics),
	}
	if b.config.Breaker.Enabled {
		opts = append(opts, api.WithBreaker(b.config.breakerSettings()))
	}
	b.client = api.NewClient(b.config.Token, b.config.APIURL, opts...)

	b.chain = dispatch.NewChain(b.client,
		dispatch.WithLogger(b.logger),
		dispatch.WithMetrics(b.metrics),
	)
	b.poller = poller.New(b.client, b.chain, b.config.pollerConfig(),
		poller.WithLogger(b.logger),
		poller.WithMetrics(b.metrics),
	)

	ctx.RegisterService("bot.chain", b.chain)
	ctx.RegisterService("bot.status", b)
	return nil
}

// Validate implements core.Validator.
func (b *Bot) Validate() error {
	if b.config.Token == "" {
		return errors.New("telegram: token is required")
	}
	return b.config.validate()
}

// Register adds a plugin to the dispatch chain. It must be called before
// Start.
func (b *Bot) Register(p dispatch.Plugin) error {
	if err := b.chain.Register(p); err != nil {
		return fmt.Errorf("telegram: registering plugin %s: %w", p.Name(), err)
	}
	b.logger.Debug("plugin registered", "plugin", p.Name(), "priority", p.Priority())
	return nil
}

// Start implements core.Starter. It validates the bot token, clears any
// webhook, starts the plugins and then the polling loop.
func (b *Bot) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	me, err := b.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	b.logger.Info("telegram bot authenticated", "id", me.ID, "username", me.Username)

	if err := b.client.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("telegram: deleteWebhook failed: %w", err)
	}

	if err := b.chain.Start(ctx); err != nil {
		return err
	}
	if err := b.poller.Start(); err != nil {
		_ = b.chain.Stop(ctx)
		return fmt.Errorf("telegram: starting poller: %w", err)
	}

	b.mu.Lock()
	b.me = me
	b.started = time.Now()
	b.mu.Unlock()

	b.logger.Info("telegram polling started",
		"timeout", b.config.PollTimeout,
		"limit", b.config.PollLimit,
		"plugins", len(b.chain.Plugins()),
	)
	return nil
}

// Stop implements core.Stopper. The poller is drained before the plugins
// are stopped, so no update reaches a stopped plugin.
func (b *Bot) Stop(ctx context.Context) error {
	b.logger.Info("telegram bot stopping")
	var errs []error
	if b.poller != nil {
		if err := b.poller.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telegram: stopping poller: %w", err))
		}
	}
	if b.chain != nil {
		errs = append(errs, b.chain.Stop(ctx))
	}
	return errors.Join(errs...)
}
