// Package app provides the shared entry point of the tgplug binary.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flemzord/tgplug/internal/config"
	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/metrics"
	"github.com/flemzord/tgplug/internal/security"
	"github.com/flemzord/tgplug/internal/telemetry"
)

// Service names registered before modules are loaded.
const (
	ServiceMetrics    = "metrics"
	ServiceConfigPath = "config.path"
)

// telemetryFlushTimeout bounds the final span export on shutdown.
const telemetryFlushTimeout = 5 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.FindPath searches the standard locations.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the configured persistent data directory.
	DataDir string

	// LogOutput receives log records. Defaults to stderr.
	LogOutput io.Writer
}

// Run loads configuration, starts all modules, and blocks until ctx is
// cancelled or SIGINT/SIGTERM is received. Modules are then stopped in
// reverse start order.
func Run(ctx context.Context, params RunParams) error {
	cfgPath, err := config.FindPath(params.ConfigPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := NewLogger(cfg, out)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, params.Version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	dataDir := cfg.DataDir
	if params.DataDir != "" {
		dataDir = params.DataDir
	}

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(ServiceMetrics, metrics.New())
	appCtx.RegisterService(ServiceConfigPath, cfgPath)

	application := core.NewApp(appCtx)
	ids := cfg.ModuleIDs()
	if err := application.LoadModules(ids); err != nil {
		return err
	}

	// Plugins must be on the chain before the bot module starts it.
	if err := wirePlugins(application, logger); err != nil {
		return err
	}

	logger.Info("starting tgplug",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
		"data_dir", dataDir,
		"modules", len(ids),
	)
	if err := application.Start(); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("shutdown requested", "cause", context.Cause(sigCtx))
	application.Stop()
	logger.Info("shutdown complete")
	return nil
}

// NewLogger builds the process logger from cfg.Log, writing to out through
// a redacting handler. The bot token and cfg.Secrets are registered as
// literal secrets.
func NewLogger(cfg *config.Config, out io.Writer) (*slog.Logger, error) {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, err
	}
	format, err := cfg.Log.OutputFormat()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	switch format {
	case config.LogFormatJSON:
		inner = slog.NewJSONHandler(out, opts)
	default:
		inner = slog.NewTextHandler(out, opts)
	}

	redactor := security.NewRedactor()
	token, err := botToken(cfg)
	if err != nil {
		return nil, err
	}
	redactor.AddLiteral(token)
	for _, secret := range cfg.Secrets {
		redactor.AddLiteral(secret)
	}

	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}

// botToken reads the token of the bot module's configuration node.
func botToken(cfg *config.Config) (string, error) {
	node, ok := cfg.Modules[config.RequiredModule]
	if !ok {
		return "", nil
	}
	var bot struct {
		Token string `yaml:"token"`
	}
	if err := node.Decode(&bot); err != nil {
		return "", fmt.Errorf("config: %s: %w", config.RequiredModule, err)
	}
	return bot.Token, nil
}
