// Package start provides the "plugin.start" module: /start, /help, and the
// reply to commands no other plugin knows.
package start

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgplug/internal/command"
	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/dispatch"
)

const (
	// DefaultPriority runs the plugin after every other command plugin so
	// its unknown-command reply is the last resort.
	DefaultPriority = 900

	// DefaultGreeting is the /start reply.
	DefaultGreeting = "Hello, I'm *tgplug bot*."

	// ServiceChain is the service that lists registered plugins.
	ServiceChain = "bot.chain"
)

func init() {
	core.RegisterModule(&Start{})
}

var (
	_ core.Configurable = (*Start)(nil)
	_ core.Provisioner  = (*Start)(nil)
	_ dispatch.Plugin   = (*Start)(nil)
)

// Lister reports the plugins of a chain.
type Lister interface {
	Plugins() []dispatch.PluginInfo
}

// Config holds the start plugin configuration.
type Config struct {
	Priority    *int          `yaml:"priority"`
	Greeting    string        `yaml:"greeting"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// Start answers /start and /help.
type Start struct {
	*command.Plugin
	config Config
	appCtx *core.AppContext
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (s *Start) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "plugin.start",
		New: func() core.Module { return &Start{} },
	}
}

// Configure implements core.Configurable.
func (s *Start) Configure(node *yaml.Node) error {
	if err := node.Decode(&s.config); err != nil {
		return fmt.Errorf("start: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (s *Start) Provision(ctx *core.AppContext) error {
	if s.config.Greeting == "" {
		s.config.Greeting = DefaultGreeting
	}
	if s.config.MinInterval == 0 {
		s.config.MinInterval = command.DefaultMinInterval
	}
	priority := DefaultPriority
	if s.config.Priority != nil {
		priority = *s.config.Priority
	}

	s.appCtx = ctx
	s.logger = ctx.Logger
	s.Plugin = command.New("start",
		command.WithPriority(priority),
		command.WithLogger(s.logger),
		command.WithMinInterval(s.config.MinInterval),
	)
	s.Handle("start", s.cmdStart)
	s.Handle("help", s.cmdHelp)
	return nil
}

func (s *Start) cmdStart(context.Context, command.Invocation) (command.Result, error) {
	return command.Text(s.config.Greeting), nil
}

func (s *Start) cmdHelp(context.Context, command.Invocation) (command.Result, error) {
	plugins := []dispatch.PluginInfo{{Name: s.Name(), Priority: s.Priority(), Commands: s.Commands()}}
	if svc, ok := s.appCtx.Service(ServiceChain); ok {
		if l, ok := svc.(Lister); ok {
			plugins = l.Plugins()
		}
	}
	return command.Text(helpText(plugins)), nil
}

// helpText lists the commands of plugins in chain order.
func helpText(plugins []dispatch.PluginInfo) string {
	var b strings.Builder
	b.WriteString("*Commands*")
	for _, p := range plugins {
		if len(p.Commands) == 0 {
			continue
		}
		cmds := make([]string, len(p.Commands))
		for i, c := range p.Commands {
			cmds[i] = "/" + c
		}
		fmt.Fprintf(&b, "\n%s (%s)", strings.Join(cmds, ", "), p.Name)
	}
	return b.String()
}
