package app

import (
	"fmt"
	"log/slog"

	"github.com/flemzord/tgplug/internal/config"
	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/dispatch"
)

// pluginNamespace holds the modules that join the dispatch chain.
const pluginNamespace = "plugin"

// Registrar accepts plugins before start. The bot module implements it.
type Registrar interface {
	Register(p dispatch.Plugin) error
}

// wirePlugins registers every loaded plugin module on the bot module's
// chain. Must be called after LoadModules and before Start.
func wirePlugins(app *core.App, logger *slog.Logger) error {
	mod, ok := app.Module(config.RequiredModule)
	if !ok {
		return fmt.Errorf("wiring plugins: module %s is not loaded", config.RequiredModule)
	}
	bot, ok := mod.(Registrar)
	if !ok {
		return fmt.Errorf("wiring plugins: module %s cannot register plugins", config.RequiredModule)
	}

	for _, m := range app.ModulesInNamespace(pluginNamespace) {
		id := m.ModuleInfo().ID
		p, ok := m.(dispatch.Plugin)
		if !ok {
			return fmt.Errorf("wiring plugins: module %s is not a dispatch plugin", id)
		}
		if err := bot.Register(p); err != nil {
			return fmt.Errorf("wiring plugins: registering %s: %w", id, err)
		}
		logger.Info("plugin registered", "module", id, "plugin", p.Name(), "priority", p.Priority())
	}
	return nil
}
