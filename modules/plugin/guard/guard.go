// Package guard provides the "plugin.guard" module, which consumes every
// update that does not come from an allowed user or chat so that later
// plugins never see it.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/telegram"
)

// DefaultPriority places the guard ahead of every other plugin.
const DefaultPriority = 0

func init() {
	core.RegisterModule(&Guard{})
}

var (
	_ core.Configurable = (*Guard)(nil)
	_ core.Provisioner  = (*Guard)(nil)
	_ core.Validator    = (*Guard)(nil)
	_ dispatch.Plugin   = (*Guard)(nil)
)

// Config lists who may talk to the bot.
type Config struct {
	Priority *int     `yaml:"priority"`
	Users    []string `yaml:"users"`
	Chats    []int64  `yaml:"chats"`
}

// Guard drops updates from senders outside its AllowList.
type Guard struct {
	*dispatch.Base
	config Config
	allow  *AllowList
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (g *Guard) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "plugin.guard",
		New: func() core.Module { return &Guard{} },
	}
}

// Configure implements core.Configurable.
func (g *Guard) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("guard: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (g *Guard) Provision(ctx *core.AppContext) error {
	priority := DefaultPriority
	if g.config.Priority != nil {
		priority = *g.config.Priority
	}
	g.Base = dispatch.NewBase("guard", priority)
	g.logger = ctx.Logger
	g.allow = NewAllowList(g.config.Users, g.config.Chats)
	return nil
}

// Validate implements core.Validator.
func (g *Guard) Validate() error {
	if g.allow.Empty() {
		return errors.New("guard: at least one of users or chats must be set")
	}
	return nil
}

// OnUpdate reports a disallowed update as handled, which ends its dispatch.
func (g *Guard) OnUpdate(_ context.Context, u *telegram.Update) (bool, error) {
	if g.allow.IsAllowed(u) {
		return false, nil
	}
	attrs := []any{"update_id", u.UpdateID, "kind", u.Kind()}
	if from := u.From(); from != nil {
		attrs = append(attrs, "user_id", from.ID)
	}
	if chat := u.Chat(); chat != nil {
		attrs = append(attrs, "chat_id", chat.ID)
	}
	g.logger.Debug("update dropped by guard", attrs...)
	return true, nil
}
