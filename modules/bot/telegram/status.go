package telegram

import (
	"time"

	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/poller"
)

// PollerStatus reports the polling loop state.
func (b *Bot) PollerStatus() poller.Status {
	return b.poller.Status()
}

// Plugins lists the registered plugins in dispatch order.
func (b *Bot) Plugins() []dispatch.PluginInfo {
	return b.chain.Plugins()
}

// Username returns the bot's username once Start has called getMe.
func (b *Bot) Username() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.me == nil {
		return ""
	}
	return b.me.Username
}

// Uptime is the time since a successful Start, or zero.
func (b *Bot) Uptime() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.started.IsZero() {
		return 0
	}
	return time.Since(b.started)
}
