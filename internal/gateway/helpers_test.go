package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/poller"
)

// fakeBot is a fixed BotStatus.
type fakeBot struct {
	status  poller.Status
	plugins []dispatch.PluginInfo
	uptime  time.Duration
}

func (b *fakeBot) PollerStatus() poller.Status { return b.status }
func (b *fakeBot) Plugins() []dispatch.PluginInfo { return b.plugins }
func (b *fakeBot) Username() string { return "tgplug_bot" }
func (b *fakeBot) Uptime() time.Duration { return b.uptime }

type fakeMetrics struct{}

func (fakeMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tgplug_polls_total 3\n"))
	})
}
