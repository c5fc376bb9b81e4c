// Package tap provides the "plugin.tap" module, which mirrors every update
// that reaches it to websocket subscribers. It never handles an update.
package tap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/telegram"
)

// DefaultPriority runs the tap right after the guard.
const DefaultPriority = 1

// ServiceHandler is the service name of the websocket http.Handler.
const ServiceHandler = "plugin.tap.handler"

const writeTimeout = 10 * time.Second

func init() {
	core.RegisterModule(&Tap{})
}

var (
	_ core.Configurable = (*Tap)(nil)
	_ core.Provisioner  = (*Tap)(nil)
	_ dispatch.Plugin   = (*Tap)(nil)
)

// Config holds the tap settings.
type Config struct {
	Priority       *int          `yaml:"priority"`
	Buffer         int           `yaml:"buffer"`
	MaxSubscribers int           `yaml:"max_subscribers"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	OriginPatterns []string      `yaml:"origin_patterns"`
}

func (c *Config) defaults() {
	if c.Buffer <= 0 {
		c.Buffer = 64
	}
	if c.MaxSubscribers <= 0 {
		c.MaxSubscribers = 16
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
}

// Event is the JSON frame sent for each update.
type Event struct {
	UpdateID   int64            `json:"update_id"`
	Kind       string           `json:"kind"`
	ReceivedAt time.Time        `json:"received_at"`
	Update     *telegram.Update `json:"update"`
}

// Tap publishes updates to its Hub.
type Tap struct {
	*dispatch.Base
	config Config
	hub    *Hub
	logger *slog.Logger
	now    func() time.Time
}

// ModuleInfo implements core.Module.
func (t *Tap) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "plugin.tap",
		New: func() core.Module { return &Tap{} },
	}
}

// Configure implements core.Configurable.
func (t *Tap) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("tap: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (t *Tap) Provision(ctx *core.AppContext) error {
	t.config.defaults()
	priority := DefaultPriority
	if t.config.Priority != nil {
		priority = *t.config.Priority
	}
	t.Base = dispatch.NewBase("tap", priority)
	t.logger = ctx.Logger
	t.hub = NewHub(t.config.Buffer, t.config.MaxSubscribers)
	t.now = time.Now

	ctx.RegisterService(ServiceHandler, http.HandlerFunc(t.handleWebSocket))
	return nil
}

// Hub returns the subscriber hub.
func (t *Tap) Hub() *Hub { return t.hub }

// StopPlugin disconnects all subscribers.
func (t *Tap) StopPlugin(context.Context) error {
	t.hub.Close()
	return nil
}

// OnUpdate publishes u and lets it continue down the chain.
func (t *Tap) OnUpdate(_ context.Context, u *telegram.Update) (bool, error) {
	if t.hub.Subscribers() == 0 {
		return false, nil
	}
	data, err := json.Marshal(Event{
		UpdateID:   u.UpdateID,
		Kind:       u.Kind(),
		ReceivedAt: t.now().UTC(),
		Update:     u,
	})
	if err != nil {
		t.logger.Warn("tap: encoding update", "update_id", u.UpdateID, "error", err)
		return false, nil
	}
	t.hub.Publish(data)
	return false, nil
}

// handleWebSocket streams events to one client until it disconnects or the
// hub is closed. Client messages are ignored.
func (t *Tap) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sub, ok := t.hub.subscribe()
	if !ok {
		http.Error(w, "too many subscribers", http.StatusServiceUnavailable)
		return
	}
	defer t.hub.unsubscribe(sub)

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: t.config.OriginPatterns,
	})
	if err != nil {
		t.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	ctx := conn.CloseRead(r.Context())
	t.logger.Debug("tap subscriber connected", "remote", r.RemoteAddr)

	ping := time.NewTicker(t.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sub.send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := t.write(ctx, conn, data); err != nil {
				t.logger.Debug("tap subscriber write failed", "error", err)
				return
			}
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (t *Tap) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
