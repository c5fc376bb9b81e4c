// Package dispatch routes updates through a priority-ordered chain of
// plugins until one of them handles the update.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/flemzord/tgplug/internal/telegram"
)

// DefaultPriority is the priority of plugins that do not set one.
const DefaultPriority = 100

var (
	// ErrUnbound is returned by SendMethod on a plugin that is not attached
	// to a running chain.
	ErrUnbound = errors.New("dispatch: plugin is not bound to a chain")

	// ErrAlreadyStarted is returned when a chain is started twice or a
	// plugin is registered after start.
	ErrAlreadyStarted = errors.New("dispatch: chain already started")

	// ErrNotStarted is returned by OnUpdate before Start or after Stop.
	ErrNotStarted = errors.New("dispatch: chain not started")
)

// Sender is the outgoing capability the chain hands to its plugins.
type Sender interface {
	SendMethod(ctx context.Context, m telegram.Method) (json.RawMessage, error)
}

// Plugin is one link of the dispatch chain.
//
// OnUpdate reports whether the plugin consumed the update; a consumed update
// is not offered to later plugins. Bind is called with the chain's Sender
// before StartPlugin and with nil after StopPlugin.
type Plugin interface {
	Name() string
	Priority() int
	Bind(s Sender)
	StartPlugin(ctx context.Context) error
	StopPlugin(ctx context.Context) error
	OnUpdate(ctx context.Context, u *telegram.Update) (bool, error)
}

// Base implements the bookkeeping part of Plugin. Embed a *Base and
// override OnUpdate (and the lifecycle hooks when needed).
type Base struct {
	name     string
	priority int

	mu     sync.RWMutex
	sender Sender
}

// NewBase returns a Base for a plugin called name.
func NewBase(name string, priority int) *Base {
	return &Base{name: name, priority: priority}
}

// Name returns the plugin name.
func (b *Base) Name() string { return b.name }

// Priority returns the plugin priority. Lower runs earlier.
func (b *Base) Priority() int { return b.priority }

// SetPriority changes the priority. It has no effect once the chain has
// been started.
func (b *Base) SetPriority(p int) { b.priority = p }

// Bind attaches s as the outgoing channel. A nil s unbinds.
func (b *Base) Bind(s Sender) {
	b.mu.Lock()
	b.sender = s
	b.mu.Unlock()
}

// Bound reports whether the plugin currently has a sender.
func (b *Base) Bound() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sender != nil
}

// SendMethod forwards m to the bound sender.
func (b *Base) SendMethod(ctx context.Context, m telegram.Method) (json.RawMessage, error) {
	b.mu.RLock()
	s := b.sender
	b.mu.RUnlock()
	if s == nil {
		return nil, ErrUnbound
	}
	return s.SendMethod(ctx, m)
}

// StartPlugin is a no-op.
func (b *Base) StartPlugin(context.Context) error { return nil }

// StopPlugin is a no-op.
func (b *Base) StopPlugin(context.Context) error { return nil }

// OnUpdate declines every update.
func (b *Base) OnUpdate(context.Context, *telegram.Update) (bool, error) { return false, nil }
