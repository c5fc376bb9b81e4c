// Package command provides a dispatch plugin that answers bot commands.
//
// Handlers are registered per command token; the plugin parses the first
// command of each message, calls the matching handler, and sends the
// result. A failing handler never escapes the plugin: the error is logged
// and reported back in the chat.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/telegram"
)

// HandlerFunc answers one command.
type HandlerFunc func(ctx context.Context, inv Invocation) (Result, error)

// InlineHandler answers inline queries. It reports whether it handled q.
type InlineHandler func(ctx context.Context, q *telegram.InlineQuery) (bool, error)

// CallbackHandler answers callback queries. It reports whether it handled q.
type CallbackHandler func(ctx context.Context, q *telegram.CallbackQuery) (bool, error)

// Plugin is a dispatch.Plugin driven by a command table.
type Plugin struct {
	*dispatch.Base

	logger     *slog.Logger
	handlers   map[string]HandlerFunc
	unknown    HandlerFunc
	onInline   InlineHandler
	onCallback CallbackHandler
	throttle   *throttle
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithPriority sets the plugin priority.
func WithPriority(p int) Option {
	return func(pl *Plugin) { pl.SetPriority(p) }
}

// WithLogger sets the plugin logger.
func WithLogger(l *slog.Logger) Option {
	return func(pl *Plugin) { pl.logger = l }
}

// WithMinInterval changes the minimum gap between two sends.
func WithMinInterval(d time.Duration) Option {
	return func(pl *Plugin) { pl.throttle = newThrottle(d) }
}

// WithUnknownHandler replaces the reply to unregistered commands.
func WithUnknownHandler(fn HandlerFunc) Option {
	return func(pl *Plugin) { pl.unknown = fn }
}

// WithInlineHandler sets the inline query handler.
func WithInlineHandler(fn InlineHandler) Option {
	return func(pl *Plugin) { pl.onInline = fn }
}

// WithCallbackHandler sets the callback query handler.
func WithCallbackHandler(fn CallbackHandler) Option {
	return func(pl *Plugin) { pl.onCallback = fn }
}

// New creates a command plugin called name with the default priority.
func New(name string, opts ...Option) *Plugin {
	p := &Plugin{
		Base:     dispatch.NewBase(name, dispatch.DefaultPriority),
		logger:   slog.Default(),
		handlers: make(map[string]HandlerFunc),
		unknown:  unknownCommand,
		throttle: newThrottle(DefaultMinInterval),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle registers fn for /cmd. Registering the same command twice replaces
// the earlier handler. Handle must not be called once the plugin is started.
func (p *Plugin) Handle(cmd string, fn HandlerFunc) {
	p.handlers[cmd] = fn
}

// Commands returns the registered command tokens, sorted.
func (p *Plugin) Commands() []string {
	cmds := make([]string, 0, len(p.handlers))
	for cmd := range p.handlers {
		cmds = append(cmds, cmd)
	}
	slices.Sort(cmds)
	return cmds
}

// SendMethod sends m through the bound chain, waiting first so that two
// sends of this plugin are never closer than the minimum interval.
func (p *Plugin) SendMethod(ctx context.Context, m telegram.Method) (json.RawMessage, error) {
	if !p.Bound() {
		return nil, dispatch.ErrUnbound
	}
	if err := p.throttle.wait(ctx); err != nil {
		return nil, err
	}
	return p.Base.SendMethod(ctx, m)
}

// SendMessage sends text to chatID as Markdown without link previews.
// Text over the Bot API length limit goes out as several messages, split
// at line boundaries; the result of the last one is returned.
func (p *Plugin) SendMessage(ctx context.Context, chatID int64, text string) (json.RawMessage, error) {
	var res json.RawMessage
	for _, chunk := range telegram.SplitText(text, telegram.MaxMessageLength) {
		var err error
		res, err = p.SendMethod(ctx, telegram.SendMessage{
			ChatID:                chatID,
			Text:                  chunk,
			ParseMode:             telegram.ParseModeMarkdown,
			DisableWebPagePreview: true,
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// OnUpdate routes messages to OnMessage and queries to the inline and
// callback handlers. Other updates are not handled.
func (p *Plugin) OnUpdate(ctx context.Context, u *telegram.Update) (bool, error) {
	switch {
	case u.Message != nil:
		return p.OnMessage(ctx, u.Message)
	case u.InlineQuery != nil:
		if p.onInline == nil {
			return false, nil
		}
		return p.onInline(ctx, u.InlineQuery)
	case u.CallbackQuery != nil:
		if p.onCallback == nil {
			return false, nil
		}
		return p.onCallback(ctx, u.CallbackQuery)
	}
	return false, nil
}

// OnMessage runs the command in msg, if any, and sends its result.
func (p *Plugin) OnMessage(ctx context.Context, msg *telegram.Message) (bool, error) {
	if len(msg.Entities) == 0 {
		return false, nil
	}
	inv, ok := Parse(msg)
	if !ok {
		return false, nil
	}

	res, err := p.invoke(ctx, inv)
	if err != nil {
		p.logger.Error("command failed",
			"command", inv.Command,
			"args", inv.Args,
			"error", err,
		)
		res = Text(fmt.Sprintf("ERROR: [%s] (see log file for details)", telegram.EscapeMarkdown(err.Error())))
	}

	switch {
	case res.text != "":
		if _, err := p.SendMessage(ctx, msg.Chat.ID, res.text); err != nil {
			return true, fmt.Errorf("command: reply to /%s: %w", inv.Command, err)
		}
		return true, nil
	case res.method != nil:
		if _, err := p.SendMethod(ctx, res.method); err != nil {
			return true, fmt.Errorf("command: /%s: %w", inv.Command, err)
		}
		return true, nil
	}
	return false, nil
}

// OnCommand looks up and runs the handler for inv.
func (p *Plugin) OnCommand(ctx context.Context, inv Invocation) (Result, error) {
	fn, ok := p.handlers[inv.Command]
	if !ok {
		fn = p.unknown
	}
	return fn(ctx, inv)
}

func (p *Plugin) invoke(ctx context.Context, inv Invocation) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("command panicked",
				"command", inv.Command,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res, err = Result{}, fmt.Errorf("panic: %v", r)
		}
	}()
	return p.OnCommand(ctx, inv)
}

func unknownCommand(_ context.Context, inv Invocation) (Result, error) {
	return Text("Unknown command: /" + telegram.EscapeMarkdown(inv.Command)), nil
}

// PassUnknown is an unknown-command handler that leaves the update to
// later plugins in the chain.
func PassUnknown(context.Context, Invocation) (Result, error) { return None(), nil }
