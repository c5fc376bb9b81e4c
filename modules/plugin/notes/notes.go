// Package notes provides the "plugin.notes" module: per-chat notes kept in
// SQLite, managed with /note, /notes and /forget.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgplug/internal/command"
	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/dispatch"
	"github.com/flemzord/tgplug/internal/telegram"
)

func init() {
	core.RegisterModule(&Notes{})
}

var (
	_ core.Configurable = (*Notes)(nil)
	_ core.Provisioner  = (*Notes)(nil)
	_ core.Validator    = (*Notes)(nil)
	_ dispatch.Plugin   = (*Notes)(nil)
)

// Notes is the notes command plugin.
type Notes struct {
	*command.Plugin
	config Config
	logger *slog.Logger
	store  *Store
}

// ModuleInfo implements core.Module.
func (n *Notes) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "plugin.notes",
		New: func() core.Module { return &Notes{} },
	}
}

// Configure implements core.Configurable.
func (n *Notes) Configure(node *yaml.Node) error {
	if err := node.Decode(&n.config); err != nil {
		return fmt.Errorf("notes: decode config: %w", err)
	}
	n.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (n *Notes) Provision(ctx *core.AppContext) error {
	n.config.defaults()
	n.logger = ctx.Logger
	if n.config.Path == "" {
		n.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	priority := dispatch.DefaultPriority
	if n.config.Priority != nil {
		priority = *n.config.Priority
	}
	n.Plugin = command.New("notes",
		command.WithPriority(priority),
		command.WithLogger(n.logger),
		command.WithMinInterval(n.config.MinInterval),
		command.WithUnknownHandler(command.PassUnknown),
	)
	n.Handle("note", n.cmdNote)
	n.Handle("notes", n.cmdNotes)
	n.Handle("forget", n.cmdForget)
	return nil
}

// Validate implements core.Validator.
func (n *Notes) Validate() error {
	return n.config.validate()
}

// StartPlugin opens the database.
func (n *Notes) StartPlugin(ctx context.Context) error {
	store, err := OpenStore(ctx, n.config.Path, n.config.walEnabled(), n.config.BusyTimeout)
	if err != nil {
		return err
	}
	n.store = store
	n.logger.Info("notes database opened", "path", n.config.Path, "wal", n.config.walEnabled())
	return nil
}

// StopPlugin closes the database.
func (n *Notes) StopPlugin(context.Context) error {
	if n.store == nil {
		return nil
	}
	err := n.store.Close()
	n.store = nil
	return err
}

func (n *Notes) cmdNote(ctx context.Context, inv command.Invocation) (command.Result, error) {
	text := inv.Args
	if text == "" {
		return command.Text("Usage: /note <text>"), nil
	}
	if utf8.RuneCountInString(text) > n.config.MaxLength {
		return command.Text(fmt.Sprintf("Note too long (max %d characters).", n.config.MaxLength)), nil
	}

	var userID int64
	var author string
	if from := inv.Message.From; from != nil {
		userID = from.ID
		author = from.Username
		if author == "" {
			author = from.FirstName
		}
	}

	note, err := n.store.Add(ctx, inv.Message.Chat.ID, userID, author, text)
	if err != nil {
		return command.Result{}, err
	}
	n.logger.Debug("note added", "chat_id", note.ChatID, "id", note.ID)
	return command.Text(fmt.Sprintf("Saved note `%s`.", note.ShortID())), nil
}

func (n *Notes) cmdNotes(ctx context.Context, inv command.Invocation) (command.Result, error) {
	chatID := inv.Message.Chat.ID
	notes, err := n.store.List(ctx, chatID, n.config.ListLimit)
	if err != nil {
		return command.Result{}, err
	}
	if len(notes) == 0 {
		return command.Text("No notes yet. Add one with /note <text>."), nil
	}

	var b strings.Builder
	b.WriteString("*Notes*\n")
	for _, note := range notes {
		fmt.Fprintf(&b, "`%s` %s", note.ShortID(), telegram.EscapeMarkdown(note.Content))
		if note.Author != "" {
			fmt.Fprintf(&b, " (%s)", telegram.EscapeMarkdown(note.Author))
		}
		b.WriteByte('\n')
	}
	if total, err := n.store.Count(ctx, chatID); err == nil && total > len(notes) {
		fmt.Fprintf(&b, "... and %d more", total-len(notes))
	}
	return command.Text(strings.TrimRight(b.String(), "\n")), nil
}

func (n *Notes) cmdForget(ctx context.Context, inv command.Invocation) (command.Result, error) {
	if inv.Args == "" {
		return command.Text("Usage: /forget <id>"), nil
	}
	note, err := n.store.Delete(ctx, inv.Message.Chat.ID, inv.Args)
	switch {
	case errors.Is(err, ErrNotFound):
		return command.Text(fmt.Sprintf("No note %s.", telegram.EscapeMarkdown(inv.Args))), nil
	case errors.Is(err, ErrAmbiguous):
		return command.Text("Several notes match, use a longer id."), nil
	case err != nil:
		return command.Result{}, err
	}
	return command.Text(fmt.Sprintf("Forgot note `%s`.", note.ShortID())), nil
}
