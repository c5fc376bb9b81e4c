// Package announce provides the "plugin.announce" module, which posts
// configured messages on cron schedules and lists them with /schedules.
package announce

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgplug/internal/command"
	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/internal/cron"
	"github.com/flemzord/tgplug/internal/dispatch"
)

const nextLayout = "2006-01-02 15:04 MST"

func init() {
	core.RegisterModule(&Announce{})
}

var (
	_ core.Configurable = (*Announce)(nil)
	_ core.Provisioner  = (*Announce)(nil)
	_ core.Validator    = (*Announce)(nil)
	_ dispatch.Plugin   = (*Announce)(nil)
)

// Announce sends scheduled messages.
type Announce struct {
	*command.Plugin
	config    Config
	logger    *slog.Logger
	scheduler *cron.Scheduler
	jobs      []*cron.MessageJob
}

// ModuleInfo implements core.Module.
func (a *Announce) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "plugin.announce",
		New: func() core.Module { return &Announce{} },
	}
}

// Configure implements core.Configurable.
func (a *Announce) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return fmt.Errorf("announce: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (a *Announce) Provision(ctx *core.AppContext) error {
	a.config.defaults()
	a.logger = ctx.Logger

	priority := DefaultPriority
	if a.config.Priority != nil {
		priority = *a.config.Priority
	}
	a.Plugin = command.New("announce",
		command.WithPriority(priority),
		command.WithLogger(a.logger),
		command.WithMinInterval(a.config.MinInterval),
		command.WithUnknownHandler(command.PassUnknown),
	)
	a.Handle("schedules", a.cmdSchedules)

	loc, err := a.config.location()
	if err != nil {
		return err
	}
	quiet, err := a.config.quiet()
	if err != nil {
		return err
	}

	a.scheduler = cron.NewScheduler(a.logger, cron.WithLocation(loc))
	for _, jc := range a.config.Jobs {
		job := &cron.MessageJob{
			JobName:  jc.Name,
			Spec:     jc.Schedule,
			ChatID:   jc.ChatID,
			Text:     jc.Text,
			Send:     a.send,
			Quiet:    quiet,
			Location: loc,
			Logger:   a.logger,
		}
		if err := a.scheduler.RegisterJob(job); err != nil {
			return fmt.Errorf("announce: %w", err)
		}
		a.jobs = append(a.jobs, job)
	}
	return nil
}

// Validate implements core.Validator.
func (a *Announce) Validate() error {
	return a.config.validate()
}

// StartPlugin starts the scheduler.
func (a *Announce) StartPlugin(context.Context) error {
	return a.scheduler.Start()
}

// StopPlugin stops the scheduler, waiting for a running send until ctx ends.
func (a *Announce) StopPlugin(ctx context.Context) error {
	return a.scheduler.Stop(ctx)
}

func (a *Announce) send(ctx context.Context, chatID int64, text string) error {
	if _, err := a.SendMessage(ctx, chatID, text); err != nil {
		return fmt.Errorf("announce: chat %d: %w", chatID, err)
	}
	return nil
}

func (a *Announce) cmdSchedules(context.Context, command.Invocation) (command.Result, error) {
	entries := a.scheduler.Entries()
	if len(entries) == 0 {
		return command.Text("No scheduled messages."), nil
	}

	var b strings.Builder
	b.WriteString("*Schedules*")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n`%s` `%s`", e.Name, e.Schedule)
		if !e.Next.IsZero() {
			fmt.Fprintf(&b, " next %s", e.Next.Format(nextLayout))
		}
	}
	return command.Text(b.String()), nil
}
