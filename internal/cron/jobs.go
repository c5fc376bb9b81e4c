package cron

import (
	"context"
	"log/slog"
	"time"
)

// SendFunc delivers text to a chat.
type SendFunc func(ctx context.Context, chatID int64, text string) error

// MessageJob posts a fixed text to a chat on its schedule.
type MessageJob struct {
	JobName string
	Spec    string
	ChatID  int64
	Text    string
	Send    SendFunc

	// Quiet, when set, suppresses ticks falling inside the window as seen
	// in Location (UTC when nil).
	Quiet    *QuietHours
	Location *time.Location
	Logger   *slog.Logger

	now func() time.Time
}

// Compile-time interface check.
var _ Job = (*MessageJob)(nil)

// Name implements Job.
func (j *MessageJob) Name() string { return j.JobName }

// Schedule implements Job.
func (j *MessageJob) Schedule() string { return j.Spec }

// Run sends the message unless the current time is quiet.
func (j *MessageJob) Run(ctx context.Context) error {
	if j.Quiet != nil {
		now := time.Now
		if j.now != nil {
			now = j.now
		}
		loc := j.Location
		if loc == nil {
			loc = time.UTC
		}
		if j.Quiet.IsQuiet(now().In(loc)) {
			if j.Logger != nil {
				j.Logger.Debug("cron: message skipped, quiet hours", "job", j.JobName)
			}
			return nil
		}
	}
	return j.Send(ctx, j.ChatID, j.Text)
}
