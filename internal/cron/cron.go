// Package cron runs named jobs on 5-field cron schedules, such as the
// announcements the announce plugin posts to chats.
package cron

import "context"

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "*/5 * * * *").
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}

// ParseSchedule checks a 5-field cron expression without scheduling it.
func ParseSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}
