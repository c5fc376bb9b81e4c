package announce

import (
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/tgplug/internal/command"
	"github.com/flemzord/tgplug/internal/cron"
)

// DefaultPriority places announce after the regular command plugins.
const DefaultPriority = 200

// JobConfig is one scheduled message.
type JobConfig struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"`
	ChatID   int64  `yaml:"chat_id"`
	Text     string `yaml:"text"`
}

// Config holds the announce plugin configuration.
type Config struct {
	Priority *int `yaml:"priority"`

	// Timezone is an IANA zone name schedules are evaluated in. Defaults
	// to UTC.
	Timezone string `yaml:"timezone"`

	// QuietHours is an "HH:MM-HH:MM" window during which jobs are skipped.
	QuietHours string `yaml:"quiet_hours"`

	MinInterval time.Duration `yaml:"min_interval"`

	Jobs []JobConfig `yaml:"jobs"`
}

func (c *Config) defaults() {
	if c.MinInterval == 0 {
		c.MinInterval = command.DefaultMinInterval
	}
}

func (c *Config) location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("announce: timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) quiet() (*cron.QuietHours, error) {
	if c.QuietHours == "" {
		return nil, nil
	}
	q, err := cron.ParseQuietHours(c.QuietHours)
	if err != nil {
		return nil, fmt.Errorf("announce: quiet_hours: %w", err)
	}
	return &q, nil
}

func (c *Config) validate() error {
	var errs []error
	if _, err := c.location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.quiet(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]struct{}, len(c.Jobs))
	for i, j := range c.Jobs {
		switch {
		case j.Name == "":
			errs = append(errs, fmt.Errorf("announce: jobs[%d]: name is required", i))
			continue
		case j.ChatID == 0:
			errs = append(errs, fmt.Errorf("announce: job %q: chat_id is required", j.Name))
		case j.Text == "":
			errs = append(errs, fmt.Errorf("announce: job %q: text is required", j.Name))
		}
		if _, dup := seen[j.Name]; dup {
			errs = append(errs, fmt.Errorf("announce: duplicate job name %q", j.Name))
		}
		seen[j.Name] = struct{}{}
		if err := cron.ParseSchedule(j.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("announce: job %q: %w", j.Name, err))
		}
	}
	return errors.Join(errs...)
}
