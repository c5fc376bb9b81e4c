package notes

import (
	"fmt"
	"time"

	"github.com/flemzord/tgplug/internal/command"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "notes.db"
	defaultMaxLength   = 1000
	defaultListLimit   = 20
)

// Config holds the notes plugin configuration.
type Config struct {
	Priority *int `yaml:"priority"`

	// Path is the database file path. Defaults to {DataDir}/notes.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// MaxLength caps the size of one note, in characters.
	MaxLength int `yaml:"max_length"`

	// ListLimit is the number of notes /notes shows.
	ListLimit int `yaml:"list_limit"`

	// MinInterval spaces out the plugin's replies.
	MinInterval time.Duration `yaml:"min_interval"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.MaxLength == 0 {
		c.MaxLength = defaultMaxLength
	}
	if c.ListLimit == 0 {
		c.ListLimit = defaultListLimit
	}
	if c.MinInterval == 0 {
		c.MinInterval = command.DefaultMinInterval
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("notes: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	if c.MaxLength < 1 || c.MaxLength > 4000 {
		return fmt.Errorf("notes: max_length must be 1-4000, got %d", c.MaxLength)
	}
	if c.ListLimit < 1 || c.ListLimit > 100 {
		return fmt.Errorf("notes: list_limit must be 1-100, got %d", c.ListLimit)
	}
	return nil
}
