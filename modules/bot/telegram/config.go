package telegram

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/flemzord/tgplug/internal/poller"
	api "github.com/flemzord/tgplug/internal/telegram"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config holds the bot.telegram module configuration.
type Config struct {
	Token          string        `yaml:"token"`
	APIURL         string        `yaml:"api_url"`
	PollTimeout    int           `yaml:"poll_timeout"`
	PollLimit      int           `yaml:"poll_limit"`
	PollBackoff    time.Duration `yaml:"poll_backoff"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedUpdates []string      `yaml:"allowed_updates"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig enables a circuit breaker around Bot API calls.
type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	MinRequests  uint32        `yaml:"min_requests"`
	FailureRatio float64       `yaml:"failure_ratio"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.APIURL == "" {
		c.APIURL = api.DefaultBaseURL
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = poller.DefaultTimeout
	}
	if c.PollLimit == 0 {
		c.PollLimit = poller.DefaultLimit
	}
	if c.PollBackoff == 0 {
		c.PollBackoff = poller.DefaultPenalty
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 120 * time.Second
	}
	if c.Breaker.Enabled {
		if c.Breaker.MaxRequests == 0 {
			c.Breaker.MaxRequests = 1
		}
		if c.Breaker.Interval == 0 {
			c.Breaker.Interval = time.Minute
		}
		if c.Breaker.Timeout == 0 {
			c.Breaker.Timeout = 30 * time.Second
		}
		if c.Breaker.MinRequests == 0 {
			c.Breaker.MinRequests = 5
		}
		if c.Breaker.FailureRatio == 0 {
			c.Breaker.FailureRatio = 0.6
		}
	}
}

// validate checks configuration field constraints beyond basic presence checks.
// It is called from Bot.Validate after defaults have been applied.
func (c *Config) validate() error {
	if c.Token != "" && !tokenPattern.MatchString(c.Token) {
		return fmt.Errorf("telegram: token format invalid (expected <bot_id>:<hash>)")
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
	}

	if c.PollTimeout < 1 || c.PollTimeout > 50 {
		return fmt.Errorf("telegram: poll_timeout must be 1-50, got %d", c.PollTimeout)
	}
	if c.PollLimit < 1 || c.PollLimit > 100 {
		return fmt.Errorf("telegram: poll_limit must be 1-100, got %d", c.PollLimit)
	}
	if c.PollBackoff < 0 {
		return fmt.Errorf("telegram: poll_backoff must not be negative, got %s", c.PollBackoff)
	}
	if c.RequestTimeout <= time.Duration(c.PollTimeout)*time.Second {
		return fmt.Errorf("telegram: request_timeout (%s) must exceed poll_timeout (%ds)", c.RequestTimeout, c.PollTimeout)
	}

	if c.Breaker.Enabled && (c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1) {
		return fmt.Errorf("telegram: breaker.failure_ratio must be in (0, 1], got %v", c.Breaker.FailureRatio)
	}
	return nil
}

func (c *Config) pollerConfig() poller.Config {
	return poller.Config{
		Timeout:        c.PollTimeout,
		Limit:          c.PollLimit,
		Penalty:        c.PollBackoff,
		AllowedUpdates: c.AllowedUpdates,
	}
}

func (c *Config) breakerSettings() api.BreakerSettings {
	return api.BreakerSettings{
		MaxRequests:  c.Breaker.MaxRequests,
		Interval:     c.Breaker.Interval,
		Timeout:      c.Breaker.Timeout,
		MinRequests:  c.Breaker.MinRequests,
		FailureRatio: c.Breaker.FailureRatio,
	}
}
