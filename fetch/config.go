// Package fetch retrieves pages from targets. Each target gets its own
// adaptive delay, request limiter and user-agent rotation, so a blocked site
// slows down only itself.
package fetch

import "time"

// Config configures the Fetcher.
type Config struct {
	// Timeout bounds a single request attempt.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the starting spacing between requests to one target.
	BaseDelay time.Duration `yaml:"base_delay"`
	MinDelay  time.Duration `yaml:"min_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
	// BackoffFactor scales the delay up on a blocking signal and back down
	// after RecoverAfter consecutive successes.
	BackoffFactor float64 `yaml:"backoff_factor"`
	RecoverAfter  int     `yaml:"recover_after"`

	// InitialBackoff and MaxBackoff bound the wait between retries of the
	// same page.
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	RespectRetryAfter bool          `yaml:"respect_retry_after"`

	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	UserAgents   []string `yaml:"user_agents"`

	// BrowserURL is the DevTools websocket of an external Chrome. Empty
	// launches a local headless browser on first use.
	BrowserURL string `yaml:"browser_url"`
}

// DefaultUserAgents is the identity pool used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// DefaultConfig returns the default fetch configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:           20 * time.Second,
		MaxRetries:        3,
		BaseDelay:         2 * time.Second,
		MinDelay:          1 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffFactor:     2.0,
		RecoverAfter:      3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		RespectRetryAfter: true,
		MaxBodyBytes:      10 << 20,
		UserAgents:        DefaultUserAgents,
	}
}

// normalize fills zero values with defaults and fixes inverted bounds.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MinDelay <= 0 {
		c.MinDelay = d.MinDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	c.BaseDelay = clamp(c.BaseDelay, c.MinDelay, c.MaxDelay)
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = d.BackoffFactor
	}
	if c.RecoverAfter <= 0 {
		c.RecoverAfter = d.RecoverAfter
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = DefaultUserAgents
	}
	return c
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
