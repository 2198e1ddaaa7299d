package xpdb

import (
	"log/slog"
	"time"

	"github.com/hlop3z/xpdb/internal/driver"
	"github.com/hlop3z/xpdb/internal/queue"
)

// config holds the options Connect applies.
type config struct {
	logger      *slog.Logger
	registry    *driver.Registry
	backoff     queue.Backoff
	settle      time.Duration
	settleSet   bool
	destructive bool
	ignore      []string
}

// Option is a functional option for configuring Connect.
type Option func(*config)

func newConfig(opts []Option) *config {
	c := &config{backoff: queue.DefaultBackoff}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.registry == nil {
		c.registry = driver.Default()
	}
	return c
}

// WithLogger sets the logger for queue retries and migrations.
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithRegistry resolves drivers from r instead of the built-in registry.
func WithRegistry(r *driver.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithRetry sets the retry policy for transient driver errors.
// Default: queue.DefaultBackoff
func WithRetry(b queue.Backoff) Option {
	return func(c *config) {
		c.backoff = b
	}
}

// WithSettleDelay overrides the driver's pause between two operations.
func WithSettleDelay(d time.Duration) Option {
	return func(c *config) {
		c.settle = d
		c.settleSet = true
	}
}

// WithDestructive lets CreateOrMigrate drop removed columns and tables.
// Without it those changes are reported and logged but never executed.
func WithDestructive(allow bool) Option {
	return func(c *config) {
		c.destructive = allow
	}
}

// WithIgnoreTables names runtime tables the schema does not manage. They are
// never reported as removed.
func WithIgnoreTables(names ...string) Option {
	return func(c *config) {
		c.ignore = append(c.ignore, names...)
	}
}
