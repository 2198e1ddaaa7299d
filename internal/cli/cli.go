// Package cli formats xpdb-gen terminal output: file lines, warnings and
// errors, colored only when stdout is an interactive terminal.
package cli

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// OutputMode determines how output is formatted.
type OutputMode int

const (
	// ModeTTY enables colored output for interactive terminals.
	ModeTTY OutputMode = iota
	// ModePlain outputs plain text (pipes, CI, NO_COLOR).
	ModePlain
)

// Config holds CLI output configuration.
type Config struct {
	Mode   OutputMode
	Writer io.Writer
}

// DetectMode picks ModeTTY for a terminal unless NO_COLOR is set or TERM is
// dumb.
func DetectMode(f *os.File) OutputMode {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return ModePlain
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return ModeTTY
	}
	return ModePlain
}

// DefaultConfig returns the auto-detected configuration for stdout.
func DefaultConfig() *Config {
	return &Config{Mode: DetectMode(os.Stdout), Writer: os.Stdout}
}

// IsTTY returns true if running in interactive terminal mode.
func (c *Config) IsTTY() bool {
	return c.Mode == ModeTTY
}

var (
	defaultMu  sync.RWMutex
	defaultCfg *Config
)

// Default returns the process-wide configuration, detecting it on first use.
func Default() *Config {
	defaultMu.RLock()
	cfg := defaultCfg
	defaultMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCfg == nil {
		defaultCfg = DefaultConfig()
	}
	return defaultCfg
}

// SetDefault replaces the process-wide configuration and returns the old one.
func SetDefault(cfg *Config) *Config {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultCfg
	defaultCfg = cfg
	return prev
}

// EnableColors returns true if colors should be used.
func EnableColors() bool {
	return Default().IsTTY()
}
