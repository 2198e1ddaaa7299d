package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hlop3z/xpdb/internal/alerr"
)

// DefaultConfigFile is read from the working directory when --config is not given.
const DefaultConfigFile = "xpdb.yaml"

// Config represents the xpdb.yaml configuration file.
type Config struct {
	Schema     string `yaml:"schema"`
	Dst        string `yaml:"dst"`
	Types      *bool  `yaml:"types"`
	Creates    string `yaml:"creates"`
	Migrations string `yaml:"migrations"`
}

// loadConfig reads the config file and applies env overrides.
// Precedence: CLI flags > env vars > config file > defaults. Flags are
// applied by the caller.
//
// A missing file is only an error when required is set, i.e. when the path
// was passed explicitly.
func loadConfig(path string, required bool) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to parse config file").WithFile(path)
		}
		cfg.expand()
		cfg.anchor(filepath.Dir(path))
	case errors.Is(err, fs.ErrNotExist) && !required:
		// defaults only
	default:
		return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to read config file").WithFile(path)
	}

	if v := os.Getenv("XPDB_DST"); v != "" {
		cfg.Dst = v
	}
	if v := os.Getenv("XPDB_CREATES"); v != "" {
		cfg.Creates = v
	}
	if v := os.Getenv("XPDB_MIGRATIONS"); v != "" {
		cfg.Migrations = v
	}
	return cfg, nil
}

// expand resolves ${VAR} references in string fields.
func (c *Config) expand() {
	for _, s := range []*string{&c.Schema, &c.Dst, &c.Creates, &c.Migrations} {
		*s = os.Expand(*s, os.Getenv)
	}
}

// anchor makes relative paths in the file relative to the file itself.
func (c *Config) anchor(dir string) {
	for _, p := range []*string{&c.Schema, &c.Dst} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
