package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Giulio2002/sdbx"
	"github.com/tailscale/hujson"
)

// configFileName is looked up inside (or next to, for single-file
// layouts) the environment when --config is not given.
const configFileName = "sdbx.json"

// Config holds the environment options worth persisting next to the
// data file. The file is JWCC ("JSON with commas and comments"), so
// comments and trailing commas are fine.
type Config struct {
	// MapSize pins the data file size in bytes. Zero keeps the
	// engine's default geometry.
	MapSize int64 `json:"map_size,omitempty"`

	// MaxDBs is the named database limit.
	MaxDBs int `json:"max_dbs,omitempty"`

	// MaxReaders caps concurrent reader slots.
	MaxReaders int `json:"max_readers,omitempty"`

	// NoSubdir selects the single-file layout.
	NoSubdir bool `json:"no_subdir,omitempty"`

	// ReadOnly opens the environment read-only.
	ReadOnly bool `json:"read_only,omitempty"`

	// Label is a diagnostics label for log lines.
	Label string `json:"label,omitempty"`
}

// loadConfig reads the config for the environment at envPath. An
// explicitly given path must exist; the implicit sdbx.json may be
// absent, in which case the zero config is returned.
func loadConfig(path, envPath string) (Config, error) {
	mustExist := path != ""
	if path == "" {
		path = implicitConfigPath(envPath)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return parseConfig(data, path)
}

// implicitConfigPath places sdbx.json inside a directory environment
// and next to the data file of a single-file one.
func implicitConfigPath(envPath string) string {
	if st, err := os.Stat(envPath); err == nil && st.IsDir() {
		return filepath.Join(envPath, configFileName)
	}
	return filepath.Join(filepath.Dir(envPath), configFileName)
}

func parseConfig(data []byte, path string) (Config, error) {
	standard, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(standard, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.MapSize < 0 {
		return Config{}, fmt.Errorf("config %s: map_size must not be negative", path)
	}
	if cfg.MaxDBs < 0 {
		return Config{}, fmt.Errorf("config %s: max_dbs must not be negative", path)
	}
	if cfg.MaxReaders < 0 {
		return Config{}, fmt.Errorf("config %s: max_readers must not be negative", path)
	}
	return cfg, nil
}

// envOptions translates the file values into open options.
func (c Config) envOptions() *sdbx.EnvOptions {
	opts := &sdbx.EnvOptions{
		MapSize:    c.MapSize,
		MaxDBs:     c.MaxDBs,
		MaxReaders: c.MaxReaders,
		Label:      sdbx.Label(c.Label),
	}
	if c.NoSubdir {
		opts.Flags |= sdbx.NoSubdir
	}
	if c.ReadOnly {
		opts.Flags |= sdbx.ReadOnly
	}
	return opts
}
