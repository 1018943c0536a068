// Package config loads the statedb-cli settings.
//
// Sources, lowest precedence first: built-in defaults, a TOML file, then the
// STATEDB_ADDR environment variable. Command-line flags are applied on top by
// the CLI.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pior/statedb/wire"
	"go.uber.org/fx"
)

const (
	EnvConfig = "STATEDB_CONFIG"
	EnvAddr   = "STATEDB_ADDR"
)

type Config struct {
	// Addr is host:port, or a ws:// or wss:// URL for the WebSocket transport.
	Addr           string
	DialTimeout    time.Duration
	FloatPrecision wire.Precision
	LogLevel       string
	// Wait bounds how long a command waits for the server's answer.
	Wait time.Duration
}

type fileConfig struct {
	Addr           string `toml:"addr"`
	DialTimeout    string `toml:"dial_timeout"`
	FloatPrecision string `toml:"float_precision"`
	LogLevel       string `toml:"log_level"`
	Wait           string `toml:"wait"`
}

func Default() *Config {
	return &Config{
		Addr:           "localhost:7070",
		DialTimeout:    5 * time.Second,
		FloatPrecision: wire.PrecisionDouble,
		LogLevel:       "warn",
		Wait:           2 * time.Second,
	}
}

// Load returns the defaults overridden by the file at path and by the
// environment. An empty path falls back to $STATEDB_CONFIG, and to no file at
// all when that is unset too.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if addr := strings.TrimSpace(os.Getenv(EnvAddr)); addr != "" {
		cfg.Addr = addr
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		c.Addr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return fmt.Errorf("parse dial_timeout: %w", err)
		}
		c.DialTimeout = d
	}

	if meta.IsDefined("float_precision") {
		p, err := ParsePrecision(raw.FloatPrecision)
		if err != nil {
			return err
		}
		c.FloatPrecision = p
	}

	if meta.IsDefined("log_level") {
		c.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("wait") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Wait))
		if err != nil {
			return fmt.Errorf("parse wait: %w", err)
		}
		c.Wait = d
	}

	return nil
}

// ParsePrecision accepts "single" and "double".
func ParsePrecision(s string) (wire.Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return wire.PrecisionSingle, nil
	case "double":
		return wire.PrecisionDouble, nil
	}
	return 0, fmt.Errorf("parse float_precision: %q is neither single nor double", s)
}

// Module provides *Config loaded from the environment.
func Module() fx.Option {
	return fx.Provide(func() (*Config, error) {
		return Load("")
	})
}
