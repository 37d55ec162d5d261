// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultHookTimeout     = "5s"
	DefaultWorkspaceRoot   = "data/workspaces"
	DefaultJanitorInterval = "30s"
	DefaultEgressRPS       = 5
	DefaultEgressBurst     = 10
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Sandbox SandboxConfig `toml:"sandbox"`
	Janitor JanitorConfig `toml:"janitor"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the demo transport's listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// SandboxConfig holds bot-hook execution limits.
type SandboxConfig struct {
	HookTimeout   string `toml:"hook_timeout"`
	WorkspaceRoot string `toml:"workspace_root"`
	EgressRPS     int    `toml:"egress_rps"`
	EgressBurst   int    `toml:"egress_burst"`
}

// JanitorConfig holds the scheduled-sweep interval.
type JanitorConfig struct {
	Interval string `toml:"interval"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Sandbox: SandboxConfig{
			HookTimeout:   DefaultHookTimeout,
			WorkspaceRoot: DefaultWorkspaceRoot,
			EgressRPS:     DefaultEgressRPS,
			EgressBurst:   DefaultEgressBurst,
		},
		Janitor: JanitorConfig{
			Interval: DefaultJanitorInterval,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
