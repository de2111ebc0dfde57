package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/db"
	"github.com/nickyhof/PagerDB/ps"
)

// Config is the server configuration file.
type Config struct {
	Listen    string `yaml:"listen"`
	WebSocket string `yaml:"websocket"` // empty disables the WebSocket listener

	// Database is opened for every new session.
	Database string `yaml:"database"`

	// Snapshots is the snapshot store directory; empty keeps it in memory.
	Snapshots string `yaml:"snapshots"`
	Remote    string `yaml:"remote"`

	Identity core.Identity `yaml:"identity"`

	TLS             TLSConfig       `yaml:"tls"`
	Auth            AuthConfig      `yaml:"auth"`
	WebSocketLimits WebSocketConfig `yaml:"websocket_limits"`
	S3              *db.S3Config    `yaml:"s3"`
	RemoteAuth      *ps.RemoteAuth  `yaml:"remote_auth"`

	// LocalFiles limits client .open and .export on server paths.
	LocalFiles db.LocalAccess `yaml:"local_files"`

	Log LogConfig `yaml:"log"`
}

type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

func (cfg TLSConfig) Enabled() bool {
	return cfg.CertFile != "" && cfg.KeyFile != ""
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Listen: ":7070",
		Identity: core.Identity{
			Name:  "PagerDB Server",
			Email: "server@pagerdb.local",
		},
		WebSocketLimits: DefaultWebSocketConfig(),
		LocalFiles:      db.LocalAccess{Disabled: true},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (cfg *Config) Validate() error {
	if cfg.Listen == "" {
		return errors.New("config: listen address is required")
	}
	if (cfg.TLS.CertFile == "") != (cfg.TLS.KeyFile == "") {
		return errors.New("config: tls needs both cert_file and key_file")
	}
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return errors.New("config: auth is enabled but jwt_secret is empty")
	}
	return nil
}
