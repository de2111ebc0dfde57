package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pagerdb.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
listen: 127.0.0.1:9000
websocket: 127.0.0.1:9001
database: s3://data/sample.db.xz
identity:
  name: Ops
  email: ops@example.com
auth:
  enabled: true
  jwt_secret: s3cret
  issuer: pagerdb
s3:
  region: eu-west-1
  endpoint: http://localhost:9000
remote_auth:
  type: token
  token: ghp_x
websocket_limits:
  allowed_origins: [https://app.example.com]
  max_message_size: 1024
  idle_timeout: 30s
local_files:
  disabled: false
  root: /srv/pagerdb
log:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Listen != "127.0.0.1:9000" || cfg.WebSocket != "127.0.0.1:9001" {
		t.Errorf("Unexpected listen addresses %s and %s", cfg.Listen, cfg.WebSocket)
	}
	if cfg.Database != "s3://data/sample.db.xz" {
		t.Errorf("Unexpected database %s", cfg.Database)
	}
	if cfg.Identity.Name != "Ops" || cfg.Identity.Email != "ops@example.com" {
		t.Errorf("Unexpected identity %+v", cfg.Identity)
	}
	if !cfg.Auth.Enabled || cfg.Auth.JWTSecret != "s3cret" || cfg.Auth.Issuer != "pagerdb" {
		t.Errorf("Unexpected auth %+v", cfg.Auth)
	}
	if cfg.S3 == nil || cfg.S3.Region != "eu-west-1" || cfg.S3.Endpoint != "http://localhost:9000" {
		t.Errorf("Unexpected s3 %+v", cfg.S3)
	}
	if cfg.RemoteAuth == nil || cfg.RemoteAuth.Token != "ghp_x" {
		t.Errorf("Unexpected remote auth %+v", cfg.RemoteAuth)
	}
	if cfg.WebSocketLimits.MaxMessageSize != 1024 || len(cfg.WebSocketLimits.AllowedOrigins) != 1 {
		t.Errorf("Unexpected websocket limits %+v", cfg.WebSocketLimits)
	}
	if cfg.WebSocketLimits.IdleTimeout != 30*time.Second {
		t.Errorf("Unexpected idle timeout %s", cfg.WebSocketLimits.IdleTimeout)
	}
	if cfg.LocalFiles.Disabled || cfg.LocalFiles.Root != "/srv/pagerdb" {
		t.Errorf("Unexpected local files %+v", cfg.LocalFiles)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Unexpected log config %+v", cfg.Log)
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "database: sample.db\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Listen != defaults.Listen || cfg.Identity != defaults.Identity {
		t.Errorf("Expected defaults to survive, got %+v", cfg)
	}
	if !cfg.LocalFiles.Disabled {
		t.Error("Expected local files to be disabled by default")
	}
	if len(cfg.WebSocketLimits.AllowedOrigins) != 0 {
		t.Errorf("Expected no allowed origins by default, got %v", cfg.WebSocketLimits.AllowedOrigins)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"listen: [", "failed to parse"},
		{"listen: ''\n", "listen address"},
		{"tls:\n  cert_file: cert.pem\n", "cert_file and key_file"},
		{"auth:\n  enabled: true\n", "jwt_secret"},
	}

	for _, tt := range tests {
		_, err := LoadConfig(writeConfig(t, tt.content))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%q: expected error containing %q, got %v", tt.content, tt.want, err)
		}
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestArgsOverrideConfig(t *testing.T) {
	args := Args{
		Config:    writeConfig(t, "listen: 127.0.0.1:9000\ndatabase: a.db\n"),
		Database:  "b.db",
		JWTSecret: "flag-secret",
		LogLevel:  "warn",
	}

	cfg, err := args.config()
	if err != nil {
		t.Fatalf("Failed to build config: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("Expected listen from file, got %s", cfg.Listen)
	}
	if cfg.Database != "b.db" {
		t.Errorf("Expected database from flag, got %s", cfg.Database)
	}
	if !cfg.Auth.Enabled || cfg.Auth.JWTSecret != "flag-secret" {
		t.Errorf("Expected auth enabled by flag, got %+v", cfg.Auth)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected log level from flag, got %s", cfg.Log.Level)
	}
}

func TestNewServerFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Snapshots = t.TempDir()
	cfg.Auth = AuthConfig{Enabled: true, JWTSecret: "x"}

	server, err := newServerFromConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to build server: %v", err)
	}
	if !server.authRequired() {
		t.Error("Expected auth to be required")
	}
	if !server.local.Disabled {
		t.Error("Expected local files to be disabled")
	}
	if !server.instance.Persistence.IsInitialized() {
		t.Error("Expected an initialized snapshot store")
	}
}
