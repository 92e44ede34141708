package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  path: /var/lib/missionctl
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.Name != "missionctl" {
		t.Fatalf("Name: %q", cfg.Service.Name)
	}
	if cfg.Service.TickInterval != 60*time.Second {
		t.Fatalf("TickInterval: %v", cfg.Service.TickInterval)
	}
	if cfg.Service.RetryAfter != 30*time.Minute {
		t.Fatalf("RetryAfter: %v", cfg.Service.RetryAfter)
	}
	if cfg.Service.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts: %d", cfg.Service.MaxAttempts)
	}
	if cfg.Service.StuckAfter != 2*time.Hour {
		t.Fatalf("StuckAfter: %v", cfg.Service.StuckAfter)
	}
	if cfg.Store.Path != "/var/lib/missionctl" {
		t.Fatalf("Store.Path: %q", cfg.Store.Path)
	}
	if cfg.AgentCLI.Bin != "openclaw" {
		t.Fatalf("AgentCLI.Bin: %q", cfg.AgentCLI.Bin)
	}
	if !cfg.Service.OrchestratorEnabled {
		t.Fatal("OrchestratorEnabled should default to true")
	}
	if cfg.Service.AutoDispatch {
		t.Fatal("AutoDispatch should default to false")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
service:
  name: mission-prod
  log_level: debug
  orchestrator_enabled: false
  auto_dispatch: true
  tick_interval: 15s
  retry_after: 10m
  max_dispatch_attempts: 5
  stuck_after: 1h
store:
  path: ./data
gateway:
  url: ws://127.0.0.1:9400
  token: secret
  timeout: 5s
api:
  enabled: true
  listen: 127.0.0.1:8080
  cors_origins:
    - http://localhost:5173
  auth:
    api_key: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.Name != "mission-prod" || cfg.Service.TickInterval != 15*time.Second {
		t.Fatalf("service overrides not applied: %#v", cfg.Service)
	}
	if cfg.Service.MaxAttempts != 5 || cfg.Service.StuckAfter != time.Hour {
		t.Fatalf("service overrides not applied: %#v", cfg.Service)
	}
	if cfg.Gateway.URL != "ws://127.0.0.1:9400" || cfg.Gateway.Timeout != 5*time.Second {
		t.Fatalf("gateway overrides not applied: %#v", cfg.Gateway)
	}
	if cfg.Service.OrchestratorEnabled {
		t.Fatal("orchestrator_enabled: false not applied")
	}
	if !cfg.Service.AutoDispatch {
		t.Fatal("auto_dispatch: true not applied")
	}
	if len(cfg.API.CORSOrigins) != 1 || cfg.API.CORSOrigins[0] != "http://localhost:5173" {
		t.Fatalf("cors_origins: %v", cfg.API.CORSOrigins)
	}
}

func TestLoadResolvesDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store:\n  path: ./data\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir): %v", err)
	}
	if cfg.Store.Path != "./data" {
		t.Fatalf("Store.Path: %q", cfg.Store.Path)
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without config.yaml")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadInterpolatesEnvVars(t *testing.T) {
	t.Setenv("MISSIONCTL_TEST_TOKEN", "tok-from-env")
	path := writeConfig(t, `
store:
  path: ./data
gateway:
  url: ws://127.0.0.1:9400
  token: ${MISSIONCTL_TEST_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Token != "tok-from-env" {
		t.Fatalf("Token: %q", cfg.Gateway.Token)
	}
}

func TestLoadUnsetEnvVarBecomesEmpty(t *testing.T) {
	path := writeConfig(t, `
store:
  path: ./data
gateway:
  url: ws://127.0.0.1:9400
  token: ${MISSIONCTL_DEFINITELY_UNSET_VAR}
`)

	// Empty token with a url set fails validation, which is precisely the
	// point: a missing env var must not silently pass.
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "gateway.token is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty service name",
			yaml:    "service:\n  name: \"\"\nstore:\n  path: ./data\n",
			wantErr: "service.name is required",
		},
		{
			name:    "negative tick interval",
			yaml:    "service:\n  tick_interval: -5s\nstore:\n  path: ./data\n",
			wantErr: "tick_interval must be positive",
		},
		{
			name:    "negative max attempts",
			yaml:    "service:\n  max_dispatch_attempts: -1\nstore:\n  path: ./data\n",
			wantErr: "max_dispatch_attempts must be positive",
		},
		{
			name:    "empty store path",
			yaml:    "store:\n  path: \"\"\n",
			wantErr: "store.path is required",
		},
		{
			name:    "api enabled without auth",
			yaml:    "store:\n  path: ./data\napi:\n  enabled: true\n  listen: 127.0.0.1:8080\n",
			wantErr: "api.auth requires",
		},
		{
			name:    "api enabled without listen",
			yaml:    "store:\n  path: ./data\napi:\n  enabled: true\n  listen: \"\"\n  auth:\n    api_key: k\n",
			wantErr: "api.listen is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("want error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "service: [not: a: map\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
