package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9090
  corsOrigins:
    - http://localhost:5173
backend:
  baseURL: http://analyzer:8001
  timeoutSeconds: 30
ai:
  pollIntervalMS: 500
  maxProbes: 10
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:5173" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Backend.BaseURL != "http://analyzer:8001" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.BackendTimeout() != 30*time.Second {
		t.Errorf("BackendTimeout() = %v, want 30s", cfg.BackendTimeout())
	}
	if cfg.PollInterval() != 500*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 500ms", cfg.PollInterval())
	}
	if cfg.AI.MaxProbes != 10 {
		t.Errorf("MaxProbes = %d, want 10", cfg.AI.MaxProbes)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
backend:
  baseURL: http://analyzer:8001
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.BackendTimeout() != 120*time.Second {
		t.Errorf("BackendTimeout() = %v, want default 120s", cfg.BackendTimeout())
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Errorf("PollInterval() = %v, want default 2s", cfg.PollInterval())
	}
	if cfg.AI.MaxProbes != 0 {
		t.Errorf("MaxProbes = %d, want 0 (retry forever)", cfg.AI.MaxProbes)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json defaults", cfg.Logging)
	}
}

func TestLoad_MissingBackendURL(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9090
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail without backend.baseURL")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail on a missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "server: [not: a: mapping")
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on broken yaml")
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default("http://analyzer:8001")
	if cfg.Backend.BaseURL != "http://analyzer:8001" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
}
