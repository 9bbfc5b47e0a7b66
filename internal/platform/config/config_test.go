package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RequiresServiceName(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	t.Setenv("CONFIG_FILE", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when SERVICE_NAME is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "factory")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.HTTP.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info, got %q", cfg.LogLevel)
	}
	if cfg.LogDevelopment {
		t.Fatal("expected production logging by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "songsworker")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "songsworker" || cfg.HTTP.Addr != ":9100" || cfg.LogLevel != "debug" || !cfg.LogDevelopment {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factory.yaml")
	if err := os.WriteFile(path, []byte("service_name: from-file\nhttp_addr: \":7000\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVICE_NAME", "")
	t.Setenv("HTTP_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "from-file" || cfg.HTTP.Addr != ":7000" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SERVICE_NAME", "factory")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
