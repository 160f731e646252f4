package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithRequiredEnv(t *testing.T) {
	t.Setenv("GATEWAY_AUTH_TOKEN", "T")
	t.Setenv("GATEWAY_ADMIN_KEY", "K")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TunnelAddr != ":9443" || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected default addresses: %+v", cfg)
	}
	if cfg.Ban.MaxAttempts != 5 || cfg.Ban.AuthTolerance != 8 || cfg.Ban.Permanent != 15 {
		t.Fatalf("unexpected default ban thresholds: %+v", cfg.Ban)
	}
}

func TestLoad_MissingRequiredFieldsFails(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected validation error when auth_token/admin_key are unset")
	}
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	t.Setenv("GATEWAY_AUTH_TOKEN", "T")
	t.Setenv("GATEWAY_ADMIN_KEY", "K")

	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	yaml := "tunnel_addr: \":7000\"\nhttp_addr: \":7001\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TunnelAddr != ":7000" || cfg.HTTPAddr != ":7001" {
		t.Fatalf("expected file values to override defaults, got %+v", cfg)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("GATEWAY_AUTH_TOKEN", "T")
	t.Setenv("GATEWAY_ADMIN_KEY", "K")
	t.Setenv("GATEWAY_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected env override of log_level, got %q", cfg.LogLevel)
	}
}

func TestLoad_InvalidLogLevelFails(t *testing.T) {
	t.Setenv("GATEWAY_AUTH_TOKEN", "T")
	t.Setenv("GATEWAY_ADMIN_KEY", "K")
	t.Setenv("GATEWAY_LOG_LEVEL", "verbose")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected validation error for an invalid log level")
	}
}
