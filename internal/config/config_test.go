package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("HYDRO_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("HYDRO_RTDB_URL", "https://hydro.example.firebaseio.com")
	t.Setenv("HYDRO_IDENTITY_API_KEY", "key")
	t.Setenv("AUTH_JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.SensorPath != "sensor" || cfg.PumpPath != "pump_state" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Alerts.Cooldown != 5*time.Minute || cfg.HistoryRefresh != 5*time.Minute || cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	if cfg.DefaultRole != "operator" || cfg.Notify.QueueSize != 64 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC location")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("HYDRO_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("HYDRO_RTDB_URL", "")
	t.Setenv("HYDRO_IDENTITY_API_KEY", "")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); !errors.Is(err, ErrMissingValue) {
		t.Fatalf("expected ErrMissingValue, got %v", err)
	}
}

func TestLoadYAMLOverridesEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("HYDRO_ALERT_COOLDOWN", "1m")
	t.Setenv("AUTH_ROLE_OVERRIDES", "uid-1=admin, bad, uid-2=viewer")

	path := filepath.Join(t.TempDir(), "hydro.yaml")
	body := []byte(`
http_addr: ":9090"
alerts:
  cooldown: 10m
  epoch: 1743919923
  timezone: Asia/Manila
notify:
  webhook_url: https://hooks.example/alert
  markdown_title: Hydro alert
  queue_size: 8
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("HYDRO_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.Alerts.Cooldown != 10*time.Minute || cfg.Alerts.Epoch != 1743919923 {
		t.Fatalf("yaml not applied %+v", cfg)
	}
	if cfg.Notify.WebhookURL != "https://hooks.example/alert" || cfg.Notify.QueueSize != 8 || cfg.Notify.Timeout != 5*time.Second {
		t.Fatalf("unexpected notify %+v", cfg.Notify)
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("secret must come from env")
	}
	if len(cfg.RoleOverrides) != 2 || cfg.RoleOverrides["uid-1"] != "admin" {
		t.Fatalf("unexpected overrides %+v", cfg.RoleOverrides)
	}
}

func TestLoadEnvFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("HYDRO_TEST_ONLY_PUMP_PATH=relay\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("HYDRO_ENV_FILE", path)
	t.Cleanup(func() { _ = os.Unsetenv("HYDRO_TEST_ONLY_PUMP_PATH") })

	if _, err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if os.Getenv("HYDRO_TEST_ONLY_PUMP_PATH") != "relay" {
		t.Fatalf("expected .env value to be exported")
	}
}

func TestValidateBackoff(t *testing.T) {
	cfg := Config{RTDBURL: "u", IdentityAPIKey: "k", JWTSecret: "s", BackoffMin: time.Minute, BackoffMax: time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected backoff error")
	}
}
