package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Mode != "release" || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.PingPeriod != 54*time.Second || cfg.Presence.SnapshotInterval != 30*time.Second {
		t.Fatalf("durations = %v %v", cfg.PingPeriod, cfg.Presence.SnapshotInterval)
	}
	if cfg.Signal.SendBuffer != 32 || cfg.Presence.Backpressure != "kick" {
		t.Fatalf("signal/presence = %+v %+v", cfg.Signal, cfg.Presence)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	writeConfig(t, `
port: 9000
mode: debug
storage:
  driver: sqlite
  path: /tmp/bar.db
menu:
  - name: Mojito
    price: 220
    liquor_cost: 45
    other_cost: 25
    materials: [rum, mint]
`)
	t.Setenv("BARFLOW_REDIS_ADDR", "localhost:6379")

	cfg, err := Load([]string{"--port", "9100"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("port = %d, want flag value 9100", cfg.Port)
	}
	if cfg.Mode != "debug" || cfg.Storage.Path != "/tmp/bar.db" {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q, want env value", cfg.Redis.Addr)
	}
	if len(cfg.Menu) != 1 || cfg.Menu[0].Price != 220 || len(cfg.Menu[0].Materials) != 2 {
		t.Errorf("menu = %+v", cfg.Menu)
	}
}

func TestLoadRejectsBadStorage(t *testing.T) {
	writeConfig(t, `
storage:
  driver: postgres
`)
	if _, err := Load(nil); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}

	writeConfig(t, `
storage:
  driver: oracle
`)
	if _, err := Load(nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadRejectsBadBackpressure(t *testing.T) {
	writeConfig(t, `
presence:
  backpressure: shrug
`)
	if _, err := Load(nil); err == nil {
		t.Fatal("expected error for unknown backpressure policy")
	}
}
