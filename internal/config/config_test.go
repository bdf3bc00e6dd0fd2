package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  addr: ":9090"
  read_timeout: 10s
data:
  dir: /var/lib/agentgate
ledger:
  dsn: ":memory:"
  retention_days: 7
admin:
  token: hunter2
  upgrade_url: https://example.com/upgrade
providers:
  openai_base_url: http://localhost:9999/v1
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("read_timeout = %v", cfg.Server.ReadTimeout)
	}
	// Unset fields keep defaults.
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("shutdown_timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Data.Dir != "/var/lib/agentgate" {
		t.Errorf("data dir = %q", cfg.Data.Dir)
	}
	if cfg.Ledger.DSN != ":memory:" || cfg.Ledger.RetentionDays != 7 {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Admin.Token != "hunter2" {
		t.Errorf("admin token = %q", cfg.Admin.Token)
	}
	if cfg.Providers.OpenAIBaseURL != "http://localhost:9999/v1" {
		t.Errorf("openai base url = %q", cfg.Providers.OpenAIBaseURL)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Data.Dir != "data" {
		t.Errorf("data dir = %q", cfg.Data.Dir)
	}
	if cfg.Ledger.RetentionDays != 30 {
		t.Errorf("retention = %d", cfg.Ledger.RetentionDays)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv
	t.Setenv("PORT", "3000")
	t.Setenv("DATA_DIR", "/tmp/agents")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("addr = %q, want PORT override", cfg.Server.Addr)
	}
	if cfg.Data.Dir != "/tmp/agents" {
		t.Errorf("data dir = %q, want DATA_DIR override", cfg.Data.Dir)
	}
}

func TestExpandEnv(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv
	t.Setenv("TEST_ADMIN_TOKEN", "tok-123")

	result := expandEnv([]byte("token: ${TEST_ADMIN_TOKEN}"))
	if string(result) != "token: tok-123" {
		t.Errorf("expanded = %q", result)
	}

	// Unset vars are left as-is.
	result = expandEnv([]byte("token: ${NOT_SET_ANYWHERE_XYZ}"))
	if string(result) != "token: ${NOT_SET_ANYWHERE_XYZ}" {
		t.Errorf("unset expansion = %q", result)
	}
}
