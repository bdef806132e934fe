package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/havenworlds/haven-relay/internal/platform/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "haven.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(config.LoaderOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":8000" {
		t.Errorf("expected default listen addr :8000, got %q", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected default store driver memory, got %q", cfg.Store.Driver)
	}
	if cfg.Mailbox.ExpirySeconds != 600 {
		t.Errorf("expected default expiry 600s, got %d", cfg.Mailbox.ExpirySeconds)
	}
	if cfg.GitProxy.Upstream != "https://github.com" {
		t.Errorf("expected default upstream github.com, got %q", cfg.GitProxy.Upstream)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":9100"

[logging]
level = "debug"

[store]
driver = "valkey"

[store.drivers.valkey]
addr = "valkey.internal:6379"

[mailbox]
expiry_seconds = 300

[gitproxy]
upstream = "https://git.example.com"
account = "worlds-bot"
username = "worlds-bot"
token = "tok"
`)

	cfg, err := config.Load(config.LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":9100" {
		t.Errorf("listen_addr not applied, got %q", cfg.ListenAddr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level not applied, got %q", cfg.Logging.Level)
	}
	if cfg.Store.Driver != "valkey" {
		t.Errorf("store driver not applied, got %q", cfg.Store.Driver)
	}
	if cfg.Store.Drivers["valkey"]["addr"] != "valkey.internal:6379" {
		t.Errorf("driver config not carried through, got %v", cfg.Store.Drivers)
	}
	if cfg.Mailbox.ExpirySeconds != 300 {
		t.Errorf("expiry not applied, got %d", cfg.Mailbox.ExpirySeconds)
	}
	if cfg.GitProxy.Upstream != "https://git.example.com" {
		t.Errorf("upstream not applied, got %q", cfg.GitProxy.Upstream)
	}
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `listen_addr = ":9100"`)

	listen := ":9200"
	driver := "sqlite"
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: path,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:  &listen,
			StoreDriver: &driver,
		},
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":9200" {
		t.Errorf("flag should override file, got %q", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("flag should override default, got %q", cfg.Store.Driver)
	}
}

func TestLoad_EnvCredentials(t *testing.T) {
	t.Setenv("GH_USERNAME", "env-bot")
	t.Setenv("GH_TOKEN", "env-token")
	t.Setenv("PORT", "7777")

	cfg, err := config.Load(config.LoaderOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GitProxy.Username != "env-bot" || cfg.GitProxy.Token != "env-token" {
		t.Errorf("env credentials not applied: %+v", cfg.GitProxy)
	}
	if cfg.ListenAddr != ":7777" {
		t.Errorf("PORT not applied, got %q", cfg.ListenAddr)
	}
	// Account falls back to the credential username.
	if cfg.GitProxy.Account != "env-bot" {
		t.Errorf("account should default to username, got %q", cfg.GitProxy.Account)
	}
}

func TestLoad_InvalidUpstream(t *testing.T) {
	upstream := "not a url"
	_, err := config.Load(config.LoaderOptions{
		FlagOverrides: config.FlagOverrides{GitUpstream: &upstream},
	})
	if err == nil {
		t.Fatal("expected error for invalid upstream")
	}
}

func TestLoad_InvalidExpiry(t *testing.T) {
	path := writeConfig(t, `
[mailbox]
expiry_seconds = -5
`)
	_, err := config.Load(config.LoaderOptions{ConfigPath: path})
	if err == nil || !strings.Contains(err.Error(), "expiry_seconds") {
		t.Fatalf("expected expiry validation error, got %v", err)
	}
}

func TestRedacted(t *testing.T) {
	token := "supersecret"
	cfg, err := config.Load(config.LoaderOptions{
		FlagOverrides: config.FlagOverrides{GitToken: &token},
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	red := cfg.Redacted()
	if red.GitProxy.Token == "supersecret" {
		t.Error("Redacted must mask the git token")
	}
	if cfg.GitProxy.Token != "supersecret" {
		t.Error("Redacted must not mutate the original config")
	}
}
