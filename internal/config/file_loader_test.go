package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kdhira/loginzap/internal/loginevent"
)

func TestLoadFileYAMLAndMerge(t *testing.T) {
	path := writeTempFile(t, "config.yaml", `addr: 0.0.0.0:9000
log_file: logs/loginzap.jsonl
settings_backend: memory
webhook_timeout: 2s
timezone: UTC
nonce_lifetime: 1h
extensions: [generic, time-label]
extensions_config:
  time-label:
    label: Logged In At
labels:
  ip_address: Client IP
users:
  - id: 3
    username: carol
    email: carol@example.com
    password_hash: $2a$10$abcdefghijklmnopqrstuuS1zjw5VpnGl0e8/yTZ5HaCC6ZQ0iVF6
`)
	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	base := Config{
		Addr:            "127.0.0.1:8080",
		SettingsBackend: "file",
		SettingsPath:    "data/settings.yaml",
		WebhookTimeout:  5 * time.Second,
		NonceLifetime:   24 * time.Hour,
		Extensions:      []string{"generic"},
		Labels:          loginevent.DefaultLabels(),
	}
	merged := Merge(base, fc)
	if merged.Addr != "0.0.0.0:9000" {
		t.Fatalf("addr merge failed")
	}
	if merged.SettingsBackend != "memory" {
		t.Fatalf("backend merge failed")
	}
	if merged.WebhookTimeout != 2*time.Second || merged.NonceLifetime != time.Hour {
		t.Fatalf("duration merge failed: %s %s", merged.WebhookTimeout, merged.NonceLifetime)
	}
	if len(merged.Extensions) != 2 || merged.ExtensionsConfig["time-label"]["label"] != "Logged In At" {
		t.Fatalf("extensions merge failed: %#v %#v", merged.Extensions, merged.ExtensionsConfig)
	}
	if merged.Labels.IPAddress != "Client IP" || merged.Labels.Browser != "Browser" {
		t.Fatalf("labels merge failed: %+v", merged.Labels)
	}
	if len(merged.Users) != 1 || merged.Users[0].Username != "carol" {
		t.Fatalf("users merge failed: %+v", merged.Users)
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := writeTempFile(t, "config.json", `{"addr":"127.0.0.1:7000","extensions":["generic"],"webhook_timeout":"750ms"}`)
	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if fc.Addr != "127.0.0.1:7000" {
		t.Fatalf("addr mismatch")
	}
	if merged := Merge(Config{}, fc); merged.WebhookTimeout != 750*time.Millisecond {
		t.Fatalf("timeout mismatch: %s", merged.WebhookTimeout)
	}
}

func TestLoadFileInvalidDuration(t *testing.T) {
	path := writeTempFile(t, "config.yml", "webhook_timeout: soon\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestDetectFormat(t *testing.T) {
	if got := detectFormat("conf", []byte(`  {"addr":""}`)); got != "json" {
		t.Fatalf("expected json sniffed, got %s", got)
	}
	if got := detectFormat("conf", []byte("addr: x")); got != "yaml" {
		t.Fatalf("expected yaml fallback, got %s", got)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
