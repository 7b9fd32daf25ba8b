package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
target_url: https://example.com/shop
wait_seconds: 30
poll_interval: 2s
keywords:
  - datalayer
  - gtag
performance_keywords:
  - googletagmanager
browser:
  headless: true
  extra_flags:
    - proxy-server=127.0.0.1:8080
database: /tmp/events.db
`
	path := writeTempFile(t, "config.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://example.com/shop" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.WaitSeconds != 30 {
		t.Errorf("WaitSeconds = %d, want 30", cfg.WaitSeconds)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval)
	}
	if !cfg.Browser.Headless {
		t.Error("Browser.Headless = false, want true")
	}
	if cfg.DatabasePath != "/tmp/events.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	// Omitted fields keep their defaults.
	if cfg.CallTimeout != DefaultCallTimeout {
		t.Errorf("CallTimeout = %v, want default %v", cfg.CallTimeout, DefaultCallTimeout)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	content := `invalid: yaml: content: [`
	path := writeTempFile(t, "invalid.yaml", content)
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	t.Setenv(EnvDatabase, "/tmp/override.db")

	cfg, err := LoadOrDefault(context.Background(), "")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.TargetURL != DefaultTargetURL {
		t.Errorf("TargetURL = %q, want default", cfg.TargetURL)
	}
	if cfg.DatabasePath != "/tmp/override.db" {
		t.Errorf("DatabasePath = %q, want env override", cfg.DatabasePath)
	}
}

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(DefaultConfig()) error = %v", err)
	}
	if cfg.TargetURL != DefaultTargetURL {
		t.Errorf("TargetURL = %q, want %q", cfg.TargetURL, DefaultTargetURL)
	}
	if len(cfg.Keywords) == 0 {
		t.Error("default config has no keywords")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty target url", func(c *Config) { c.TargetURL = "" }},
		{"bad scheme", func(c *Config) { c.TargetURL = "ftp://example.com" }},
		{"no host", func(c *Config) { c.TargetURL = "https://" }},
		{"zero wait", func(c *Config) { c.WaitSeconds = 0 }},
		{"no keywords", func(c *Config) { c.Keywords = nil }},
		{"empty compound entry", func(c *Config) { c.CompoundKeywords = [][]string{{}} }},
		{"dashed extra flag", func(c *Config) { c.Browser.ExtraFlags = []string{"--headless"} }},
		{"webhook without url", func(c *Config) { c.Webhooks = []WebhookConfig{{Name: "x"}} }},
		{"webhook bad trigger", func(c *Config) {
			c.Webhooks = []WebhookConfig{{URL: "https://example.com/hook", Trigger: "sometimes"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}

func TestValidate_WebhookDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Webhooks = []WebhookConfig{{URL: "https://example.com/hook"}}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	wh := cfg.Webhooks[0]
	if wh.Trigger != WebhookTriggerOnEvents {
		t.Errorf("Trigger = %q, want %q", wh.Trigger, WebhookTriggerOnEvents)
	}
	if wh.Timeout != DefaultWebhookTimeout {
		t.Errorf("Timeout = %v, want %v", wh.Timeout, DefaultWebhookTimeout)
	}
}

func TestValidate_WebhookTokenExpansion(t *testing.T) {
	t.Setenv("TAGWATCH_TEST_TOKEN", "secret-123")

	cfg := DefaultConfig()
	cfg.Webhooks = []WebhookConfig{{URL: "https://example.com/hook", Token: "${TAGWATCH_TEST_TOKEN}"}}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Webhooks[0].Token != "secret-123" {
		t.Errorf("Token = %q, want expanded value", cfg.Webhooks[0].Token)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvTargetURL, "https://override.example.com/")
	t.Setenv(EnvWaitSeconds, "5")
	t.Setenv(EnvHeadless, "true")

	content := "target_url: https://file.example.com/\nwait_seconds: 60\n"
	path := writeTempFile(t, "config.yaml", content)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://override.example.com/" {
		t.Errorf("TargetURL = %q, want env override", cfg.TargetURL)
	}
	if cfg.WaitSeconds != 5 {
		t.Errorf("WaitSeconds = %d, want 5", cfg.WaitSeconds)
	}
	if !cfg.Browser.Headless {
		t.Error("Headless = false, want env override true")
	}
}
