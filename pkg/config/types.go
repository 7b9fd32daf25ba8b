// Package config provides configuration loading and validation for tagwatch.
package config

import (
	"time"
)

// Config is the root configuration structure loaded from YAML. Every
// field has a default; a missing config file means an all-defaults run.
type Config struct {
	// TargetURL is the page to observe. Overridable by the first
	// positional CLI argument.
	TargetURL string `yaml:"target_url,omitempty"`

	// WaitSeconds is the observation window length. Overridable by the
	// second positional CLI argument.
	WaitSeconds int `yaml:"wait_seconds,omitempty"`

	// PollInterval is the log-buffer drain cadence.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	// CallTimeout bounds each individual browser call (drain, script
	// execution). Overruns are skipped, not fatal.
	CallTimeout time.Duration `yaml:"call_timeout,omitempty"`

	// Keywords are the any-of substring rules for console log lines.
	Keywords []string `yaml:"keywords,omitempty"`

	// CompoundKeywords are all-of rules; each entry matches when every
	// term in it is present.
	CompoundKeywords [][]string `yaml:"compound_keywords,omitempty"`

	// PerformanceKeywords are the any-of rules for the
	// performance/network log channel.
	PerformanceKeywords []string `yaml:"performance_keywords,omitempty"`

	// Browser holds Chrome launch settings.
	Browser BrowserConfig `yaml:"browser,omitempty"`

	// DatabasePath enables SQLite persistence of captured events when
	// set. Empty means no persistence.
	DatabasePath string `yaml:"database,omitempty"`

	// Webhooks are optional endpoints that receive the final report.
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// BrowserConfig holds Chrome launch settings.
type BrowserConfig struct {
	// Headless runs Chrome without a visible window.
	Headless bool `yaml:"headless,omitempty"`

	// ExtraFlags are additional Chrome switches in name or name=value
	// form, without the leading dashes.
	ExtraFlags []string `yaml:"extra_flags,omitempty"`

	// NavigationTimeout bounds the initial page load.
	NavigationTimeout time.Duration `yaml:"navigation_timeout,omitempty"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnEvents fires only when events were captured (default).
	WebhookTriggerOnEvents WebhookTrigger = "on_events"
	// WebhookTriggerAlways fires after every session.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for the session report.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_events" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
