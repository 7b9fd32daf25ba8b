package config

import (
	"os"
	"strconv"
	"time"

	"github.com/tagwatch/tagwatch/pkg/classifier"
)

// Default values for configuration.
const (
	DefaultTargetURL         = "https://tagmanager.google.com/"
	DefaultWaitSeconds       = 10
	DefaultPollInterval      = 1 * time.Second
	DefaultCallTimeout       = 5 * time.Second
	DefaultNavigationTimeout = 30 * time.Second
	DefaultWebhookTimeout    = 10 * time.Second
)

// Environment variable names.
const (
	EnvTargetURL   = "TAGWATCH_TARGET_URL"
	EnvWaitSeconds = "TAGWATCH_WAIT_SECONDS"
	EnvHeadless    = "TAGWATCH_HEADLESS"
	EnvDatabase    = "TAGWATCH_DATABASE"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TargetURL:           DefaultTargetURL,
		WaitSeconds:         DefaultWaitSeconds,
		PollInterval:        DefaultPollInterval,
		CallTimeout:         DefaultCallTimeout,
		Keywords:            classifier.DefaultKeywords(),
		CompoundKeywords:    [][]string{{"event", "track"}},
		PerformanceKeywords: classifier.DefaultPerformanceKeywords(),
		Browser: BrowserConfig{
			NavigationTimeout: DefaultNavigationTimeout,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if url := os.Getenv(EnvTargetURL); url != "" {
		c.TargetURL = url
	}
	if secs := os.Getenv(EnvWaitSeconds); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			c.WaitSeconds = n
		}
	}
	if headless := os.Getenv(EnvHeadless); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			c.Browser.Headless = b
		}
	}
	if db := os.Getenv(EnvDatabase); db != "" {
		c.DatabasePath = db
	}
}
