// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for gini-go. It supports a layered
// override chain (defaults -> config file -> environment -> CLI flags).
package config

import (
	"fmt"
	"time"

	"github.com/docproc/gini-go/pkg/giniapi"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	API       APIConfig     `toml:"api"`
	Logging   LoggingConfig `toml:"logging"`
	TokenPath string        `toml:"token_path"`
}

// APIConfig holds the API credentials and session tuning. Timeouts and
// intervals are Go duration strings ("90s", "2m").
type APIConfig struct {
	ClientID          string `toml:"client_id"`
	ClientSecret      string `toml:"client_secret"`
	OAuthBase         string `toml:"oauth_base"`
	RedirectURI       string `toml:"redirect_uri"`
	APIBase           string `toml:"api_base"`
	APIVersion        string `toml:"api_version"`
	UploadTimeout     string `toml:"upload_timeout"`
	ProcessingTimeout string `toml:"processing_timeout"`
	PollInterval      string `toml:"poll_interval"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty values mean "not specified".
type CLIOverrides struct {
	ConfigPath string // --config flag
	LogLevel   string // derived from --verbose / --quiet
}

// ClientConfig converts the resolved API section into a giniapi.Config.
// Call Validate first; duration fields are assumed parseable here.
func (c *Config) ClientConfig() giniapi.Config {
	return giniapi.Config{
		ClientID:          c.API.ClientID,
		ClientSecret:      c.API.ClientSecret,
		OAuthBase:         c.API.OAuthBase,
		OAuthRedirect:     c.API.RedirectURI,
		APIBase:           c.API.APIBase,
		APIVersion:        c.API.APIVersion,
		UploadTimeout:     duration(c.API.UploadTimeout),
		ProcessingTimeout: duration(c.API.ProcessingTimeout),
	}
}

// PollIntervalDuration returns the configured poll interval.
func (c *Config) PollIntervalDuration() time.Duration {
	return duration(c.API.PollInterval)
}

func duration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}

	return d
}

// Validate checks a Config for internally inconsistent or unparseable
// values. Credentials are not required here — commands that need them
// check separately so that e.g. "gini-go version" works unconfigured.
func Validate(cfg *Config) error {
	for name, value := range map[string]string{
		"upload_timeout":     cfg.API.UploadTimeout,
		"processing_timeout": cfg.API.ProcessingTimeout,
		"poll_interval":      cfg.API.PollInterval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	switch cfg.Logging.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (debug, info, warn, error)", cfg.Logging.LogLevel)
	}

	switch cfg.Logging.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q (auto, text, json)", cfg.Logging.LogFormat)
	}

	return nil
}
