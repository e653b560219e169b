package config

import "os"

// Environment variable names for overrides. Credentials in the
// environment support CI use without a config file on disk.
const (
	EnvConfig       = "GINI_GO_CONFIG"
	EnvClientID     = "GINI_CLIENT_ID"
	EnvClientSecret = "GINI_CLIENT_SECRET"
	EnvTokenPath    = "GINI_GO_TOKEN_PATH"
)

// EnvOverrides holds values derived from environment variables.
// These are resolved by Resolve and made available to callers.
type EnvOverrides struct {
	ConfigPath   string // GINI_GO_CONFIG: override config file path
	ClientID     string // GINI_CLIENT_ID: API client id
	ClientSecret string // GINI_CLIENT_SECRET: API client secret
	TokenPath    string // GINI_GO_TOKEN_PATH: session token file path
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		TokenPath:    os.Getenv(EnvTokenPath),
	}
}
