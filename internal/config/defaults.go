package config

// Default values for configuration options. These represent "layer 0"
// of the override chain and match the API's documented defaults, so a
// config file only needs credentials.
const (
	defaultAPIVersion        = "v1"
	defaultUploadTimeout     = "90s"
	defaultProcessingTimeout = "3m"
	defaultPollInterval      = "500ms"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			OAuthBase:         giniDefaultOAuthBase,
			RedirectURI:       giniDefaultRedirect,
			APIBase:           giniDefaultAPIBase,
			APIVersion:        defaultAPIVersion,
			UploadTimeout:     defaultUploadTimeout,
			ProcessingTimeout: defaultProcessingTimeout,
			PollInterval:      defaultPollInterval,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		TokenPath: DefaultTokenPath(),
	}
}

// Endpoint defaults, kept as plain strings so the config package does not
// need the SDK's constants at decode time.
const (
	giniDefaultOAuthBase = "https://user.gini.net"
	giniDefaultRedirect  = "http://localhost"
	giniDefaultAPIBase   = "https://api.gini.net"
)
