package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/docproc/gini-go/internal/config"
	"github.com/docproc/gini-go/internal/tokenfile"
	"github.com/docproc/gini-go/pkg/giniapi"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.Config

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gini-go",
		Short:   "Gini document processing API client",
		Long:    "Upload documents to the Gini API, track their processing, and work with the extracted results.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		// PersistentPreRunE loads configuration before every command, so
		// subcommands can rely on resolvedCfg being set.
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newExtractionsCmd())
	cmd.AddCommand(newFeedbackCmd())
	cmd.AddCommand(newLayoutCmd())
	cmd.AddCommand(newProcessedCmd())
	cmd.AddCommand(newReportErrorCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain
// and stores the result in resolvedCfg for use by subcommands.
func loadConfig() error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
	}

	// --verbose and --quiet translate to log levels because CLI flags win
	// over the config file.
	if flagVerbose {
		cli.LogLevel = "debug"
	}

	if flagQuiet {
		cli.LogLevel = "error"
	}

	env := config.ReadEnvOverrides()

	cfg, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config.
// "auto" format picks text on a terminal and JSON otherwise, so piped
// output stays machine-readable.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo
	format := "auto"

	if resolvedCfg != nil {
		switch resolvedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = resolvedCfg.Logging.LogFormat
	}
	if format == "auto" {
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "text"
		} else {
			format = "json"
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newClient builds an API client from the resolved config, without a
// session token. Used by login; everything else goes through newSession.
func newClient(logger *slog.Logger) (*giniapi.Client, error) {
	if resolvedCfg.API.ClientID == "" || resolvedCfg.API.ClientSecret == "" {
		return nil, fmt.Errorf("API credentials missing — set api.client_id and api.client_secret in %s or export %s/%s",
			config.DefaultConfigPath(), config.EnvClientID, config.EnvClientSecret)
	}

	cc := resolvedCfg.ClientConfig()
	cc.Logger = logger

	return giniapi.New(cc)
}

// newSession builds an API client and installs the saved session token.
func newSession(logger *slog.Logger) (*giniapi.Client, error) {
	client, err := newClient(logger)
	if err != nil {
		return nil, err
	}

	tok, err := tokenfile.Load(resolvedCfg.TokenPath)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, fmt.Errorf("not logged in — run 'gini-go login' first")
	}

	client.SetToken(tok)

	return client, nil
}

// persistSession writes the session token back to disk. Refreshes mutate
// the token in place, so this keeps the saved session current.
func persistSession(client *giniapi.Client, logger *slog.Logger) {
	tok := client.Token()
	if tok == nil {
		return
	}

	if err := tokenfile.Save(resolvedCfg.TokenPath, tok); err != nil {
		logger.Warn("failed to persist session token", "error", err)
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
