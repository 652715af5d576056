// Package cmd implements the CLI commands for recodarr.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/recodarr/recodarr/internal/config"
	"github.com/recodarr/recodarr/internal/observability"
	"github.com/recodarr/recodarr/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "recodarr",
	Short:   "Media library transcoding orchestrator",
	Version: version.Short(),
	Long: `recodarr scans media libraries, queues files whose video codec does not
match their target profile, and drives HandBrakeCLI transcodes inside a
configurable rest window, pausing active work when the host gets busy.

It integrates with catalog services (Radarr, Sonarr) for library sync and
webhook-triggered imports, and can upscale low-resolution sources with
Real-ESRGAN before encoding.`,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Set PersistentPreRunE here to avoid initialization cycle
	// (initLogging references rootCmd.PersistentFlags)
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// Global flags
	// Note: These flags are NOT bound to viper. Instead, we check if they were
	// explicitly set using Changed() and only then override the config/env values.
	// This preserves the correct priority: CLI flag > env var > config > default
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/recodarr, $HOME/.recodarr)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// initLogging installs a stderr logger for early startup. The serve command
// replaces it with the file-backed log set once the storage layout is ready.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format) - only if explicitly provided
//  2. Environment variables (RECODARR_LOGGING_LEVEL, RECODARR_LOGGING_FORMAT)
//  3. Config file values (applied later by serve)
//  4. Built-in defaults (info, text)
func initLogging() error {
	level := os.Getenv("RECODARR_LOGGING_LEVEL")
	format := os.Getenv("RECODARR_LOGGING_FORMAT")

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "text"
	}

	logCfg := config.LoggingConfig{
		Level:  strings.ToLower(level),
		Format: strings.ToLower(format),
	}

	// Handle "warning" as an alias for "warn"
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)

	return nil
}

// applyLoggingFlags folds explicitly set logging flags into a loaded config
// so file-backed logging honours the same priority as the early logger.
func applyLoggingFlags(cfg *config.Config) {
	if level, ok := changedString(rootCmd.PersistentFlags(), "log-level"); ok {
		cfg.Logging.Level = strings.ToLower(level)
	}
	if format, ok := changedString(rootCmd.PersistentFlags(), "log-format"); ok {
		cfg.Logging.Format = strings.ToLower(format)
	}
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}
}

// changedString returns a string flag's value only when it was explicitly
// set, so flag defaults never clobber config or environment values.
func changedString(fs *pflag.FlagSet, name string) (string, bool) {
	if !fs.Changed(name) {
		return "", false
	}
	value, _ := fs.GetString(name)
	return value, true
}
