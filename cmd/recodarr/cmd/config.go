package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/recodarr/recodarr/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing recodarr configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows all available configuration options after merging defaults, the
config file, and environment variables. You can redirect this output to a
file to create a configuration template:

  recodarr config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml in ., ./configs, /etc/recodarr, $HOME/.recodarr)
  - Environment variables (RECODARR_SERVER_PORT, RECODARR_DATABASE_DSN, etc.)
  - Command-line flags (for some options)

Environment variables use the RECODARR_ prefix and underscores for nesting.
Example: server.port -> RECODARR_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Never print the secret itself.
	if cfg.Security.SecretKey != "" {
		cfg.Security.SecretKey = "****"
	}

	out := map[string]any{
		"server":    toMap(cfg.Server),
		"database":  toMap(cfg.Database),
		"storage":   toMap(cfg.Storage),
		"logging":   toMap(cfg.Logging),
		"encoder":   toMap(cfg.Encoder),
		"resources": toMap(cfg.Resources),
		"watcher":   toMap(cfg.Watcher),
		"upscale":   toMap(cfg.Upscale),
		"external":  toMap(cfg.External),
		"security":  toMap(cfg.Security),
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	cmd.Print(string(data))
	return nil
}

// toMap converts a config section to a map keyed by mapstructure tag,
// formatting durations and byte sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = v.String()
		case config.ByteSize:
			result[key] = v.String()
		default:
			result[key] = field.Interface()
		}
	}

	return result
}
