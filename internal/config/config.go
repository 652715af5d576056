// Package config provides configuration management for recodarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8484
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxOpenConns      = 25
	defaultMaxIdleConns      = 10
	defaultConnMaxIdleTime   = 30 * time.Minute
	defaultNiceLevel         = 10
	defaultMaxConcurrentJobs = 1
	defaultCPUThreshold      = 90.0
	defaultMemoryThreshold   = 85.0
	defaultGPUThreshold      = 90.0
	defaultSampleInterval    = 5 * time.Second
	defaultPollInterval      = 60 * time.Second
	defaultExternalTimeout   = 10 * time.Second
	defaultExternalRetries   = 3
	defaultUpscaleHeadroom   = 500 * 1024 * 1024 // 500MB
	defaultUpdateCheck       = 24 * time.Hour
	defaultLogMaxSize        = 10 * 1024 * 1024 // 10MB per log file
	defaultLogBackups        = 5
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Encoder   EncoderConfig   `mapstructure:"encoder"`
	Resources ResourcesConfig `mapstructure:"resources"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Upscale   UpscaleConfig   `mapstructure:"upscale"`
	External  ExternalConfig  `mapstructure:"external"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// PublicURL is the base URL external services use to reach this
	// instance, e.g. for webhook registration. Empty derives it from the
	// listen address.
	PublicURL string `mapstructure:"public_url"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds on-disk layout configuration.
type StorageConfig struct {
	BaseDir  string `mapstructure:"base_dir"`
	LogDir   string `mapstructure:"log_dir"`
	TempDir  string `mapstructure:"temp_dir"`
	ToolsDir string `mapstructure:"tools_dir"` // upscaler binary cache
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string   `mapstructure:"level"`  // debug, info, warn, error
	Format     string   `mapstructure:"format"` // json, text
	AddSource  bool     `mapstructure:"add_source"`
	TimeFormat string   `mapstructure:"time_format"`
	MaxSize    ByteSize `mapstructure:"max_size"` // per rotated log file
	Backups    int      `mapstructure:"backups"`
}

// EncoderConfig holds transcoder process configuration.
type EncoderConfig struct {
	BinaryPath        string        `mapstructure:"binary_path"` // HandBrakeCLI (empty = $PATH lookup)
	NiceLevel         int           `mapstructure:"nice_level"`
	MaxConcurrentJobs int           `mapstructure:"max_concurrent_jobs"`
	StopTimeout       time.Duration `mapstructure:"stop_timeout"`
	HWAccelPriority   []string      `mapstructure:"hwaccel_priority"` // nvenc, qsv, vce, videotoolbox
}

// ResourcesConfig holds throttling thresholds for the resource monitor.
// Thresholds are soft: crossing one pauses the active transcode until the
// host recovers.
type ResourcesConfig struct {
	CPUPercent     float64       `mapstructure:"cpu_percent"`
	MemoryPercent  float64       `mapstructure:"memory_percent"`
	GPUPercent     float64       `mapstructure:"gpu_percent"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
}

// WatcherConfig holds folder watcher configuration.
type WatcherConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// NotifyAssist enables inotify-triggered early checks on top of polling.
	// Polling remains authoritative so network mounts still work.
	NotifyAssist bool `mapstructure:"notify_assist"`
}

// UpscaleConfig holds upscale pre-stage configuration.
type UpscaleConfig struct {
	DiskHeadroom        ByteSize      `mapstructure:"disk_headroom"`
	FFmpegPath          string        `mapstructure:"ffmpeg_path"`  // frame extract/reassemble (empty = $PATH lookup)
	FFprobePath         string        `mapstructure:"ffprobe_path"` // empty = $PATH lookup
	UpdateCheckInterval time.Duration `mapstructure:"update_check_interval"`
}

// ExternalConfig holds catalog service client configuration.
type ExternalConfig struct {
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
}

// SecurityConfig holds process secrets.
type SecurityConfig struct {
	// SecretKey derives the AEAD key used to encrypt stored API keys.
	SecretKey string `mapstructure:"secret_key"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with RECODARR_ and use underscores for nesting.
// Example: RECODARR_SERVER_PORT=8484.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/recodarr")
		v.AddConfigPath("$HOME/.recodarr")
	}

	// Environment variable settings
	v.SetEnvPrefix("RECODARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.public_url", "")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "recodarr.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.log_dir", "logs")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.tools_dir", "tools")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.max_size", defaultLogMaxSize)
	v.SetDefault("logging.backups", defaultLogBackups)

	// Encoder defaults
	v.SetDefault("encoder.binary_path", "")
	v.SetDefault("encoder.nice_level", defaultNiceLevel)
	v.SetDefault("encoder.max_concurrent_jobs", defaultMaxConcurrentJobs)
	v.SetDefault("encoder.stop_timeout", 10*time.Second)
	v.SetDefault("encoder.hwaccel_priority", []string{"nvenc", "qsv", "vce", "videotoolbox"})

	// Resource throttling defaults
	v.SetDefault("resources.cpu_percent", defaultCPUThreshold)
	v.SetDefault("resources.memory_percent", defaultMemoryThreshold)
	v.SetDefault("resources.gpu_percent", defaultGPUThreshold)
	v.SetDefault("resources.sample_interval", defaultSampleInterval)

	// Watcher defaults
	v.SetDefault("watcher.poll_interval", defaultPollInterval)
	v.SetDefault("watcher.notify_assist", false)

	// Upscale defaults
	v.SetDefault("upscale.disk_headroom", defaultUpscaleHeadroom)
	v.SetDefault("upscale.ffmpeg_path", "")
	v.SetDefault("upscale.ffprobe_path", "")
	v.SetDefault("upscale.update_check_interval", defaultUpdateCheck)

	// External catalog defaults
	v.SetDefault("external.http_timeout", defaultExternalTimeout)
	v.SetDefault("external.retry_attempts", defaultExternalRetries)

	// Security defaults
	v.SetDefault("security.secret_key", "")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Encoder validation
	if c.Encoder.MaxConcurrentJobs < 1 {
		return fmt.Errorf("encoder.max_concurrent_jobs must be at least 1")
	}
	if c.Encoder.NiceLevel < -20 || c.Encoder.NiceLevel > 19 {
		return fmt.Errorf("encoder.nice_level must be between -20 and 19")
	}

	// Resource threshold validation
	for name, pct := range map[string]float64{
		"resources.cpu_percent":    c.Resources.CPUPercent,
		"resources.memory_percent": c.Resources.MemoryPercent,
		"resources.gpu_percent":    c.Resources.GPUPercent,
	} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%s must be between 0 and 100", name)
		}
	}

	// Watcher validation
	if c.Watcher.PollInterval < time.Second {
		return fmt.Errorf("watcher.poll_interval must be at least 1s")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogPath returns the full path to the log directory.
func (c *StorageConfig) LogPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.LogDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.TempDir)
}

// ToolsPath returns the full path to the upscaler tools directory.
func (c *StorageConfig) ToolsPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.ToolsDir)
}
