package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "chatlogger.json"

// EnvPrefix prefixes environment overrides, e.g. CHATLOGGER_CHATLOG_ROOT_DIR.
const EnvPrefix = "CHATLOGGER"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment.
// A missing file yields defaults with environment overrides applied.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("chatlog", cfg.Chatlog)
	v.Set("logging", cfg.Logging)
	v.Set("gateway", cfg.Gateway)
	v.Set("tracing", cfg.Tracing)
	v.Set("status", cfg.Status)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return DefaultConfigFile
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

// setDefaults registers every key so AutomaticEnv can override keys absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("chatlog.root_dir", cfg.Chatlog.RootDir)
	v.SetDefault("chatlog.fallback_destination", cfg.Chatlog.FallbackDestination)
	v.SetDefault("chatlog.pretty", cfg.Chatlog.Pretty)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)

	v.SetDefault("gateway.enabled", cfg.Gateway.Enabled)
	v.SetDefault("gateway.host", cfg.Gateway.Host)
	v.SetDefault("gateway.port", cfg.Gateway.Port)
	v.SetDefault("gateway.shared_secret", cfg.Gateway.SharedSecret)
	v.SetDefault("gateway.queue_size", cfg.Gateway.QueueSize)
	v.SetDefault("gateway.rate_limit", cfg.Gateway.RateLimit)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)

	v.SetDefault("status.schedule", cfg.Status.Schedule)
}
