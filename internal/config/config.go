package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config represents the chat logger configuration
type Config struct {
	// Chat log storage
	Chatlog ChatlogConfig `json:"chatlog" mapstructure:"chatlog"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Event ingress gateway
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// OpenTelemetry tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Periodic status report
	Status StatusConfig `json:"status" mapstructure:"status"`
}

// ChatlogConfig controls where and how session documents are written
type ChatlogConfig struct {
	RootDir             string `json:"root_dir" mapstructure:"root_dir"`
	FallbackDestination string `json:"fallback_destination" mapstructure:"fallback_destination"`
	Pretty              bool   `json:"pretty" mapstructure:"pretty"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// GatewayConfig holds event ingress server configuration
type GatewayConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
	QueueSize    int    `json:"queue_size" mapstructure:"queue_size"`
	// RateLimit caps websocket events per client per minute. Zero disables it.
	RateLimit int `json:"rate_limit" mapstructure:"rate_limit"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// StatusConfig holds the status report schedule. An empty schedule disables it.
type StatusConfig struct {
	Schedule string `json:"schedule" mapstructure:"schedule"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Chatlog: ChatlogConfig{
			RootDir:             "chatlogs",
			FallbackDestination: "singleplayer",
			Pretty:              true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Enabled:   true,
			Host:      "127.0.0.1",
			Port:      7420,
			QueueSize: 256,
			RateLimit: 1200,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "chatlogger",
			SampleRatio: 1,
		},
		Status: StatusConfig{
			Schedule: "@every 5m",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Chatlog.RootDir) == "" {
		return fmt.Errorf("chatlog root_dir is required")
	}

	v := NewValidator()
	if errs := v.ValidateConfig(c); len(errs) > 0 {
		return errs[0]
	}

	return nil
}
