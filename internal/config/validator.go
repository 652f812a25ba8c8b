package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	if level == "" {
		return nil // Use default
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidatePort validates a TCP port. Zero asks the OS for a free port.
func (v *Validator) ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("gateway port must be between 0 and 65535, got %d", port)
	}
	return nil
}

// ValidateQueueSize validates the dispatcher queue capacity
func (v *Validator) ValidateQueueSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("gateway queue_size must be positive, got %d", size)
	}
	return nil
}

// ValidateSchedule validates a cron schedule. Descriptors like "@every 5m" are accepted.
func (v *Validator) ValidateSchedule(schedule string) error {
	if schedule == "" {
		return nil // Disabled
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid status schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateFallbackDestination rejects names that cannot become a directory
func (v *Validator) ValidateFallbackDestination(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("chatlog fallback_destination cannot be empty")
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateFallbackDestination(cfg.Chatlog.FallbackDestination); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if cfg.Gateway.Enabled {
		if strings.TrimSpace(cfg.Gateway.Host) == "" {
			errors = append(errors, fmt.Errorf("gateway host is required when the gateway is enabled"))
		}
		if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
			errors = append(errors, err)
		}
	}
	if err := v.ValidateQueueSize(cfg.Gateway.QueueSize); err != nil {
		errors = append(errors, err)
	}
	if cfg.Gateway.RateLimit < 0 {
		errors = append(errors, fmt.Errorf("gateway rate_limit cannot be negative, got %d", cfg.Gateway.RateLimit))
	}

	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.ServiceName) == "" {
		errors = append(errors, fmt.Errorf("tracing service_name is required when tracing is enabled"))
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errors = append(errors, fmt.Errorf("tracing sample_ratio must be between 0 and 1, got %g", cfg.Tracing.SampleRatio))
	}

	if err := v.ValidateSchedule(cfg.Status.Schedule); err != nil {
		errors = append(errors, err)
	}

	return errors
}
