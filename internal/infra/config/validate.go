package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError when one or more problems are found, allowing
// callers to inspect all issues at once.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateErasure(cfg, ve)
	validateVerify(cfg, ve)
	validateReceiver(cfg, ve)
	validateLogger(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateErasure(cfg *Config, ve *ValidationError) {
	if cfg.Erasure.BaseURL == "" {
		ve.Add("erasure.base_url must not be empty")
	}
	if cfg.Erasure.RequestTimeout <= 0 {
		ve.Add("erasure.request_timeout must be > 0")
	}
	if len(cfg.Erasure.Integrations) > 2 {
		ve.Add("erasure.integrations supports at most 2 entries, got %d", len(cfg.Erasure.Integrations))
	}
	seen := map[string]bool{}
	for _, in := range cfg.Erasure.Integrations {
		if in.Name == "" {
			ve.Add("erasure.integrations entries need a name")
			continue
		}
		if seen[in.Name] {
			ve.Add("erasure.integrations has duplicate name %q", in.Name)
		}
		seen[in.Name] = true
	}
}

func validateVerify(cfg *Config, ve *ValidationError) {
	switch cfg.Verify.Environment {
	case "", "sandbox", "production":
	default:
		ve.Add("verify.environment must be \"sandbox\" or \"production\", got %q", cfg.Verify.Environment)
	}
	if cfg.Verify.PollInterval <= 0 {
		ve.Add("verify.poll_interval must be > 0")
	}
	if cfg.Verify.PollCeiling < cfg.Verify.PollInterval {
		ve.Add("verify.poll_ceiling must be >= poll_interval")
	}
}

func validateReceiver(cfg *Config, ve *ValidationError) {
	if cfg.Receiver.Addr == "" {
		ve.Add("receiver.addr must not be empty")
	}
	if cfg.Receiver.CallbacksFile == "" {
		ve.Add("receiver.callbacks_file must not be empty")
	}
	if cfg.Receiver.Retention.Enabled {
		if cfg.Receiver.Retention.Schedule == "" {
			ve.Add("receiver.retention.schedule required when retention is enabled")
		}
		if _, err := time.ParseDuration(cfg.Receiver.Retention.MaxAge); err != nil {
			ve.Add("receiver.retention.max_age is not a valid duration: %v", err)
		}
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch cfg.Logger.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is not recognized", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "", "text", "json":
	default:
		ve.Add("logger.format must be \"text\" or \"json\", got %q", cfg.Logger.Format)
	}
}
