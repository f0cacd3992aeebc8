package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Known verification environments.
const (
	SandboxURL    = "https://email.sandbox.verifymyage.com"
	ProductionURL = "https://email.verification.verifymyage.com"
)

// Config is the top-level application configuration.
type Config struct {
	Erasure  ErasureConfig  `yaml:"erasure"`
	Verify   VerifyConfig   `yaml:"verify"`
	Receiver ReceiverConfig `yaml:"receiver"`
	Reports  ReportsConfig  `yaml:"reports"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// IntegrationConfig holds one named API-key configuration for the
// erasure provider.
type IntegrationConfig struct {
	Name   string `yaml:"name"`
	APIKey string `yaml:"api_key"`
}

// ErasureConfig holds erasure-provider settings.
type ErasureConfig struct {
	BaseURL        string              `yaml:"base_url"`
	Integrations   []IntegrationConfig `yaml:"integrations"`
	RequestTimeout time.Duration       `yaml:"request_timeout"`
	RequestsPerSec float64             `yaml:"requests_per_sec"` // client-side outbound limit
}

// VerifyConfig holds batch-verification provider settings.
type VerifyConfig struct {
	APIKey         string        `yaml:"api_key"`
	APISecret      string        `yaml:"api_secret"`
	Environment    string        `yaml:"environment"` // "sandbox" or "production"
	BaseURL        string        `yaml:"base_url"`    // overrides Environment when set
	WebhookURL     string        `yaml:"webhook_url"` // public receiver URL
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	PollCeiling    time.Duration `yaml:"poll_ceiling"`

	// GitHub coordinates used to build the public CSV URL.
	GitHubUser  string `yaml:"github_user"`
	GitHubRepo  string `yaml:"github_repo"`
	CSVFilename string `yaml:"csv_filename"`
}

// ReceiverConfig holds callback-receiver settings.
type ReceiverConfig struct {
	Addr          string `yaml:"addr"`
	CallbacksFile string `yaml:"callbacks_file"`
	ResultsDir    string `yaml:"results_dir"`

	// Optional retention pruning of stored callbacks.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig holds the receiver's callback retention policy.
type RetentionConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression
	MaxAge   string `yaml:"max_age"`  // duration string, e.g. "720h"
}

// ReportsConfig holds report output settings.
type ReportsConfig struct {
	Dir string `yaml:"dir"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// BaseURLResolved returns the verification base URL, preferring the
// explicit override over the environment selector.
func (v VerifyConfig) BaseURLResolved() string {
	if v.BaseURL != "" {
		return v.BaseURL
	}
	if v.Environment == "sandbox" {
		return SandboxURL
	}
	return ProductionURL
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Erasure: ErasureConfig{
			BaseURL:        "https://api.sendgrid.com",
			RequestTimeout: 30 * time.Second,
			RequestsPerSec: 2,
		},
		Verify: VerifyConfig{
			Environment:    "production",
			RequestTimeout: 10 * time.Second,
			PollInterval:   5 * time.Second,
			PollCeiling:    30 * time.Second,
			GitHubRepo:     "email-batch-tests",
			CSVFilename:    "emails_to_verify.csv",
		},
		Receiver: ReceiverConfig{
			Addr:          ":5002",
			CallbacksFile: "verifymyage_callbacks.json",
			ResultsDir:    ".",
			Retention: RetentionConfig{
				Enabled:  false,
				Schedule: "@hourly",
				MaxAge:   "720h",
			},
		},
		Reports: ReportsConfig{
			Dir: ".",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A
// missing file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps DATASWEEP_* and legacy provider env vars to
// config fields. Provider-native names (SENDGRID_API_KEY_1, ...) match
// the credentials the vendor dashboards hand out.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENDGRID_API_KEY_1"); v != "" {
		setIntegrationKey(cfg, "Integration 1", v)
	}
	if v := os.Getenv("SENDGRID_API_KEY_2"); v != "" {
		setIntegrationKey(cfg, "Integration 2", v)
	}
	if v := os.Getenv("DATASWEEP_ERASURE_BASE_URL"); v != "" {
		cfg.Erasure.BaseURL = v
	}

	if v := os.Getenv("VERIFYMYAGE_API_KEY"); v != "" {
		cfg.Verify.APIKey = v
	}
	if v := os.Getenv("VERIFYMYAGE_API_SECRET"); v != "" {
		cfg.Verify.APISecret = v
	}
	if v := os.Getenv("VERIFYMYAGE_ENVIRONMENT"); v != "" {
		cfg.Verify.Environment = v
	}
	if v := os.Getenv("DATASWEEP_VERIFY_BASE_URL"); v != "" {
		cfg.Verify.BaseURL = v
	}
	if v := os.Getenv("DATASWEEP_WEBHOOK_URL"); v != "" {
		cfg.Verify.WebhookURL = v
	}
	if v := os.Getenv("GITHUB_USERNAME"); v != "" {
		cfg.Verify.GitHubUser = v
	}
	if v := os.Getenv("GITHUB_REPO"); v != "" {
		cfg.Verify.GitHubRepo = v
	}
	if v := os.Getenv("CSV_FILENAME"); v != "" {
		cfg.Verify.CSVFilename = v
	}

	if v := os.Getenv("WEBHOOK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Receiver.Addr = fmt.Sprintf(":%d", p)
		}
	}
	if v := os.Getenv("DATASWEEP_RECEIVER_ADDR"); v != "" {
		cfg.Receiver.Addr = v
	}
	if v := os.Getenv("DATASWEEP_CALLBACKS_FILE"); v != "" {
		cfg.Receiver.CallbacksFile = v
	}

	if v := os.Getenv("DATASWEEP_REPORTS_DIR"); v != "" {
		cfg.Reports.Dir = v
	}
	if v := os.Getenv("DATASWEEP_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("DATASWEEP_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
}

func setIntegrationKey(cfg *Config, name, key string) {
	for i := range cfg.Erasure.Integrations {
		if cfg.Erasure.Integrations[i].Name == name {
			cfg.Erasure.Integrations[i].APIKey = key
			return
		}
	}
	cfg.Erasure.Integrations = append(cfg.Erasure.Integrations, IntegrationConfig{
		Name:   name,
		APIKey: key,
	})
}
