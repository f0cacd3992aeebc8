package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "https://api.sendgrid.com", cfg.Erasure.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Erasure.RequestTimeout)
	assert.Equal(t, "production", cfg.Verify.Environment)
	assert.Equal(t, 5*time.Second, cfg.Verify.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Verify.PollCeiling)
	assert.Equal(t, ":5002", cfg.Receiver.Addr)
	assert.Equal(t, "verifymyage_callbacks.json", cfg.Receiver.CallbacksFile)
	assert.False(t, cfg.Receiver.Retention.Enabled)
	assert.Equal(t, "info", cfg.Logger.Level)

	require.NoError(t, Validate(cfg))
}

func TestBaseURLResolved(t *testing.T) {
	v := VerifyConfig{Environment: "production"}
	assert.Equal(t, ProductionURL, v.BaseURLResolved())

	v.Environment = "sandbox"
	assert.Equal(t, SandboxURL, v.BaseURLResolved())

	v.BaseURL = "https://override.example.com"
	assert.Equal(t, "https://override.example.com", v.BaseURLResolved())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Receiver.Addr, cfg.Receiver.Addr)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasweep.yaml")
	content := `
erasure:
  integrations:
    - name: "Integration 1"
      api_key: "sg-key-1"
verify:
  environment: sandbox
  github_user: alice
receiver:
  addr: ":6000"
logger:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Erasure.Integrations, 1)
	assert.Equal(t, "sg-key-1", cfg.Erasure.Integrations[0].APIKey)
	assert.Equal(t, "sandbox", cfg.Verify.Environment)
	assert.Equal(t, "alice", cfg.Verify.GitHubUser)
	assert.Equal(t, ":6000", cfg.Receiver.Addr)
	assert.Equal(t, "debug", cfg.Logger.Level)
	// Unset fields keep their defaults.
	assert.Equal(t, "https://api.sendgrid.com", cfg.Erasure.BaseURL)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("receiver: [not a map"), 0600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SENDGRID_API_KEY_1", "env-key-1")
	t.Setenv("SENDGRID_API_KEY_2", "env-key-2")
	t.Setenv("VERIFYMYAGE_API_KEY", "vma-key")
	t.Setenv("VERIFYMYAGE_API_SECRET", "vma-secret")
	t.Setenv("VERIFYMYAGE_ENVIRONMENT", "sandbox")
	t.Setenv("GITHUB_USERNAME", "bob")
	t.Setenv("GITHUB_REPO", "my-emails")
	t.Setenv("CSV_FILENAME", "list.csv")
	t.Setenv("WEBHOOK_PORT", "8099")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	require.Len(t, cfg.Erasure.Integrations, 2)
	assert.Equal(t, "Integration 1", cfg.Erasure.Integrations[0].Name)
	assert.Equal(t, "env-key-1", cfg.Erasure.Integrations[0].APIKey)
	assert.Equal(t, "env-key-2", cfg.Erasure.Integrations[1].APIKey)
	assert.Equal(t, "vma-key", cfg.Verify.APIKey)
	assert.Equal(t, "vma-secret", cfg.Verify.APISecret)
	assert.Equal(t, "sandbox", cfg.Verify.Environment)
	assert.Equal(t, "bob", cfg.Verify.GitHubUser)
	assert.Equal(t, "my-emails", cfg.Verify.GitHubRepo)
	assert.Equal(t, "list.csv", cfg.Verify.CSVFilename)
	assert.Equal(t, ":8099", cfg.Receiver.Addr)
}

func TestEnvOverridesReplaceFileKeys(t *testing.T) {
	t.Setenv("SENDGRID_API_KEY_1", "env-key")

	cfg := Defaults()
	cfg.Erasure.Integrations = []IntegrationConfig{{Name: "Integration 1", APIKey: "file-key"}}
	ApplyEnvOverrides(cfg)

	require.Len(t, cfg.Erasure.Integrations, 1)
	assert.Equal(t, "env-key", cfg.Erasure.Integrations[0].APIKey)
}

func TestValidateAccumulates(t *testing.T) {
	cfg := Defaults()
	cfg.Erasure.BaseURL = ""
	cfg.Verify.Environment = "staging"
	cfg.Logger.Format = "xml"

	err := Validate(cfg)
	require.Error(t, err)

	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Len(t, ve.Errors, 3)
}

func TestValidateIntegrationLimits(t *testing.T) {
	cfg := Defaults()
	cfg.Erasure.Integrations = []IntegrationConfig{
		{Name: "Integration 1", APIKey: "a"},
		{Name: "Integration 1", APIKey: "b"},
		{Name: "Integration 3", APIKey: "c"},
	}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 2")
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestValidateRetention(t *testing.T) {
	cfg := Defaults()
	cfg.Receiver.Retention.Enabled = true
	cfg.Receiver.Retention.MaxAge = "soon"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_age")
}
