package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Provider.Enabled())
	assert.Equal(t, 50*time.Millisecond, cfg.Mock.BaseDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Mock.Jitter)
}

func TestLoadFile(t *testing.T) {
	for _, k := range []string{
		"PORT", "PLANNER_LOG_LEVEL", "PLANNER_LOG_FORMAT", "PLANNER_PROVIDER",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "AZURE_OPENAI_ENDPOINT",
		"PLANNER_STORE", "PLANNER_STORE_DIR",
	} {
		t.Setenv(k, "")
	}

	path := filepath.Join(t.TempDir(), "tripplanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
log:
  level: debug
  format: text
provider:
  type: openai
  apiKey: sk-test
  model: gpt-test
mock:
  baseDelay: 10ms
  jitter: 0s
store:
  backend: file
  dir: /tmp/history
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Provider.Enabled())
	assert.Equal(t, "gpt-test", cfg.Provider.Model)
	assert.Equal(t, 10*time.Millisecond, cfg.Mock.BaseDelay)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                    "7000",
		"AZURE_OPENAI_ENDPOINT":   "https://example.openai.azure.com",
		"AZURE_OPENAI_KEY":        "azure-key",
		"AZURE_OPENAI_MODEL_NAME": "gpt-4o",
		"PLANNER_STORE":           "cosmos",
		"COSMOSDB_ENDPOINT_URL":   "https://example.documents.azure.com",
		"COSMOSDB_DATABASE_NAME":  "planner",
		"COSMOSDB_CONTAINER_NAME": "conversations",
		"COSMOSDB_EMULATOR":       "true",
	}

	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, ProviderAzure, cfg.Provider.Type)
	assert.Equal(t, "azure-key", cfg.Provider.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, StoreCosmos, cfg.Store.Backend)
	assert.True(t, cfg.Store.Cosmos.Emulator)
	assert.Equal(t, "conversations", cfg.Store.Cosmos.Container)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"Unknown provider", func(c *Config) { c.Provider.Type = "bard" }, "unknown provider.type"},
		{"Azure without endpoint", func(c *Config) {
			c.Provider.Type = ProviderAzure
			c.Provider.APIKey = "k"
		}, "baseURL is required"},
		{"Unknown store", func(c *Config) { c.Store.Backend = "redis" }, "unknown store.backend"},
		{"Cosmos incomplete", func(c *Config) { c.Store.Backend = StoreCosmos }, "store.cosmos"},
		{"Negative delay", func(c *Config) { c.Mock.Jitter = -time.Second }, "must not be negative"},
		{"Missing port", func(c *Config) { c.Server.Port = "" }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
