// Package config loads the service configuration: defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Provider ProviderConfig `yaml:"provider"`
	Mock     MockConfig     `yaml:"mock"`
	Store    StoreConfig    `yaml:"store"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// ShutdownTimeout bounds how long in-flight streams get on shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ProviderType string

const (
	ProviderNone   ProviderType = "none"
	ProviderOpenAI ProviderType = "openai"
	ProviderAzure  ProviderType = "azure"
)

// ProviderConfig configures the text generation service. An empty APIKey
// means the mock strategy answers every request.
type ProviderConfig struct {
	Type        ProviderType `yaml:"type"`
	BaseURL     string       `yaml:"baseURL"`
	APIKey      string       `yaml:"apiKey"`
	Model       string       `yaml:"model"`
	Temperature float64      `yaml:"temperature"`
}

func (p ProviderConfig) Enabled() bool {
	return p.Type != ProviderNone && p.APIKey != ""
}

type MockConfig struct {
	BaseDelay time.Duration `yaml:"baseDelay"`
	Jitter    time.Duration `yaml:"jitter"`
}

type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreFile   StoreBackend = "file"
	StoreCosmos StoreBackend = "cosmos"
)

type StoreConfig struct {
	Backend StoreBackend `yaml:"backend"`
	Dir     string       `yaml:"dir"`
	Cosmos  CosmosConfig `yaml:"cosmos"`
}

type CosmosConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Database  string `yaml:"database"`
	Container string `yaml:"container"`
	// PartitionKey is the value used for every conversation document.
	PartitionKey string `yaml:"partitionKey"`
	Emulator     bool   `yaml:"emulator"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Provider: ProviderConfig{
			Type:        ProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		Mock: MockConfig{
			BaseDelay: 50 * time.Millisecond,
			Jitter:    100 * time.Millisecond,
		},
		Store: StoreConfig{
			Backend: StoreMemory,
			Dir:     ".tripplanner/history",
			Cosmos: CosmosConfig{
				PartitionKey: "tripplanner",
			},
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Server.Port, "PORT")
	set(&c.Log.Level, "PLANNER_LOG_LEVEL")
	set(&c.Log.Format, "PLANNER_LOG_FORMAT")

	if v := getenv("PLANNER_PROVIDER"); v != "" {
		c.Provider.Type = ProviderType(v)
	}
	set(&c.Provider.APIKey, "OPENAI_API_KEY")
	set(&c.Provider.BaseURL, "OPENAI_BASE_URL")
	set(&c.Provider.Model, "OPENAI_MODEL")

	// Azure OpenAI variables win when present.
	if endpoint := getenv("AZURE_OPENAI_ENDPOINT"); endpoint != "" {
		c.Provider.Type = ProviderAzure
		c.Provider.BaseURL = endpoint
		set(&c.Provider.APIKey, "AZURE_OPENAI_KEY")
		set(&c.Provider.Model, "AZURE_OPENAI_MODEL_NAME")
	}

	if v := getenv("PLANNER_STORE"); v != "" {
		c.Store.Backend = StoreBackend(v)
	}
	set(&c.Store.Dir, "PLANNER_STORE_DIR")
	set(&c.Store.Cosmos.Endpoint, "COSMOSDB_ENDPOINT_URL")
	set(&c.Store.Cosmos.Database, "COSMOSDB_DATABASE_NAME")
	set(&c.Store.Cosmos.Container, "COSMOSDB_CONTAINER_NAME")
	if v := getenv("COSMOSDB_EMULATOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Store.Cosmos.Emulator = b
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	switch c.Provider.Type {
	case ProviderNone, ProviderOpenAI:
	case ProviderAzure:
		if c.Provider.APIKey != "" && c.Provider.BaseURL == "" {
			return fmt.Errorf("provider.baseURL is required for azure")
		}
	default:
		return fmt.Errorf("unknown provider.type %q", c.Provider.Type)
	}
	if c.Provider.Enabled() && c.Provider.Model == "" {
		return fmt.Errorf("provider.model is required")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("provider.temperature must be between 0 and 2")
	}

	if c.Mock.BaseDelay < 0 || c.Mock.Jitter < 0 {
		return fmt.Errorf("mock delays must not be negative")
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreFile:
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the file backend")
		}
	case StoreCosmos:
		cc := c.Store.Cosmos
		if cc.Endpoint == "" || cc.Database == "" || cc.Container == "" {
			return fmt.Errorf("store.cosmos endpoint, database and container are required")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}
