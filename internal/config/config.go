package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// Server
	Port            string        `envconfig:"HTTP_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Permission cache
	CacheURL                  string `envconfig:"CACHE_URL" default:""`
	PermissionCacheTTLSeconds int    `envconfig:"PERMISSION_CACHE_TTL_SECONDS" default:"3600"`

	// Tenant-credential envelope encryption
	EncryptionKey string `envconfig:"ENCRYPTION_KEY" required:"true"`

	// Auth
	DisableAuth     bool   `envconfig:"DISABLE_AUTH" default:"false"`
	TestBearerToken string `envconfig:"TEST_BEARER_TOKEN" default:""`
	JWTPublicKey    string `envconfig:"JWT_PUBLIC_KEY" default:""`

	// Bounded tool loop
	MaxRounds               int `envconfig:"MAX_ROUNDS" default:"4"`
	MaxHistoryMessages      int `envconfig:"MAX_HISTORY_MESSAGES" default:"20"`
	ToolPriorityLimit       int `envconfig:"TOOL_PRIORITY_LIMIT" default:"5"`
	ToolResultTruncateBytes int `envconfig:"TOOL_RESULT_TRUNCATE_BYTES" default:"8192"`

	// Per-session serialization
	SessionLockTimeout time.Duration `envconfig:"SESSION_LOCK_TIMEOUT" default:"2s"`

	// Local bootstrap/seed (optional, dev-only path)
	SeedConfigPath string `envconfig:"SEED_CONFIG_PATH" default:"seed.yaml"`
}

// Validate sanity-checks field combinations that envconfig tags alone
// cannot express.
func (c *Config) Validate() error {
	if c.MaxRounds <= 0 {
		return fmt.Errorf("config: MAX_ROUNDS must be positive, got %d", c.MaxRounds)
	}
	if c.DisableAuth && c.TestBearerToken == "" {
		return fmt.Errorf("config: TEST_BEARER_TOKEN is required when DISABLE_AUTH=true")
	}
	if len(c.EncryptionKey) == 0 {
		return fmt.Errorf("config: ENCRYPTION_KEY is required")
	}
	return nil
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SeedTenant is one entry in the optional local dev bootstrap file read by
// cmd/seed. It has no bearing on the runtime catalog path, which is fully
// database-driven.
type SeedTenant struct {
	Name   string `yaml:"name"`
	Active bool   `yaml:"active"`
}

// SeedAgent is one entry in the optional local dev bootstrap file.
type SeedAgent struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	SystemPrompt string   `yaml:"system_prompt"`
	HandlerClass string   `yaml:"handler_class"`
	Tools        []string `yaml:"tools"`
}

// SeedConfig is the top-level shape of the optional local dev bootstrap
// file, used only by cmd/seed to populate a fresh database for local
// development.
type SeedConfig struct {
	Tenants []SeedTenant `yaml:"tenants"`
	Agents  []SeedAgent  `yaml:"agents"`
}

// LoadSeed reads and parses the seed bootstrap file at path.
func LoadSeed(path string) (*SeedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read seed file: %w", err)
	}
	var seed SeedConfig
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("config: parse seed file: %w", err)
	}
	return &seed, nil
}
