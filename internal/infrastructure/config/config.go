package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Shm       ShmConfig       `yaml:"shm"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// ShmConfig holds the fixed bounds of the region manager.
type ShmConfig struct {
	ArenaCapacity int `envconfig:"SHM_ARENA_CAPACITY" default:"65536" yaml:"arena_capacity"`
	MaxRegions    int `envconfig:"SHM_MAX_REGIONS" default:"16" yaml:"max_regions"`
	MaxNameLen    int `envconfig:"SHM_MAX_NAME_LEN" default:"32" yaml:"max_name_len"`
	MaxACLEntries int `envconfig:"SHM_MAX_ACL_ENTRIES" default:"8" yaml:"max_acl_entries"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from a YAML file, then applies environment
// variables on top so the environment always wins.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Shm: ShmConfig{
			ArenaCapacity: 64 * 1024,
			MaxRegions:    16,
			MaxNameLen:    32,
			MaxACLEntries: 8,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// applyEnv overrides file values with environment variables. envconfig
// applies defaults for unset fields, so only set variables are copied
// over the parsed file config.
func applyEnv(cfg *Config) error {
	var env Config
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		cfg.Server.Port = env.Server.Port
	}
	if v, ok := os.LookupEnv("HOST"); ok && v != "" {
		cfg.Server.Host = env.Server.Host
	}
	if _, ok := os.LookupEnv("SHM_ARENA_CAPACITY"); ok {
		cfg.Shm.ArenaCapacity = env.Shm.ArenaCapacity
	}
	if _, ok := os.LookupEnv("SHM_MAX_REGIONS"); ok {
		cfg.Shm.MaxRegions = env.Shm.MaxRegions
	}
	if _, ok := os.LookupEnv("SHM_MAX_NAME_LEN"); ok {
		cfg.Shm.MaxNameLen = env.Shm.MaxNameLen
	}
	if _, ok := os.LookupEnv("SHM_MAX_ACL_ENTRIES"); ok {
		cfg.Shm.MaxACLEntries = env.Shm.MaxACLEntries
	}
	if _, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.Logging.Level = env.Logging.Level
	}
	if _, ok := os.LookupEnv("LOG_DEV"); ok {
		cfg.Logging.Development = env.Logging.Development
	}
	if _, ok := os.LookupEnv("RATE_LIMIT_RPS"); ok {
		cfg.RateLimit.RequestsPerSecond = env.RateLimit.RequestsPerSecond
	}
	if _, ok := os.LookupEnv("RATE_LIMIT_BURST"); ok {
		cfg.RateLimit.Burst = env.RateLimit.Burst
	}
	if _, ok := os.LookupEnv("RATE_LIMIT_ENABLED"); ok {
		cfg.RateLimit.Enabled = env.RateLimit.Enabled
	}
	return nil
}
