// Package config provides configuration loading for answerd.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Config is the full service configuration.
type Config struct {
	Server   Server   `koanf:"server"`
	LLM      LLM      `koanf:"llm"`
	Timeouts Timeouts `koanf:"timeouts"`
	Log      Log      `koanf:"log"`
	Sessions Sessions `koanf:"sessions"`
}

// Server configures the HTTP front door.
type Server struct {
	Addr string `koanf:"addr"`
	// APIKey, when set, is required from clients in the X-API-Key header.
	APIKey string `koanf:"api_key"`
}

// LLM selects and authenticates the model backend.
type LLM struct {
	Backend         string `koanf:"backend"` // anthropic, openai, azure, or empty to auto-detect
	Model           string `koanf:"model"`
	APIKey          string `koanf:"api_key"`
	AzureEndpoint   string `koanf:"azure_endpoint"`
	AzureDeployment string `koanf:"azure_deployment"`
}

// Timeouts holds every time and failure budget in the pipeline.
type Timeouts struct {
	Query            time.Duration `koanf:"query"`
	ComplexQuery     time.Duration `koanf:"complex_query"`
	Step             time.Duration `koanf:"step"`
	BreakerThreshold int           `koanf:"breaker_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

// Log configures structured logging.
type Log struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// Sessions configures the session table.
type Sessions struct {
	Max int `koanf:"max"`
}

// Load reads configuration from an optional YAML file, then overrides with
// ANSWERD_* environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (ANSWERD_SERVER_ADDR, ANSWERD_LLM_BACKEND, ...)
//  2. YAML config file
//  3. Defaults
//
// Environment variables map to config keys by section and field:
//
//	ANSWERD_SERVER_ADDR       -> server.addr
//	ANSWERD_LLM_AZURE_ENDPOINT -> llm.azure_endpoint
//	ANSWERD_TIMEOUTS_QUERY    -> timeouts.query
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if len(content) > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", len(content), maxConfigFileSize)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("ANSWERD_", ".", func(s string) string {
		// ANSWERD_SERVER_ADDR -> server.addr: split on the first underscore
		// after the prefix; the section never contains one, field names may.
		lower := strings.ToLower(strings.TrimPrefix(s, "ANSWERD_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Timeouts.Query == 0 {
		cfg.Timeouts.Query = 2 * time.Minute
	}
	if cfg.Timeouts.ComplexQuery == 0 {
		cfg.Timeouts.ComplexQuery = 5 * time.Minute
	}
	if cfg.Timeouts.Step == 0 {
		cfg.Timeouts.Step = 60 * time.Second
	}
	if cfg.Timeouts.BreakerThreshold == 0 {
		cfg.Timeouts.BreakerThreshold = 3
	}
	if cfg.Timeouts.BreakerCooldown == 0 {
		cfg.Timeouts.BreakerCooldown = 30 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Sessions.Max == 0 {
		cfg.Sessions.Max = 1000
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Backend {
	case "", "anthropic", "openai", "azure":
	default:
		return fmt.Errorf("llm.backend must be anthropic, openai, azure, or empty, got %q", c.LLM.Backend)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	if c.Timeouts.Query <= 0 || c.Timeouts.ComplexQuery <= 0 || c.Timeouts.Step <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Timeouts.ComplexQuery < c.Timeouts.Query {
		return fmt.Errorf("timeouts.complex_query (%s) must be at least timeouts.query (%s)",
			c.Timeouts.ComplexQuery, c.Timeouts.Query)
	}
	if c.Sessions.Max <= 0 {
		return fmt.Errorf("sessions.max must be positive")
	}
	return nil
}
