// Package config loads logicguard settings from YAML with environment
// overrides and validates them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all settings.
type Config struct {
	LLM         LLMConfig        `yaml:"llm"`
	Correction  CorrectionConfig `yaml:"correction"`
	Profile     string           `yaml:"profile" validate:"required"`
	CatalogFile string           `yaml:"catalog_file"`
	Logging     LoggingConfig    `yaml:"logging"`
	Server      ServerConfig     `yaml:"server"`
}

// LLMConfig configures the model backend.
type LLMConfig struct {
	Provider          string  `yaml:"provider" validate:"oneof=anthropic openai google openrouter"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url" validate:"omitempty,url"`
	MaxTokens         int     `yaml:"max_tokens" validate:"min=1"`
	ParseTemperature  float64 `yaml:"parse_temperature" validate:"gte=0,lte=2"`
	RepairTemperature float64 `yaml:"repair_temperature" validate:"gte=0,lte=2"`
	Timeout           string  `yaml:"timeout" validate:"required"`
	MaxRetries        int     `yaml:"max_retries" validate:"gte=0,lte=10"`
	RateLimit         float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst         int     `yaml:"rate_burst" validate:"gte=0"`
}

// CorrectionConfig configures the self-correction loop.
type CorrectionConfig struct {
	MaxIterations int  `yaml:"max_iterations" validate:"min=1,max=10"`
	AutoCorrect   bool `yaml:"auto_correct"`
	Strict        bool `yaml:"strict"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
	// RequestLimit is the accepted validation requests per second per
	// client address; 0 disables limiting.
	RequestLimit float64 `yaml:"request_limit" validate:"min=0"`
	RequestBurst int     `yaml:"request_burst" validate:"min=0"`
	HistorySize  int     `yaml:"history_size" validate:"min=1,max=10000"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          "openrouter",
			MaxTokens:         4096,
			ParseTemperature:  0.0,
			RepairTemperature: 0.3,
			Timeout:           "60s",
			MaxRetries:        3,
		},
		Correction: CorrectionConfig{
			MaxIterations: 5,
			AutoCorrect:   true,
		},
		Profile: "maintenance",
		Logging: LoggingConfig{Level: "info"},
		Server:  ServerConfig{Addr: ":8080", HistorySize: 100},
	}
}

var validate = validator.New()

// Load reads path, applies LOGICGUARD_* environment overrides and
// validates the result. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("config: invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}
	return nil
}

// Timeout returns the per-call LLM timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	str("LOGICGUARD_PROVIDER", &c.LLM.Provider)
	str("LOGICGUARD_MODEL", &c.LLM.Model)
	str("LOGICGUARD_BASE_URL", &c.LLM.BaseURL)
	str("LOGICGUARD_TIMEOUT", &c.LLM.Timeout)
	str("LOGICGUARD_PROFILE", &c.Profile)
	str("LOGICGUARD_CATALOG_FILE", &c.CatalogFile)
	str("LOGICGUARD_LOG_LEVEL", &c.Logging.Level)
	str("LOGICGUARD_ADDR", &c.Server.Addr)

	if v := os.Getenv("LOGICGUARD_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: LOGICGUARD_MAX_ITERATIONS: %w", err)
		}
		c.Correction.MaxIterations = n
	}
	if v := os.Getenv("LOGICGUARD_AUTO_CORRECT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: LOGICGUARD_AUTO_CORRECT: %w", err)
		}
		c.Correction.AutoCorrect = b
	}
	if v := os.Getenv("LOGICGUARD_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: LOGICGUARD_RATE_LIMIT: %w", err)
		}
		c.LLM.RateLimit = f
	}
	return nil
}
