// Package config loads haven's runtime configuration from .haven.yaml,
// HAVEN_* environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProviderConfig selects and tunes the model backend.
type ProviderConfig struct {
	Kind        string        `mapstructure:"kind"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ModelsConfig overrides the routing profile's model names.
type ModelsConfig struct {
	Fast  string `mapstructure:"fast"`
	Large string `mapstructure:"large"`
	// Force pins every turn to one tier: "fast" or "large".
	Force string `mapstructure:"force"`
}

// RoutingConfig picks the routing profile.
type RoutingConfig struct {
	Profile  string   `mapstructure:"profile"`
	Keywords []string `mapstructure:"keywords"`
}

// PipelineConfig tunes turn execution.
type PipelineConfig struct {
	Cost            int           `mapstructure:"cost"`
	HistoryTurns    int           `mapstructure:"history_turns"`
	MaxContextBytes int           `mapstructure:"max_context_bytes"`
	MaxFileBytes    int           `mapstructure:"max_file_bytes"`
	StageTimeout    time.Duration `mapstructure:"stage_timeout"`
	Redact          bool          `mapstructure:"redact"`
	Strict          bool          `mapstructure:"strict"`
	Stack           string        `mapstructure:"stack"`
}

// ServerConfig configures haven serve.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// Tokens maps bearer tokens to user IDs.
	Tokens         map[string]string `mapstructure:"tokens"`
	AllowedOrigins []string          `mapstructure:"allowed_origins"`
}

// CreditConfig configures the credit ledger.
type CreditConfig struct {
	// DB is the SQLite path; empty keeps balances in memory.
	DB string `mapstructure:"db"`
	// InitialGrant is given to configured users the first time the ledger
	// sees them.
	InitialGrant int `mapstructure:"initial_grant"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

// Config holds all runtime configuration.
type Config struct {
	User     string         `mapstructure:"user"`
	Project  string         `mapstructure:"project"`
	Provider ProviderConfig `mapstructure:"provider"`
	Models   ModelsConfig   `mapstructure:"models"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Server   ServerConfig   `mapstructure:"server"`
	Credit   CreditConfig   `mapstructure:"credit"`
	Log      LogConfig      `mapstructure:"log"`
}

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("user", "local")
	v.SetDefault("project", ".haven/project.json")

	v.SetDefault("provider.kind", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.temperature", 0.2)
	v.SetDefault("provider.max_tokens", 8192)
	v.SetDefault("provider.timeout", 5*time.Minute)

	v.SetDefault("models.fast", "")
	v.SetDefault("models.large", "")
	v.SetDefault("models.force", "")

	v.SetDefault("routing.profile", "default")
	v.SetDefault("routing.keywords", []string{})

	v.SetDefault("pipeline.cost", 1)
	v.SetDefault("pipeline.history_turns", 10)
	v.SetDefault("pipeline.max_context_bytes", 24000)
	v.SetDefault("pipeline.max_file_bytes", 8000)
	v.SetDefault("pipeline.stage_timeout", time.Duration(0))
	v.SetDefault("pipeline.redact", true)
	v.SetDefault("pipeline.strict", false)
	v.SetDefault("pipeline.stack", "")

	v.SetDefault("server.addr", "127.0.0.1:8787")
	v.SetDefault("server.tokens", map[string]string{})
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("credit.db", "")
	v.SetDefault("credit.initial_grant", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
}

// Setup points v at the config file and environment. An explicit file wins;
// otherwise .haven.yaml is searched in the working directory, then home.
func Setup(v *viper.Viper, file, home string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(".haven")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home != "" {
			v.AddConfigPath(home)
		}
	}
	v.SetEnvPrefix("HAVEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load applies defaults and decodes v into a Config.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	switch strings.ToLower(c.Models.Force) {
	case "", "fast", "large":
	default:
		return fmt.Errorf("config: models.force must be fast or large, got %q", c.Models.Force)
	}
	if c.Pipeline.Cost < 0 {
		return fmt.Errorf("config: pipeline.cost must not be negative")
	}
	if c.Pipeline.HistoryTurns < 0 {
		return fmt.Errorf("config: pipeline.history_turns must not be negative")
	}
	return nil
}

// Users returns the configured user IDs in no particular order.
func (c Config) Users() []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range c.Server.Tokens {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
