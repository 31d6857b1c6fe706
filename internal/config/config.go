// Package config holds all parley configuration. Components receive
// explicit config structs through their constructors; nothing reads
// ambient global state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// Name labels the deployment in logs.
	Name string `yaml:"name"`

	// LLM configures the model boundary.
	LLM LLMConfig `yaml:"llm"`

	// Dispatch configures sub-agent execution.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Store configures session persistence.
	Store StoreConfig `yaml:"store"`

	// Policy points at the phase-policy file.
	Policy PolicyConfig `yaml:"policy"`

	// Logging configures the categorized logger.
	Logging LoggingConfig `yaml:"logging"`
}

// DispatchConfig configures the sub-agent dispatcher.
type DispatchConfig struct {
	// MaxConcurrency bounds parallel sub-agent sessions.
	MaxConcurrency int `yaml:"max_concurrency"`

	// RequireApproval gates dispatch behind an explicit user approval.
	RequireApproval bool `yaml:"require_approval"`
}

// StoreConfig configures the SQLite session store.
type StoreConfig struct {
	// DatabasePath is the SQLite file; empty selects in-memory.
	DatabasePath string `yaml:"database_path"`
}

// PolicyConfig locates the phase-policy file.
type PolicyConfig struct {
	// Path to the policy YAML. Empty uses the built-in default policy.
	Path string `yaml:"path"`

	// HotReload watches the file and reloads the gate on change.
	HotReload bool `yaml:"hot_reload"`
}

// LoggingConfig configures the logging facade.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns sensible defaults for a local run.
func DefaultConfig() *Config {
	return &Config{
		Name: "parley",
		LLM: LLMConfig{
			Provider: "scripted",
		},
		Dispatch: DispatchConfig{
			MaxConcurrency:  3,
			RequireApproval: true,
		},
		Store: StoreConfig{
			DatabasePath: "parley.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, layering it over defaults and
// then applying environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if cfg.Dispatch.MaxConcurrency < 1 {
		cfg.Dispatch.MaxConcurrency = 1
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PARLEY_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("PARLEY_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("PARLEY_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("PARLEY_DATABASE_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}
