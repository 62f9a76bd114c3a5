// Package config holds all gemsmith configuration, loaded from
// .gemsmith/config.yaml in the workspace with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gemsmith configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	LLM       LLMConfig       `yaml:"llm"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Execution ExecutionConfig `yaml:"execution"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the text-completion collaborator used for technique
// synthesis.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// SynthesisConfig controls the technique synthesizer. Attempts is a policy
// knob: the shipped default is a single attempt with static fallback.
type SynthesisConfig struct {
	Attempts     int    `yaml:"attempts"`
	Timeout      string `yaml:"timeout"`
	Backoff      string `yaml:"backoff"`
	TechniqueDir string `yaml:"technique_dir"`
	CacheEnabled bool   `yaml:"cache_enabled"`
}

// SandboxConfig controls what synthesized code may reference. The geometry
// API and math are always allowed; everything here widens the gate and
// defaults to off.
type SandboxConfig struct {
	ExtraImports []string `yaml:"extra_imports"`
	ExecTimeout  string   `yaml:"exec_timeout"`
}

// ExecutionConfig controls the sequencer.
type ExecutionConfig struct {
	QualityPreset string `yaml:"quality_preset"`
	ResultMarker  string `yaml:"result_marker"`
	FallbackSeed  int64  `yaml:"fallback_seed"`
	EventBuffer   int    `yaml:"event_buffer"`
}

// StoreConfig configures SQLite persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"`
}

// Default returns the configuration shipped out of the box.
func Default() *Config {
	return &Config{
		Name:    "gemsmith",
		Version: "1.0.0",
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "60s",
		},
		Synthesis: SynthesisConfig{
			Attempts:     1,
			Timeout:      "45s",
			Backoff:      "2s",
			TechniqueDir: ".gemsmith/techniques",
			CacheEnabled: true,
		},
		Sandbox: SandboxConfig{
			ExecTimeout: "10s",
		},
		Execution: ExecutionConfig{
			QualityPreset: "standard",
			ResultMarker:  "Result",
			EventBuffer:   64,
		},
		Store: StoreConfig{
			DatabasePath: ".gemsmith/gemsmith.db",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Path returns the config file location inside a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".gemsmith", "config.yaml")
}

// Load reads configuration from the workspace, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(workspace string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(workspace))
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to the workspace.
func (c *Config) Save(workspace string) error {
	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides lets environment variables win over file values, so CI
// and containers can configure without editing the workspace.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEMSMITH_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMSMITH_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("GEMSMITH_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("GEMSMITH_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("GEMSMITH_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("GEMSMITH_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// LLMTimeout parses the LLM timeout with a safe default.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

// SynthesisTimeout parses the per-attempt synthesis timeout.
func (c *Config) SynthesisTimeout() time.Duration {
	return parseDuration(c.Synthesis.Timeout, 45*time.Second)
}

// SynthesisBackoff parses the between-attempt backoff.
func (c *Config) SynthesisBackoff() time.Duration {
	return parseDuration(c.Synthesis.Backoff, 2*time.Second)
}

// SandboxExecTimeout parses the synthesized-handler execution timeout.
func (c *Config) SandboxExecTimeout() time.Duration {
	return parseDuration(c.Sandbox.ExecTimeout, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
