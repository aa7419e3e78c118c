package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvMaxSteps = "STEPFLOW_MAX_STEPS"
	EnvLogLevel = "STEPFLOW_LOG_LEVEL"
	EnvDatabase = "STEPFLOW_DB"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON or YAML returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Project config has the highest file precedence
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths and then applies
// environment overrides.
// Global: ~/.stepflow/config.{json,yaml,yml}
// Project: .stepflow/config.{json,yaml,yml} (relative to cwd)
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	cfg, err := Load(findConfig(filepath.Join(homeDir, ".stepflow")), findConfig(".stepflow"))
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfig returns the first config file present in dir, or the JSON path
// if none exists.
func findConfig(dir string) string {
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "config.json")
}

// ApplyEnv overrides settings from environment variables looked up via getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvMaxSteps); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", EnvMaxSteps, v)
		}
		cfg.Orchestrator.MaxSteps = n
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := getenv(EnvDatabase); v != "" {
		cfg.Database.Path = v
	}
	return nil
}

// mergeConfigFile reads a config file and merges it into the base config.
// Missing files are silently skipped. Malformed content returns an error.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &loaded)
	} else {
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	merge(base, &loaded)
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// merge overlays loaded onto base. Map entries replace by key; scalar
// settings replace only when set.
func merge(base, loaded *Config) {
	if base.Clients == nil {
		base.Clients = map[string]ClientConfig{}
	}
	for key, client := range loaded.Clients {
		base.Clients[key] = client
	}

	if base.Agents == nil {
		base.Agents = map[string]AgentConfig{}
	}
	for key, agent := range loaded.Agents {
		base.Agents[key] = agent
	}

	o := loaded.Orchestrator
	overlay(&base.Orchestrator.MaxSteps, o.MaxSteps)
	overlay(&base.Orchestrator.TimeoutSeconds, o.TimeoutSeconds)
	overlay(&base.Orchestrator.MaxRetries, o.MaxRetries)
	overlay(&base.Orchestrator.Concurrency, o.Concurrency)
	overlay(&base.Orchestrator.ProviderTimeoutSeconds, o.ProviderTimeoutSeconds)

	overlay(&base.Context.MaxTokens, loaded.Context.MaxTokens)
	overlay(&base.Context.ReservedTokens, loaded.Context.ReservedTokens)

	overlay(&base.Validation.MaxCorrectionAttempts, loaded.Validation.MaxCorrectionAttempts)
	if loaded.Validation.CorrectionsEnabled != nil {
		base.Validation.CorrectionsEnabled = loaded.Validation.CorrectionsEnabled
	}

	r := loaded.Resilience
	overlay(&base.Resilience.InitialIntervalMS, r.InitialIntervalMS)
	overlay(&base.Resilience.MaxIntervalMS, r.MaxIntervalMS)
	overlay(&base.Resilience.MaxElapsedMS, r.MaxElapsedMS)
	overlay(&base.Resilience.CallTimeoutSeconds, r.CallTimeoutSeconds)
	overlay(&base.Resilience.FailureThreshold, r.FailureThreshold)
	overlay(&base.Resilience.RecoverySeconds, r.RecoverySeconds)

	overlay(&base.Logging.Level, loaded.Logging.Level)
	overlay(&base.Logging.Format, loaded.Logging.Format)
	overlay(&base.Database.Path, loaded.Database.Path)
}

func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
