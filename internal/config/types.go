package config

import "maps"

// ClientConfig defines a reasoning-service transport.
// Clients are separate from agents -- multiple agents can share one client.
type ClientConfig struct {
	Type      string   `json:"type" yaml:"type"`                                 // "claude", "codex", "goose", "openai", "gemini"
	Command   string   `json:"command,omitempty" yaml:"command,omitempty"`       // CLI binary for subprocess clients
	Args      []string `json:"args,omitempty" yaml:"args,omitempty"`             // Default args appended to every invocation
	BaseURL   string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`     // OpenAI-compatible endpoint (e.g. Ollama)
	APIKeyEnv string   `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"` // Environment variable holding the API key
	Provider  string   `json:"provider,omitempty" yaml:"provider,omitempty"`       // Model backend for goose (e.g. ollama)
}

// AgentConfig binds a role to a client and model.
// The "decision", "query_analysis" and "correction" roles drive the engine itself;
// every other entry is exposed as a department provider.
type AgentConfig struct {
	Client         string  `json:"client" yaml:"client"`
	Model          string  `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature    float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	SystemPrompt   string  `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Description    string  `json:"description,omitempty" yaml:"description,omitempty"`
	InputContract  string  `json:"input_contract,omitempty" yaml:"input_contract,omitempty"`
	OutputContract string  `json:"output_contract,omitempty" yaml:"output_contract,omitempty"`
	Disabled       bool    `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// OrchestratorSettings bounds each workflow run.
type OrchestratorSettings struct {
	MaxSteps               int `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	TimeoutSeconds         int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	MaxRetries             int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	Concurrency            int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`                         // Max concurrent runs in batch mode
	ProviderTimeoutSeconds int `json:"provider_timeout_seconds,omitempty" yaml:"provider_timeout_seconds,omitempty"` // Per provider call
}

// ContextSettings configures the context window builder.
type ContextSettings struct {
	MaxTokens      int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	ReservedTokens int `json:"reserved_tokens,omitempty" yaml:"reserved_tokens,omitempty"`
}

// ValidationSettings configures the validation-and-correction engine.
type ValidationSettings struct {
	MaxCorrectionAttempts int   `json:"max_correction_attempts,omitempty" yaml:"max_correction_attempts,omitempty"`
	CorrectionsEnabled    *bool `json:"corrections_enabled,omitempty" yaml:"corrections_enabled,omitempty"`
}

// ResilienceSettings configures retry and circuit breaking around reasoning calls.
type ResilienceSettings struct {
	InitialIntervalMS  int `json:"initial_interval_ms,omitempty" yaml:"initial_interval_ms,omitempty"`
	MaxIntervalMS      int `json:"max_interval_ms,omitempty" yaml:"max_interval_ms,omitempty"`
	MaxElapsedMS       int `json:"max_elapsed_ms,omitempty" yaml:"max_elapsed_ms,omitempty"`
	CallTimeoutSeconds int `json:"call_timeout_seconds,omitempty" yaml:"call_timeout_seconds,omitempty"`
	FailureThreshold   int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	RecoverySeconds    int `json:"recovery_timeout_seconds,omitempty" yaml:"recovery_timeout_seconds,omitempty"`
}

// LoggingSettings configures the zap logger.
type LoggingSettings struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // json or console
}

// DatabaseSettings configures the checkpoint store. An empty path disables it.
type DatabaseSettings struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Clients      map[string]ClientConfig `json:"clients" yaml:"clients"`
	Agents       map[string]AgentConfig  `json:"agents" yaml:"agents"`
	Orchestrator OrchestratorSettings    `json:"orchestrator" yaml:"orchestrator"`
	Context      ContextSettings         `json:"context" yaml:"context"`
	Validation   ValidationSettings      `json:"validation" yaml:"validation"`
	Resilience   ResilienceSettings      `json:"resilience" yaml:"resilience"`
	Logging      LoggingSettings         `json:"logging" yaml:"logging"`
	Database     DatabaseSettings        `json:"database" yaml:"database"`
}

// Engine role names looked up in Config.Agents.
const (
	RoleDecision   = "decision"
	RoleAnalysis   = "query_analysis"
	RoleCorrection = "correction"
)

// IsEngineRole reports whether name is reserved for the engine itself
// rather than describing a department provider.
func IsEngineRole(name string) bool {
	switch name {
	case RoleDecision, RoleAnalysis, RoleCorrection:
		return true
	}
	return false
}

// CorrectionsOn reports whether automatic correction is enabled (default true).
func (v ValidationSettings) CorrectionsOn() bool {
	return v.CorrectionsEnabled == nil || *v.CorrectionsEnabled
}

// Clone returns a copy whose maps can be modified independently of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Clients = maps.Clone(c.Clients)
	out.Agents = maps.Clone(c.Agents)
	return &out
}
