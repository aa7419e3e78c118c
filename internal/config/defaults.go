package config

// DefaultConfig returns the default configuration with built-in clients, engine roles and departments.
func DefaultConfig() *Config {
	return &Config{
		Clients: map[string]ClientConfig{
			"ollama": {
				Type:    "openai",
				BaseURL: "http://localhost:11434/v1",
			},
			"openai": {
				Type:      "openai",
				APIKeyEnv: "OPENAI_API_KEY",
			},
			"gemini": {
				Type:      "gemini",
				APIKeyEnv: "GEMINI_API_KEY",
			},
			"claude": {
				Type:    "claude",
				Command: "claude",
			},
		},
		Agents: map[string]AgentConfig{
			RoleDecision: {
				Client:      "ollama",
				Model:       "qwen3:14b",
				Temperature: 0.3,
			},
			RoleAnalysis: {
				Client:      "ollama",
				Model:       "qwen3:14b",
				Temperature: 0.3,
			},
			RoleCorrection: {
				Client: "ollama",
				Model:  "phi3.5:3.8b",
			},
			"research": {
				Client:         "ollama",
				Model:          "qwen3:14b",
				Description:    "Web research, content analysis, fact-checking",
				SystemPrompt:   "You are a meticulous research analyst. Summarize findings and cite sources.",
				InputContract:  "ResearchTaskInput",
				OutputContract: "ResearchReport",
			},
			"writing": {
				Client:         "ollama",
				Model:          "qwen3:14b",
				Description:    "Long-form writing, editing, documentation",
				SystemPrompt:   "You are a professional writer. Produce clear, well-structured content.",
				InputContract:  "WritingTaskInput",
				OutputContract: "WritingOutput",
			},
			"coding": {
				Client:         "ollama",
				Model:          "qwen3:14b",
				Description:    "Code generation, refactoring, architecture",
				SystemPrompt:   "You are a senior software engineer. Write correct, idiomatic code.",
				InputContract:  "CodingTaskInput",
				OutputContract: "CodingOutput",
			},
			"analysis": {
				Client:         "ollama",
				Model:          "qwen3:14b",
				Description:    "Data analysis, pattern recognition, insights",
				SystemPrompt:   "You are a data analyst. Report findings, metrics and recommendations.",
				InputContract:  "AnalysisTaskInput",
				OutputContract: "AnalysisReport",
			},
			"social": {
				Client:         "ollama",
				Model:          "qwen3:14b",
				Description:    "Social media content creation and optimization",
				SystemPrompt:   "You write engaging social media content tailored to each platform.",
				InputContract:  "SocialTaskInput",
				OutputContract: "SocialContentOutput",
			},
			"github": {
				Client:         "ollama",
				Model:          "qwen3:14b",
				Description:    "GitHub operations, repository analysis, code review",
				SystemPrompt:   "You are a GitHub expert. Explain repository structure, issues and changes.",
				InputContract:  "GitHubTaskInput",
				OutputContract: "GitHubOutput",
			},
		},
		Orchestrator: OrchestratorSettings{
			MaxSteps:               20,
			TimeoutSeconds:         300,
			MaxRetries:             3,
			Concurrency:            4,
			ProviderTimeoutSeconds: 120,
		},
		Context: ContextSettings{
			MaxTokens:      8192,
			ReservedTokens: 2048,
		},
		Validation: ValidationSettings{
			MaxCorrectionAttempts: 2,
		},
		Resilience: ResilienceSettings{
			InitialIntervalMS:  100,
			MaxIntervalMS:      10_000,
			MaxElapsedMS:       120_000,
			CallTimeoutSeconds: 120,
			FailureThreshold:   3,
			RecoverySeconds:    60,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseSettings{
			Path: ".stepflow/checkpoints.db",
		},
	}
}
