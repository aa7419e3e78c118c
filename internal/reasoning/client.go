// Package reasoning adapts external text-completion services to a single
// blocking Invoke(system, user) contract.
package reasoning

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Client is a reasoning service: given system and user text it returns text.
type Client interface {
	Invoke(ctx context.Context, system, user string) (string, error)
	// Model identifies the service in step records.
	Model() string
}

// InvokeError wraps a failed call with the model that produced it.
type InvokeError struct {
	Model string
	Err   error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("reasoning call to %s failed: %v", e.Model, e.Err)
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}

// Settings selects and configures an adapter.
type Settings struct {
	Type        string   // "claude", "codex", "goose", "openai" or "gemini"
	Command     string   // CLI binary for subprocess clients
	Args        []string // Extra CLI args for subprocess clients
	Provider    string   // Model backend passed to "goose"
	BaseURL     string   // OpenAI-compatible endpoint
	APIKey      string
	Model       string
	Temperature float32
	WorkDir     string
}

// New creates a client for s.Type. The ProcessManager is only used by
// subprocess-backed adapters and may be nil.
func New(s Settings, pm *ProcessManager) (Client, error) {
	switch s.Type {
	case "claude":
		return NewClaudeCLI(s, pm)
	case "codex":
		return NewCodexCLI(s, pm)
	case "goose":
		return NewGooseCLI(s, pm)
	case "openai":
		return NewOpenAI(s)
	case "gemini":
		return NewGemini(context.Background(), s)
	default:
		return nil, fmt.Errorf("unknown reasoning client type: %s", s.Type)
	}
}

// APIKeyFromEnv reads the key named by env, or returns "" when env is empty.
func APIKeyFromEnv(env string) string {
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// Func adapts a function to Client.
type Func struct {
	Name string
	Fn   func(ctx context.Context, system, user string) (string, error)
}

func (f Func) Invoke(ctx context.Context, system, user string) (string, error) {
	return f.Fn(ctx, system, user)
}

func (f Func) Model() string {
	if f.Name == "" {
		return "func"
	}
	return f.Name
}

// Static returns canned responses in order, repeating the last one, and
// records every call. It is safe for concurrent use.
type Static struct {
	Name      string
	Responses []string
	Err       error

	mu    sync.Mutex
	calls []Call
}

// Call is one recorded Static invocation.
type Call struct {
	System string
	User   string
}

func (s *Static) Invoke(_ context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{System: system, User: user})
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", nil
	}
	i := min(len(s.calls)-1, len(s.Responses)-1)
	return s.Responses[i], nil
}

func (s *Static) Model() string {
	if s.Name == "" {
		return "static"
	}
	return s.Name
}

// Calls returns a copy of the recorded calls.
func (s *Static) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}
