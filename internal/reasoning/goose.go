package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// GooseCLI invokes `goose run` once per call. Goose reaches local model
// servers through its own --provider flag.
type GooseCLI struct {
	command  string
	args     []string
	model    string
	provider string
	workDir  string
	procMgr  *ProcessManager
}

type gooseResponse struct {
	Content string `json:"content"`
}

// NewGooseCLI creates a Goose CLI client. The ProcessManager may be nil.
func NewGooseCLI(s Settings, pm *ProcessManager) (*GooseCLI, error) {
	command := s.Command
	if command == "" {
		command = "goose"
	}
	workDir := s.WorkDir
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	return &GooseCLI{
		command:  command,
		args:     s.Args,
		model:    s.Model,
		provider: s.Provider,
		workDir:  workDir,
		procMgr:  pm,
	}, nil
}

func (g *GooseCLI) Invoke(ctx context.Context, system, user string) (string, error) {
	cmd := newCommand(ctx, g.command, g.buildArgs(system, user)...)
	cmd.Dir = g.workDir

	stdout, _, err := executeCommand(ctx, cmd, g.procMgr)
	if err != nil {
		return "", fmt.Errorf("goose command failed: %w", err)
	}
	return parseGooseResponse(stdout), nil
}

// Model returns the configured model, or "goose" when unset.
func (g *GooseCLI) Model() string {
	if g.model == "" {
		return "goose"
	}
	return g.model
}

// buildArgs runs without a named session so every call starts clean.
func (g *GooseCLI) buildArgs(system, user string) []string {
	args := []string{"run", "--no-session", "--text", user, "--output-format", "json"}
	if g.provider != "" {
		args = append(args, "--provider", g.provider)
	}
	if g.model != "" {
		args = append(args, "--model", g.model)
	}
	if system != "" {
		args = append(args, "--system", system)
	}
	return append(args, g.args...)
}

// parseGooseResponse accepts a single JSON object, newline-delimited JSON,
// or plain text from CLI versions without JSON output.
func parseGooseResponse(data []byte) string {
	var resp gooseResponse
	if err := json.Unmarshal(data, &resp); err == nil && resp.Content != "" {
		return resp.Content
	}

	var contents []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var lineResp gooseResponse
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &lineResp); err == nil && lineResp.Content != "" {
			contents = append(contents, lineResp.Content)
		}
	}
	if len(contents) > 0 {
		return strings.Join(contents, "\n")
	}
	return strings.TrimSpace(string(data))
}
