package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// ClaudeCLI invokes the Claude Code CLI once per call in print mode.
// Every call is an independent session.
type ClaudeCLI struct {
	command string
	args    []string
	model   string
	workDir string
	procMgr *ProcessManager
}

// claudeResponse is the JSON printed by the CLI with --output-format json.
// Newer releases print "result" as a string, older ones as a content array.
type claudeResponse struct {
	SessionID string          `json:"session_id"`
	IsError   bool            `json:"is_error"`
	Result    json.RawMessage `json:"result"`
}

type claudeContent struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClaudeCLI creates a Claude CLI client. The ProcessManager is optional;
// if nil, subprocesses are not tracked.
func NewClaudeCLI(s Settings, pm *ProcessManager) (*ClaudeCLI, error) {
	command := s.Command
	if command == "" {
		command = "claude"
	}
	workDir := s.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	return &ClaudeCLI{
		command: command,
		args:    s.Args,
		model:   s.Model,
		workDir: workDir,
		procMgr: pm,
	}, nil
}

// Invoke runs one print-mode call and returns the response text.
func (c *ClaudeCLI) Invoke(ctx context.Context, system, user string) (string, error) {
	cmd := newCommand(ctx, c.command, c.buildArgs(system, user, uuid.NewString())...)
	cmd.Dir = c.workDir

	stdout, stderr, err := executeCommand(ctx, cmd, c.procMgr)
	if err != nil {
		return "", fmt.Errorf("claude command failed: %w", err)
	}

	text, err := parseClaudeResponse(stdout)
	if err != nil {
		return "", fmt.Errorf("failed to parse claude response: %w (stderr: %s)", err, string(stderr))
	}
	return text, nil
}

// Model returns the configured model, or "claude" when unset.
func (c *ClaudeCLI) Model() string {
	if c.model == "" {
		return "claude"
	}
	return c.model
}

// buildArgs constructs the command-line arguments for one call.
func (c *ClaudeCLI) buildArgs(system, user, sessionID string) []string {
	args := []string{"-p", user, "--output-format", "json", "--session-id", sessionID}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	if system != "" {
		args = append(args, "--system-prompt", system)
	}
	return append(args, c.args...)
}

// parseClaudeResponse extracts the text from the CLI's JSON output.
func parseClaudeResponse(data []byte) (string, error) {
	var cr claudeResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var text string
	if err := json.Unmarshal(cr.Result, &text); err != nil {
		var cc claudeContent
		if err := json.Unmarshal(cr.Result, &cc); err != nil {
			return "", fmt.Errorf("unexpected result shape: %w", err)
		}
		for _, item := range cc.Content {
			if item.Type == "text" {
				text += item.Text
			}
		}
	}

	if cr.IsError {
		return "", errors.New(text)
	}
	return text, nil
}
