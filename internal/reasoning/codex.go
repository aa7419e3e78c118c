package reasoning

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// CodexCLI invokes the Codex CLI with `exec --json` once per call. The CLI
// has no system prompt flag, so the system text is prepended to the prompt.
type CodexCLI struct {
	command string
	args    []string
	model   string
	workDir string
	procMgr *ProcessManager
}

// codexEvent is one line of the CLI's newline-delimited JSON stream.
type codexEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NewCodexCLI creates a Codex CLI client. The ProcessManager may be nil.
func NewCodexCLI(s Settings, pm *ProcessManager) (*CodexCLI, error) {
	command := s.Command
	if command == "" {
		command = "codex"
	}
	workDir := s.WorkDir
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	return &CodexCLI{command: command, args: s.Args, model: s.Model, workDir: workDir, procMgr: pm}, nil
}

func (c *CodexCLI) Invoke(ctx context.Context, system, user string) (string, error) {
	cmd := newCommand(ctx, c.command, c.buildArgs(system, user)...)
	cmd.Dir = c.workDir

	stdout, stderr, err := executeCommand(ctx, cmd, c.procMgr)
	if err != nil {
		return "", fmt.Errorf("codex command failed: %w", err)
	}

	text, err := parseCodexEvents(stdout)
	if err != nil {
		return "", fmt.Errorf("failed to parse codex events: %w (stderr: %s)", err, string(stderr))
	}
	return text, nil
}

// Model returns the configured model, or "codex" when unset.
func (c *CodexCLI) Model() string {
	if c.model == "" {
		return "codex"
	}
	return c.model
}

func (c *CodexCLI) buildArgs(system, user string) []string {
	prompt := user
	if system != "" {
		prompt = system + "\n\n" + user
	}
	args := []string{"exec", prompt, "--json"}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	return append(args, c.args...)
}

// parseCodexEvents returns the content of the last TurnCompleted event.
func parseCodexEvents(data []byte) (string, error) {
	var (
		content string
		found   bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var evt codexEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return "", fmt.Errorf("failed to parse event: %w", err)
		}
		if evt.Type == "TurnCompleted" {
			content, found = evt.Content, true
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading events: %w", err)
	}
	if !found {
		return "", errors.New("no TurnCompleted event in output")
	}
	return content, nil
}
