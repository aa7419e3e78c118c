package main

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aristath/stepflow/internal/persistence"
	"github.com/aristath/stepflow/internal/state"
)

// execute runs the root command with fresh flag values and a private home
// directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	configPath, logLevel, logFormat, dbPath = "", "", "", ""
	maxSteps, sessionID, jsonOutput = 0, "", false
	initGlobal, initYAML, initForce = false, false, false
	toolInput = "{}"
	logger = zap.NewNop()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written config: %v", err)
	}
	if !strings.Contains(string(data), "max_steps: 20") {
		t.Errorf("expected YAML defaults, got:\n%s", data)
	}

	if _, err := execute(t, "config", "init", "--config", path); err == nil {
		t.Error("expected error when config exists without --force")
	}
	if _, err := execute(t, "config", "init", "--config", path, "--force"); err != nil {
		t.Errorf("config init --force failed: %v", err)
	}
}

func TestProvidersCmd(t *testing.T) {
	out, err := execute(t, "providers", "--db", "off")
	if err != nil {
		t.Fatalf("providers failed: %v\n%s", err, out)
	}
	for _, want := range []string{"research", "writing", "github", "ResearchReport", "text", "TextToolInput"} {
		if !strings.Contains(out, want) {
			t.Errorf("providers output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "query_analysis") {
		t.Errorf("engine roles must not be listed as providers:\n%s", out)
	}
}

func TestToolCmd(t *testing.T) {
	out, err := execute(t, "tool", "text", "--db", "off", "--input", `{"action":"word_count","text":"one two three"}`)
	if err != nil {
		t.Fatalf("tool failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"result": 3`) {
		t.Errorf("expected word count 3, got:\n%s", out)
	}

	if _, err := execute(t, "tool", "text", "--db", "off", "--input", `{"action":"shout","text":"x"}`); err == nil {
		t.Error("expected error for an action the input contract rejects")
	}
	if _, err := execute(t, "tool", "text", "--db", "off", "--input", `not json`); err == nil {
		t.Error("expected error for malformed --input")
	}
}

func TestShowCmd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	store, err := persistence.NewSQLiteStore(ctx, db)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	st := state.New("task-1", "session-1", "Summarize the Go memory model")
	st.Status = state.StatusCompleted
	st.Control.CurrentStep = 2
	response := "The Go memory model in brief."
	st.FinalResponse = &response
	st.History = append(st.History, state.StepRecord{
		StepNumber: 1, StepType: state.StepDecision, NodeName: "decision", ModelUsed: "qwen3:14b",
	})
	if err := store.SaveCheckpoint(ctx, st); err != nil {
		t.Fatalf("saving checkpoint: %v", err)
	}
	store.Close()

	out, err := execute(t, "show", "--db", db)
	if err != nil {
		t.Fatalf("show failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "task-1") || !strings.Contains(out, "completed") {
		t.Errorf("listing missing stored run:\n%s", out)
	}

	out, err = execute(t, "show", "task-1", "--db", db)
	if err != nil {
		t.Fatalf("show task-1 failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Summarize the Go memory model", "step 2 of 20", "qwen3:14b", response} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "show", "missing", "--db", db); err == nil {
		t.Error("expected error for unknown task id")
	}

	if _, err := execute(t, "delete", "task-1", "--db", db); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	out, _ = execute(t, "show", "--db", db)
	if !strings.Contains(out, "No stored runs.") {
		t.Errorf("expected empty listing after delete:\n%s", out)
	}
}

func TestShowCmd_CheckpointsDisabled(t *testing.T) {
	if _, err := execute(t, "show", "--db", "off"); err == nil {
		t.Error("expected error when checkpoints are disabled")
	}
}

func TestReadTasks(t *testing.T) {
	tasks, err := readTasks(strings.NewReader("first task\n\n# comment\n  second task  \n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 || tasks[0] != "first task" || tasks[1] != "second task" {
		t.Errorf("tasks = %q, want [first task second task]", tasks)
	}
}

func TestBatchCmd_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.txt")
	if err := os.WriteFile(path, []byte("# nothing\n"), 0644); err != nil {
		t.Fatalf("writing task file: %v", err)
	}
	if _, err := execute(t, "batch", path, "--db", "off"); err == nil {
		t.Error("expected error for a file without tasks")
	}
}

// TestSignalContextCancellation verifies that signal.NotifyContext produces
// a context that cancels when a signal is received.
func TestSignalContextCancellation(t *testing.T) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Failed to send SIGUSR1: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("Context did not cancel after SIGUSR1")
	}

	if err := ctx.Err(); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestNewLogger_UsesConfiguredLevel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STEPFLOW_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n  format: console\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	configPath, logLevel, logFormat, dbPath = path, "", "", ""
	t.Cleanup(func() { configPath = "" })

	l, err := newLogger()
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level from config file to be enabled")
	}

	logLevel = "error"
	t.Cleanup(func() { logLevel = "" })
	l, err = newLogger()
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected --log-level to override the config file level")
	}
}

func TestNewLogger_BadConfigFallsBackToFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	configPath, logLevel, logFormat, dbPath = path, "warn", "", ""
	t.Cleanup(func() { configPath, logLevel = "", "" })

	l, err := newLogger()
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) || !l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("expected warn level from the flag")
	}
}
