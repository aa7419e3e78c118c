package reasoning

import (
	"context"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestExecuteCommand_Success(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "bash", "-c", "echo error >&2; echo ok")

	stdout, stderr, err := executeCommand(ctx, cmd, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(stdout), "ok") {
		t.Errorf("Expected stdout to contain 'ok', got: %s", stdout)
	}
	if !strings.Contains(string(stderr), "error") {
		t.Errorf("Expected stderr to contain 'error', got: %s", stderr)
	}
}

func TestExecuteCommand_LargeOutputDoesNotDeadlock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := newCommand(ctx, "bash", "-c", "head -c 1048576 /dev/zero | tr '\\0' 'x'; head -c 262144 /dev/zero >&2")

	stdout, stderr, err := executeCommand(ctx, cmd, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(stdout) != 1048576 {
		t.Errorf("stdout length = %d, want 1048576", len(stdout))
	}
	if len(stderr) != 262144 {
		t.Errorf("stderr length = %d, want 262144", len(stderr))
	}
}

func TestExecuteCommand_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd := newCommand(ctx, "bash", "-c", "sleep 30")
	start := time.Now()
	_, _, err := executeCommand(ctx, cmd, nil)
	if err == nil {
		t.Fatal("Expected error due to context cancellation, got nil")
	}
	if !strings.Contains(err.Error(), "context deadline exceeded") {
		t.Errorf("Expected context error, got: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancellation took too long: %v", time.Since(start))
	}
}

func TestProcessManager_TrackAndKillAll(t *testing.T) {
	pm := NewProcessManager()

	cmd := newCommand(context.Background(), "bash", "-c", "sleep 300")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}
	pm.Track(cmd)

	if pm.Count() != 1 {
		t.Errorf("Expected 1 tracked process, got %d", pm.Count())
	}

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll failed: %v", err)
	}

	err := cmd.Wait()
	if err == nil {
		t.Fatal("Expected process to be killed (non-nil error), got nil")
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && !status.Signaled() {
			t.Errorf("Expected process to be signaled, got exit status: %v", status)
		}
	}

	pm.Untrack(cmd)
	if pm.Count() != 0 {
		t.Errorf("Expected 0 tracked processes after Untrack, got %d", pm.Count())
	}
}

func TestProcessManager_IgnoresUnstarted(t *testing.T) {
	pm := NewProcessManager()
	cmd := newCommand(context.Background(), "true")

	pm.Track(cmd)
	pm.Untrack(cmd)

	if pm.Count() != 0 {
		t.Errorf("Expected 0 tracked processes, got %d", pm.Count())
	}
}
