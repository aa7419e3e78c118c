package persistence

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/stepflow/internal/state"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func sampleState(taskID, sessionID string) state.TaskState {
	st := state.New(taskID, sessionID, "Research AI trends", state.WithMaxSteps(4))
	st.Status = state.StatusRunning
	st.History = append(st.History, state.StepRecord{
		StepNumber: 0,
		StepType:   state.StepQueryAnalysis,
		NodeName:   "query_analysis",
		Input:      state.StepData{Task: "Research AI trends"},
		Timestamp:  time.Now().UTC(),
	})
	return st
}

func TestSaveAndLoadCheckpoint(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	st := sampleState("task-1", "session-1")
	st.PartialResults["research"] = state.Payload{"summary": "agents everywhere"}
	st.CurrentDecision = &state.Decision{Action: state.ActionDelegate, TargetProvider: "writing", Confidence: 0.5}

	if err := store.SaveCheckpoint(ctx, st); err != nil {
		t.Fatalf("failed to save checkpoint: %v", err)
	}

	loaded, err := store.LoadCheckpoint(ctx, "task-1")
	if err != nil {
		t.Fatalf("failed to load checkpoint: %v", err)
	}

	if loaded.TaskID != st.TaskID || loaded.SessionID != st.SessionID {
		t.Errorf("ids = %q/%q, want %q/%q", loaded.TaskID, loaded.SessionID, st.TaskID, st.SessionID)
	}
	if loaded.Status != state.StatusRunning {
		t.Errorf("status = %q, want running", loaded.Status)
	}
	if loaded.Control.MaxSteps != 4 {
		t.Errorf("max_steps = %d, want 4", loaded.Control.MaxSteps)
	}
	if got := loaded.PartialResults["research"]["summary"]; got != "agents everywhere" {
		t.Errorf("research summary = %v", got)
	}
	if loaded.CurrentDecision == nil || loaded.CurrentDecision.TargetProvider != "writing" {
		t.Errorf("current decision = %+v, want delegate to writing", loaded.CurrentDecision)
	}
	if len(loaded.History) != 1 || loaded.History[0].StepType != state.StepQueryAnalysis {
		t.Errorf("history = %+v, want one query_analysis record", loaded.History)
	}
}

func TestLoadCheckpointNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.LoadCheckpoint(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSaveCheckpointAppendsSteps(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	st := sampleState("task-1", "session-1")
	if err := store.SaveCheckpoint(ctx, st); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Saving the same snapshot again must not duplicate records
	if err := store.SaveCheckpoint(ctx, st); err != nil {
		t.Fatalf("second save: %v", err)
	}

	st.Control.CurrentStep = 1
	st.History = append(st.History,
		state.StepRecord{StepNumber: 1, StepType: state.StepDecision, NodeName: "decision"},
		state.StepRecord{StepNumber: 1, StepType: state.StepRouting, NodeName: "router", Error: "unknown provider: ghost"},
	)
	if err := store.SaveCheckpoint(ctx, st); err != nil {
		t.Fatalf("third save: %v", err)
	}

	steps, err := store.GetSteps(ctx, "task-1")
	if err != nil {
		t.Fatalf("failed to get steps: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}

	wantNodes := []string{"query_analysis", "decision", "router"}
	for i, want := range wantNodes {
		if steps[i].NodeName != want {
			t.Errorf("step %d node = %q, want %q", i, steps[i].NodeName, want)
		}
	}
	if steps[2].Error != "unknown provider: ghost" {
		t.Errorf("step error = %q", steps[2].Error)
	}
}

func TestGetStepsEmpty(t *testing.T) {
	store := testStore(t)

	steps, err := store.GetSteps(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 0 {
		t.Errorf("expected no steps, got %d", len(steps))
	}
}

func TestListCheckpoints(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, st := range []state.TaskState{
		sampleState("task-a", "session-1"),
		sampleState("task-b", "session-1"),
		sampleState("task-c", "session-2"),
	} {
		if err := store.SaveCheckpoint(ctx, st); err != nil {
			t.Fatalf("failed to save %s: %v", st.TaskID, err)
		}
	}

	// Touch task-a so it becomes the most recent
	latest := sampleState("task-a", "session-1")
	latest.Status = state.StatusCompleted
	if err := store.SaveCheckpoint(ctx, latest); err != nil {
		t.Fatalf("failed to update task-a: %v", err)
	}

	all, err := store.ListCheckpoints(ctx, "")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(all))
	}
	if all[0].TaskID != "task-a" || all[0].Status != state.StatusCompleted {
		t.Errorf("first entry = %+v, want completed task-a", all[0])
	}
	if all[0].UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}

	session, err := store.ListCheckpoints(ctx, "session-2")
	if err != nil {
		t.Fatalf("failed to list session: %v", err)
	}
	if len(session) != 1 || session[0].TaskID != "task-c" {
		t.Errorf("session-2 listing = %+v, want only task-c", session)
	}
}

func TestDeleteCheckpointCascades(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveCheckpoint(ctx, sampleState("task-1", "s")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := store.DeleteCheckpoint(ctx, "task-1"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	steps, err := store.GetSteps(ctx, "task-1")
	if err != nil {
		t.Fatalf("failed to get steps: %v", err)
	}
	if len(steps) != 0 {
		t.Errorf("expected step records to be deleted, got %d", len(steps))
	}

	if err := store.DeleteCheckpoint(ctx, "task-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows on second delete, got %v", err)
	}
}

func TestSaveCheckpointRequiresTaskID(t *testing.T) {
	store := testStore(t)

	if err := store.SaveCheckpoint(context.Background(), state.TaskState{}); err == nil {
		t.Fatal("expected error for empty task id")
	}
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "checkpoints.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.SaveCheckpoint(ctx, sampleState("task-1", "s")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.LoadCheckpoint(ctx, "task-1"); err != nil {
		t.Fatalf("checkpoint lost after reopen: %v", err)
	}
}
