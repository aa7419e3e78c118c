package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/stepflow/internal/state"
)

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveCheckpoint upserts the snapshot of st and appends the step records
// not stored yet. History is append-only, so records already stored for the
// task are never rewritten.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, st state.TaskState) error {
	if st.TaskID == "" {
		return fmt.Errorf("checkpoint needs a task id")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (task_id, session_id, original_task, status, current_step, max_steps, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			session_id = excluded.session_id,
			original_task = excluded.original_task,
			status = excluded.status,
			current_step = excluded.current_step,
			max_steps = excluded.max_steps,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, st.TaskID, st.SessionID, st.OriginalTask, string(st.Status),
		st.Control.CurrentStep, st.Control.MaxSteps, string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	var stored int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM step_records WHERE task_id = ?", st.TaskID).Scan(&stored); err != nil {
		return fmt.Errorf("failed to count step records: %w", err)
	}

	for seq := stored; seq < len(st.History); seq++ {
		rec := st.History[seq]
		recData, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal step %d: %w", seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO step_records (task_id, seq, step_number, step_type, node_name, record)
			VALUES (?, ?, ?, ?, ?, ?)
		`, st.TaskID, seq, rec.StepNumber, string(rec.StepType), rec.NodeName, string(recData))
		if err != nil {
			return fmt.Errorf("failed to append step %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the latest snapshot for taskID.
// Returns a wrapped sql.ErrNoRows if nothing is stored for the task.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, taskID string) (state.TaskState, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM checkpoints WHERE task_id = ?", taskID).Scan(&data)
	if err == sql.ErrNoRows {
		return state.TaskState{}, fmt.Errorf("no checkpoint for task %q: %w", taskID, err)
	}
	if err != nil {
		return state.TaskState{}, fmt.Errorf("failed to query checkpoint: %w", err)
	}

	var st state.TaskState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return state.TaskState{}, fmt.Errorf("failed to decode checkpoint %q: %w", taskID, err)
	}
	return st, nil
}

// ListCheckpoints returns stored runs, most recently updated first.
// An empty sessionID lists every session.
func (s *SQLiteStore) ListCheckpoints(ctx context.Context, sessionID string) ([]Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, session_id, original_task, status, current_step, max_steps, updated_at
		FROM checkpoints
		WHERE ? = '' OR session_id = ?
		ORDER BY updated_at DESC, task_id
	`, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var (
			sum       Summary
			status    string
			updatedAt string
		)
		if err := rows.Scan(&sum.TaskID, &sum.SessionID, &sum.OriginalTask, &status,
			&sum.CurrentStep, &sum.MaxSteps, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		sum.Status = state.Status(status)
		sum.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at for %q: %w", sum.TaskID, err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoints: %w", err)
	}
	return summaries, nil
}

// DeleteCheckpoint removes a task's snapshot and its step records.
func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Step records first, so the foreign key holds with or without the pragma
	if _, err := tx.ExecContext(ctx, "DELETE FROM step_records WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete step records: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM checkpoints WHERE task_id = ?", taskID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no checkpoint for task %q: %w", taskID, sql.ErrNoRows)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
