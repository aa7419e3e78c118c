package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		task_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		original_task TEXT NOT NULL,
		status TEXT NOT NULL,
		current_step INTEGER NOT NULL,
		max_steps INTEGER NOT NULL,
		state TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id, updated_at);

	CREATE TABLE IF NOT EXISTS step_records (
		task_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		step_number INTEGER NOT NULL,
		step_type TEXT NOT NULL,
		node_name TEXT NOT NULL,
		record TEXT NOT NULL,
		PRIMARY KEY (task_id, seq),
		FOREIGN KEY (task_id) REFERENCES checkpoints(task_id) ON DELETE CASCADE
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
