// Package persistence stores TaskState checkpoints in SQLite so that runs
// can be inspected after the process exits.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aristath/stepflow/internal/state"
)

const opTimeout = 5 * time.Second

// Summary is the listing entry of a stored checkpoint.
type Summary struct {
	TaskID       string
	SessionID    string
	OriginalTask string
	Status       state.Status
	CurrentStep  int
	MaxSteps     int
	UpdatedAt    time.Time
}

// Store defines the checkpoint persistence interface.
type Store interface {
	// Checkpoints
	SaveCheckpoint(ctx context.Context, st state.TaskState) error
	LoadCheckpoint(ctx context.Context, taskID string) (state.TaskState, error)
	ListCheckpoints(ctx context.Context, sessionID string) ([]Summary, error)
	DeleteCheckpoint(ctx context.Context, taskID string) error

	// Execution history
	GetSteps(ctx context.Context, taskID string) ([]state.StepRecord, error)

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(1)", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing. Each store
// gets its own named database shared by its connections.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite only honours foreign keys via PRAGMA
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
