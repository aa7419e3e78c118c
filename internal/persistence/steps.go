package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aristath/stepflow/internal/state"
)

// GetSteps returns the stored execution history of a task in append order.
func (s *SQLiteStore) GetSteps(ctx context.Context, taskID string) ([]state.StepRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT record
		FROM step_records
		WHERE task_id = ?
		ORDER BY seq ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	steps := []state.StepRecord{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		var rec state.StepRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode step: %w", err)
		}
		steps = append(steps, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}
	return steps, nil
}
