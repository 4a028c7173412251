package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/workgraph/internal/graph"
)

// TaskRecord is the execution engine's view of one task of a run.
type TaskRecord struct {
	RunID     string
	Task      string
	State     graph.TaskState
	Process   string
	Result    string
	Error     string
	UpdatedAt time.Time
}

// SetTaskState saves or updates the execution state of a task.
func (s *SQLiteStore) SetTaskState(ctx context.Context, rec TaskRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_states (run_id, task, state, process, result, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(run_id, task) DO UPDATE SET
			state = excluded.state,
			process = excluded.process,
			result = excluded.result,
			error = excluded.error,
			updated_at = CURRENT_TIMESTAMP
	`, rec.RunID, rec.Task, string(rec.State), rec.Process, rec.Result, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to upsert task state: %w", err)
	}
	return nil
}

// TaskState returns the execution state of a task.
func (s *SQLiteStore) TaskState(ctx context.Context, runID, task string) (TaskRecord, bool, error) {
	rec := TaskRecord{RunID: runID, Task: task}
	var state string
	err := s.db.QueryRowContext(ctx, `
		SELECT state, process, result, error, updated_at
		FROM task_states
		WHERE run_id = ? AND task = ?
	`, runID, task).Scan(&state, &rec.Process, &rec.Result, &rec.Error, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskRecord{}, false, nil
	}
	if err != nil {
		return TaskRecord{}, false, fmt.Errorf("failed to query task state: %w", err)
	}
	rec.State = graph.TaskState(state)
	return rec, true, nil
}

// ListTaskStates returns every task state recorded for a run, ordered by task name.
func (s *SQLiteStore) ListTaskStates(ctx context.Context, runID string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task, state, process, result, error, updated_at
		FROM task_states
		WHERE run_id = ?
		ORDER BY task
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task states: %w", err)
	}
	defer rows.Close()

	var recs []TaskRecord
	for rows.Next() {
		rec := TaskRecord{RunID: runID}
		var state string
		if err := rows.Scan(&rec.Task, &state, &rec.Process, &rec.Result, &rec.Error, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task state: %w", err)
		}
		rec.State = graph.TaskState(state)
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task states: %w", err)
	}

	return recs, nil
}

// ResetTaskState discards the cached result of a task and marks it pending.
func (s *SQLiteStore) ResetTaskState(ctx context.Context, runID, task string) error {
	return s.SetTaskState(ctx, TaskRecord{RunID: runID, Task: task, State: graph.TaskPending})
}
