package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/workgraph/internal/graph"
)

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Exists reports whether a snapshot is stored under runID.
func (s *SQLiteStore) Exists(ctx context.Context, runID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM snapshots WHERE run_id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return true, nil
}

// Load returns the snapshot stored under runID.
func (s *SQLiteStore) Load(ctx context.Context, runID string) (*graph.Snapshot, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query snapshot: %w", err)
	}

	snap, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode snapshot %s: %w", runID, err)
	}
	return snap, true, nil
}

// Save overwrites the snapshot stored under runID in a single transaction.
// Created and LastUpdate are stamped on snap once the transaction commits.
func (s *SQLiteStore) Save(ctx context.Context, runID string, snap *graph.Snapshot) error {
	st := stamped(snap)
	data, err := s.codec.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", runID, err)
	}

	// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, name, state, task_count, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			name = excluded.name,
			state = excluded.state,
			task_count = excluded.task_count,
			data = excluded.data,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, runID, st.Name, string(st.State), len(st.Tasks), data,
		st.Created.Format(timeLayout), st.LastUpdate.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	applyStamp(snap, st)
	return nil
}

// Delete removes the snapshot and the task states of runID.
func (s *SQLiteStore) Delete(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_states WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete task states: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List returns every stored run, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, name, state, task_count, created_at, updated_at
		FROM snapshots
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		var state, created, updated string
		if err := rows.Scan(&info.ID, &info.Name, &state, &info.Tasks, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		info.State = graph.RunState(state)
		if info.Created, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("bad created_at for %s: %w", info.ID, err)
		}
		if info.LastUpdate, err = time.Parse(timeLayout, updated); err != nil {
			return nil, fmt.Errorf("bad updated_at for %s: %w", info.ID, err)
		}
		runs = append(runs, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return runs, nil
}
