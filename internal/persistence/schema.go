package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		state TEXT NOT NULL,
		task_count INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_updated_at ON snapshots(updated_at);

	CREATE TABLE IF NOT EXISTS task_states (
		run_id TEXT NOT NULL,
		task TEXT NOT NULL,
		state TEXT NOT NULL,
		process TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, task)
	);

	CREATE INDEX IF NOT EXISTS idx_task_states_run_id ON task_states(run_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
