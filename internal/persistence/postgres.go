package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aristath/workgraph/internal/graph"
)

const pgSchemaSQL = `
CREATE TABLE IF NOT EXISTS workgraph_snapshots (
    run_id     TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    state      TEXT NOT NULL,
    task_count INTEGER NOT NULL,
    data       BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workgraph_snapshots_updated_at ON workgraph_snapshots(updated_at);
`

// PGStore implements Store using PostgreSQL via pgx. Blobs are stored as
// BYTEA so they round-trip byte for byte.
type PGStore struct {
	db    *pgxpool.Pool
	codec Codec
}

// NewPGStore creates a PGStore backed by the given pgx connection pool.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db, codec: JSONCodec{}}
}

// CreateSchema creates the snapshot table if it doesn't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, pgSchemaSQL)
	return err
}

// DropSchema drops the snapshot table.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS workgraph_snapshots;`)
	return err
}

func (s *PGStore) Exists(ctx context.Context, runID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM workgraph_snapshots WHERE run_id = $1)`, runID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("persistence: exists %s: %w", runID, err)
	}
	return exists, nil
}

func (s *PGStore) Load(ctx context.Context, runID string) (*graph.Snapshot, bool, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM workgraph_snapshots WHERE run_id = $1`, runID,
	).Scan(&data)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persistence: load %s: %w", runID, err)
	}

	snap, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("persistence: decode %s: %w", runID, err)
	}
	return snap, true, nil
}

func (s *PGStore) Save(ctx context.Context, runID string, snap *graph.Snapshot) error {
	st := stamped(snap)
	data, err := s.codec.Marshal(st)
	if err != nil {
		return fmt.Errorf("persistence: encode %s: %w", runID, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("persistence: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO workgraph_snapshots (run_id, name, state, task_count, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			name = EXCLUDED.name,
			state = EXCLUDED.state,
			task_count = EXCLUDED.task_count,
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`,
		runID, st.Name, string(st.State), len(st.Tasks), data, st.Created, st.LastUpdate,
	); err != nil {
		return fmt.Errorf("persistence: upsert %s: %w", runID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("persistence: commit: %w", err)
	}
	applyStamp(snap, st)
	return nil
}

func (s *PGStore) Delete(ctx context.Context, runID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM workgraph_snapshots WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("persistence: delete %s: %w", runID, err)
	}
	return nil
}

// List returns every stored run, most recently updated first.
func (s *PGStore) List(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT run_id, name, state, task_count, created_at, updated_at
		FROM workgraph_snapshots
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("persistence: list: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		var state string
		if err := rows.Scan(&info.ID, &info.Name, &state, &info.Tasks, &info.Created, &info.LastUpdate); err != nil {
			return nil, fmt.Errorf("persistence: scan run: %w", err)
		}
		info.State = graph.RunState(state)
		info.Created = info.Created.UTC()
		info.LastUpdate = info.LastUpdate.UTC()
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// Close releases the pool.
func (s *PGStore) Close() error {
	s.db.Close()
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
