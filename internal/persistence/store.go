package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aristath/workgraph/internal/graph"
)

// ErrUnknownBackend is returned by Open for an unrecognised store backend.
var ErrUnknownBackend = errors.New("unknown store backend")

// RunInfo summarises a persisted run without decoding its graph.
type RunInfo struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	State      graph.RunState `json:"state"`
	Tasks      int            `json:"tasks"`
	Created    time.Time      `json:"created"`
	LastUpdate time.Time      `json:"lastUpdate"`
}

// Store persists whole run snapshots keyed by run id.
//
// Save is an atomic overwrite: a concurrent or later Load observes either the
// previous snapshot or the new one, never a mix. Load reports a missing run
// with found == false rather than an error.
type Store interface {
	Exists(ctx context.Context, runID string) (bool, error)
	Load(ctx context.Context, runID string) (snap *graph.Snapshot, found bool, err error)
	Save(ctx context.Context, runID string, snap *graph.Snapshot) error
	Delete(ctx context.Context, runID string) error
	List(ctx context.Context) ([]RunInfo, error)
	Close() error
}

// stamped returns a shallow copy of s with Created set when it is zero and
// LastUpdate refreshed, both in UTC. s itself is untouched until the write
// commits; see applyStamp.
func stamped(s *graph.Snapshot) *graph.Snapshot {
	out := *s
	now := time.Now().UTC()
	if out.Created.IsZero() {
		out.Created = now
	} else {
		out.Created = out.Created.UTC()
	}
	out.LastUpdate = now
	return &out
}

// applyStamp copies the persisted timestamps back onto the caller's snapshot.
func applyStamp(dst, saved *graph.Snapshot) {
	dst.Created = saved.Created
	dst.LastUpdate = saved.LastUpdate
}

func infoOf(runID string, s *graph.Snapshot) RunInfo {
	return RunInfo{
		ID:         runID,
		Name:       s.Name,
		State:      s.State,
		Tasks:      len(s.Tasks),
		Created:    s.Created,
		LastUpdate: s.LastUpdate,
	}
}

// SQLiteStore implements Store using SQLite. It also keeps the execution
// engine's per-task state table.
type SQLiteStore struct {
	db    *sql.DB
	codec Codec
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return openSQLite(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Each store gets its own named database shared by its connections.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	return openSQLite(ctx, connStr)
}

func openSQLite(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Note: modernc.org/sqlite doesn't support _foreign_keys in connection string
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db, codec: JSONCodec{}}

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
