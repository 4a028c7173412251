package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v3"
	gojson "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"

	"github.com/aristath/workgraph/internal/graph"
)

const (
	badgerSnapshotPrefix = "snapshot/"
	badgerInfoPrefix     = "info/"
)

// BadgerStore implements Store on an embedded Badger database. The snapshot
// blob and its RunInfo are written in the same transaction.
type BadgerStore struct {
	db    *badger.DB
	codec Codec
}

// NewBadgerStore opens (or creates) a Badger database in dir.
func NewBadgerStore(dir string, logger hclog.Logger) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return openBadger(badger.DefaultOptions(dir), logger)
}

// NewBadgerMemoryStore creates an in-memory Badger store for testing.
func NewBadgerMemoryStore(logger hclog.Logger) (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true), logger)
}

func openBadger(opts badger.Options, logger hclog.Logger) (*BadgerStore, error) {
	if logger == nil {
		opts = opts.WithLogger(nil)
	} else {
		opts = opts.WithLogger(&badgerLogger{logger: logger.Named("badger")})
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db, codec: JSONCodec{}}, nil
}

func (s *BadgerStore) Exists(ctx context.Context, runID string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(badgerSnapshotPrefix + runID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return true, nil
}

func (s *BadgerStore) Load(ctx context.Context, runID string) (*graph.Snapshot, bool, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerSnapshotPrefix + runID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snap, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode snapshot %s: %w", runID, err)
	}
	return snap, true, nil
}

func (s *BadgerStore) Save(ctx context.Context, runID string, snap *graph.Snapshot) error {
	st := stamped(snap)
	data, err := s.codec.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", runID, err)
	}
	info, err := gojson.Marshal(infoOf(runID, st))
	if err != nil {
		return fmt.Errorf("failed to encode run info %s: %w", runID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(badgerSnapshotPrefix+runID), data); err != nil {
			return err
		}
		return txn.Set([]byte(badgerInfoPrefix+runID), info)
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	applyStamp(snap, st)
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, runID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(badgerSnapshotPrefix + runID)); err != nil {
			return err
		}
		return txn.Delete([]byte(badgerInfoPrefix + runID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List returns every stored run, most recently updated first.
func (s *BadgerStore) List(ctx context.Context) ([]RunInfo, error) {
	var runs []RunInfo
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerInfoPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var info RunInfo
				if err := gojson.Unmarshal(val, &info); err != nil {
					return err
				}
				runs = append(runs, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].LastUpdate.After(runs[j].LastUpdate)
	})
	return runs, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes Badger's printf-style logging into hclog.
type badgerLogger struct {
	logger hclog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}
