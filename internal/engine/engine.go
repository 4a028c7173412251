// Package engine is the boundary to the execution engine that owns task
// results. The saver only ever asks it to discard a task's cached result.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/aristath/workgraph/internal/graph"
	"github.com/aristath/workgraph/internal/persistence"
)

// ErrRejected marks a reset the engine refused outright. Rejections are not retried.
var ErrRejected = errors.New("reset rejected by engine")

// Engine resets tasks so that they run again on the next execution.
type Engine interface {
	ResetTask(ctx context.Context, runID, task string) error
}

// StateStore records per-task execution state. persistence.SQLiteStore implements it.
type StateStore interface {
	SetTaskState(ctx context.Context, rec persistence.TaskRecord) error
	TaskState(ctx context.Context, runID, task string) (persistence.TaskRecord, bool, error)
	ListTaskStates(ctx context.Context, runID string) ([]persistence.TaskRecord, error)
	ResetTaskState(ctx context.Context, runID, task string) error
}

// Local is an Engine backed directly by a StateStore.
type Local struct {
	states StateStore
	logger hclog.Logger
}

// NewLocal creates an engine that resets tasks in states.
func NewLocal(states StateStore, logger hclog.Logger) *Local {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Local{states: states, logger: logger.Named("engine")}
}

// ResetTask marks the task pending and drops its process handle and result.
// A task that is currently running cannot be reset.
func (e *Local) ResetTask(ctx context.Context, runID, task string) error {
	rec, found, err := e.states.TaskState(ctx, runID, task)
	if err != nil {
		return fmt.Errorf("reading state of %s/%s: %w", runID, task, err)
	}
	if found && rec.State == graph.TaskRunning {
		return fmt.Errorf("%w: task %s is running as %s", ErrRejected, task, rec.Process)
	}
	if err := e.states.ResetTaskState(ctx, runID, task); err != nil {
		return fmt.Errorf("resetting %s/%s: %w", runID, task, err)
	}
	e.logger.Debug("task reset", "run", runID, "task", task)
	return nil
}
