// Package saver persists a run's task graph incrementally. Each save
// normalizes and wires the submitted graph, compares it with the stored
// version, resets the tasks whose results can no longer be trusted and
// writes the new version in one atomic store operation.
package saver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/workgraph/internal/engine"
	"github.com/aristath/workgraph/internal/events"
	"github.com/aristath/workgraph/internal/graph"
	"github.com/aristath/workgraph/internal/persistence"
)

// ErrRestartNotFound is returned when the run named by WithRestartFrom has no stored snapshot.
var ErrRestartNotFound = errors.New("restart source not found")

// Resolver completes a submitted task from its registered description.
type Resolver interface {
	Resolve(t *graph.Task) error
}

// Config wires a Saver.
type Config struct {
	Store  persistence.Store
	Engine engine.Engine    // nil resets tasks in the snapshot only
	Events events.Publisher // optional
	Logger hclog.Logger     // optional
	// Resolver, when set, completes every submitted task before wiring; a
	// task it rejects aborts the save.
	Resolver Resolver
	// Planner decides which tasks a modification invalidates.
	Planner graph.Planner
	// ResetConcurrency bounds the engine resets issued in parallel (default 4).
	ResetConcurrency int
}

// Saver runs the save protocol. It is safe for concurrent use; saves of the
// same run are serialized.
type Saver struct {
	store       persistence.Store
	engine      engine.Engine
	events      events.Publisher
	logger      hclog.Logger
	resolver    Resolver
	planner     graph.Planner
	concurrency int
	locks       *RunLocks
}

// New creates a Saver.
func New(cfg Config) *Saver {
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	concurrency := cfg.ResetConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Saver{
		store:       cfg.Store,
		engine:      cfg.Engine,
		events:      cfg.Events,
		logger:      logger.Named("saver"),
		resolver:    cfg.Resolver,
		planner:     cfg.Planner,
		concurrency: concurrency,
		locks:       NewRunLocks(),
	}
}

// Option adjusts a single save.
type Option func(*saveOptions)

type saveOptions struct {
	restartFrom string
}

// WithRestartFrom diffs the submitted graph against the stored snapshot of
// another run instead of the run's own previous version. Execution state of
// the unchanged tasks is taken over from that run.
func WithRestartFrom(runID string) Option {
	return func(o *saveOptions) { o.restartFrom = runID }
}

// Result describes what a save did.
type Result struct {
	// Snapshot is the version that was persisted.
	Snapshot *graph.Snapshot
	// Diff is nil when there was no previous version to compare with.
	Diff *graph.DiffResult
	// Reset holds every task planned for reset.
	Reset graph.NameSet
	// FailedResets holds the planned tasks the engine could not reset. They
	// stay flagged with the reset action and are retried by the next save.
	FailedResets graph.NameSet
}

// Save persists snap as the new version of run snap.UUID. snap itself is not
// modified; the persisted version is returned in the Result.
//
// A task the Resolver rejects, a *graph.GraphIntegrityError, a
// *graph.StaleConnectivityError or a store error aborts the save before
// anything is written, leaving the previous version in place. Engine reset
// failures do not abort the save.
func (s *Saver) Save(ctx context.Context, snap *graph.Snapshot, opts ...Option) (*Result, error) {
	if snap == nil || snap.UUID == "" {
		return nil, fmt.Errorf("snapshot has no run id")
	}
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	runID := snap.UUID
	if err := s.locks.Lock(ctx, runID); err != nil {
		return nil, fmt.Errorf("locking run %s: %w", runID, err)
	}
	defer s.locks.Unlock(runID)

	start := time.Now()
	log := s.logger.With("run", runID)

	work := graph.Clone(snap)
	if s.resolver != nil {
		for _, name := range work.TaskNames() {
			if err := s.resolver.Resolve(work.Tasks[name]); err != nil {
				return nil, fmt.Errorf("resolving task %q of run %s: %w", name, runID, err)
			}
		}
	}
	graph.SealExecutors(work)
	graph.Normalize(work)
	graph.PruneDangling(work)
	wired, err := graph.Wire(work)
	if err != nil {
		return nil, fmt.Errorf("wiring run %s: %w", runID, err)
	}
	wired.Connectivity = graph.Analyze(wired)

	prevID := runID
	if o.restartFrom != "" {
		prevID = o.restartFrom
	}
	prev, found, err := s.store.Load(ctx, prevID)
	if err != nil {
		return nil, fmt.Errorf("loading previous version of %s: %w", prevID, err)
	}
	if !found && o.restartFrom != "" {
		return nil, fmt.Errorf("%w: %s", ErrRestartNotFound, o.restartFrom)
	}

	res := &Result{
		Snapshot:     wired,
		Reset:        make(graph.NameSet),
		FailedResets: make(graph.NameSet),
	}

	if found {
		if err := s.reconcile(ctx, log, runID, prev, res); err != nil {
			return nil, err
		}
		if prevID == runID {
			wired.Created = prev.Created
		} else {
			wired.Created = time.Time{}
		}
	}

	if err := s.store.Save(ctx, runID, wired); err != nil {
		return nil, fmt.Errorf("saving run %s: %w", runID, err)
	}

	log.Info("snapshot saved", "tasks", len(wired.Tasks), "reset", len(res.Reset),
		"failed_resets", len(res.FailedResets), "duration", time.Since(start))
	s.publish(events.SnapshotSavedEvent{
		Run:          runID,
		Name:         wired.Name,
		Tasks:        len(wired.Tasks),
		Reset:        len(res.Reset),
		FailedResets: len(res.FailedResets),
		Duration:     time.Since(start),
		Timestamp:    time.Now(),
	})
	return res, nil
}

// reconcile diffs res.Snapshot against prev, carries execution state of
// untouched tasks forward and resets every planned task.
func (s *Saver) reconcile(ctx context.Context, log hclog.Logger, runID string, prev *graph.Snapshot, res *Result) error {
	cur := res.Snapshot

	diff, err := graph.Diff(prev, cur)
	if err != nil {
		return fmt.Errorf("diffing run %s: %w", runID, err)
	}
	res.Diff = diff

	modified := make(graph.NameSet, len(diff.Modified))
	modified.AddAll(diff.Modified)
	for name, task := range cur.Tasks {
		before, existed := prev.Tasks[name]
		if task.Action == graph.ActionReset {
			modified.Add(name)
		}
		if !existed {
			continue
		}
		if before.Action == graph.ActionReset {
			// A reset that failed last time is retried.
			modified.Add(name)
		}
		if !diff.Modified.Has(name) && task.Process == "" {
			task.Process = before.Process
			task.State = before.State
		}
	}

	plan, err := s.planner.Plan(modified, cur.Connectivity)
	if err != nil {
		return fmt.Errorf("planning resets for run %s: %w", runID, err)
	}
	res.Reset = plan

	s.publish(events.SnapshotDiffedEvent{
		Run:       runID,
		New:       diff.New.Sorted(),
		Modified:  diff.Modified.Sorted(),
		Removed:   diff.Removed.Sorted(),
		Planned:   plan.Sorted(),
		Timestamp: time.Now(),
	})
	if len(plan) == 0 {
		return nil
	}
	log.Debug("resetting tasks", "tasks", plan.Sorted())

	failed := s.resetTasks(ctx, runID, plan)
	for _, name := range plan.Sorted() {
		task := cur.Tasks[name]
		if err, ok := failed[name]; ok {
			task.Action = graph.ActionReset
			res.FailedResets.Add(name)
			log.Warn("task reset failed, keeping it flagged", "task", name, "error", err)
			s.publish(events.TaskResetFailedEvent{Run: runID, Task: name, Err: err, Timestamp: time.Now()})
			continue
		}
		task.ResetExecution()
		s.publish(events.TaskResetEvent{Run: runID, Task: name, Timestamp: time.Now()})
	}
	return nil
}

// resetTasks asks the engine to reset every planned task with bounded
// concurrency and returns the failures by task name.
func (s *Saver) resetTasks(ctx context.Context, runID string, plan graph.NameSet) map[string]error {
	failed := make(map[string]error)
	if s.engine == nil {
		return failed
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, name := range plan.Sorted() {
		g.Go(func() error {
			if err := s.engine.ResetTask(ctx, runID, name); err != nil {
				mu.Lock()
				failed[name] = err
				mu.Unlock()
			}
			// Failures are collected, never propagated: other resets must still run.
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// Load returns the stored snapshot of runID.
func (s *Saver) Load(ctx context.Context, runID string) (*graph.Snapshot, bool, error) {
	return s.store.Load(ctx, runID)
}

// Project returns the viewer projection of the stored snapshot of runID.
func (s *Saver) Project(ctx context.Context, runID string) (graph.View, bool, error) {
	snap, found, err := s.store.Load(ctx, runID)
	if err != nil || !found {
		return graph.View{}, found, err
	}
	return graph.Project(snap), true, nil
}

// Delete removes a run, waiting for any save of it in progress.
func (s *Saver) Delete(ctx context.Context, runID string) error {
	if err := s.locks.Lock(ctx, runID); err != nil {
		return fmt.Errorf("locking run %s: %w", runID, err)
	}
	defer s.locks.Unlock(runID)
	return s.store.Delete(ctx, runID)
}

func (s *Saver) publish(ev events.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}
