// Package graph holds the task-graph model of a run and the pure passes that
// prepare a submitted graph for persistence: wait-list normalization, socket
// wiring, connectivity analysis, diffing against a previous snapshot and
// invalidation planning.
//
// None of the passes perform I/O. Wire returns a new snapshot instead of
// mutating its input, and Analyze, Diff and Planner only read, so they are
// safe to run concurrently on snapshots that are not being modified.
package graph
