package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Topic() string
	RunID() string
}

// Topic constants
const (
	TopicRun  = "run"
	TopicTask = "task"
)

// Event type constants
const (
	EventTypeSnapshotDiffed  = "snapshot.diffed"
	EventTypeSnapshotSaved   = "snapshot.saved"
	EventTypeTaskReset       = "task.reset"
	EventTypeTaskResetFailed = "task.reset_failed"
)

// SnapshotDiffedEvent is published when a submitted graph has been compared
// with the stored version of the run.
type SnapshotDiffedEvent struct {
	Run       string
	New       []string
	Modified  []string
	Removed   []string
	Planned   []string // Tasks selected for reset
	Timestamp time.Time
}

func (e SnapshotDiffedEvent) EventType() string { return EventTypeSnapshotDiffed }
func (e SnapshotDiffedEvent) Topic() string     { return TopicRun }
func (e SnapshotDiffedEvent) RunID() string     { return e.Run }

// SnapshotSavedEvent is published after a snapshot has been persisted.
type SnapshotSavedEvent struct {
	Run          string
	Name         string
	Tasks        int
	Reset        int
	FailedResets int
	Duration     time.Duration
	Timestamp    time.Time
}

func (e SnapshotSavedEvent) EventType() string { return EventTypeSnapshotSaved }
func (e SnapshotSavedEvent) Topic() string     { return TopicRun }
func (e SnapshotSavedEvent) RunID() string     { return e.Run }

// TaskResetEvent is published when the engine discarded a task's result.
type TaskResetEvent struct {
	Run       string
	Task      string
	Timestamp time.Time
}

func (e TaskResetEvent) EventType() string { return EventTypeTaskReset }
func (e TaskResetEvent) Topic() string     { return TopicTask }
func (e TaskResetEvent) RunID() string     { return e.Run }

// TaskResetFailedEvent is published when a reset could not be performed.
// The task stays flagged for reset in the saved snapshot.
type TaskResetFailedEvent struct {
	Run       string
	Task      string
	Err       error
	Timestamp time.Time
}

func (e TaskResetFailedEvent) EventType() string { return EventTypeTaskResetFailed }
func (e TaskResetFailedEvent) Topic() string     { return TopicTask }
func (e TaskResetFailedEvent) RunID() string     { return e.Run }
