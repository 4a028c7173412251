package graph

import (
	"encoding/json"
	"sort"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Reserved socket names.
const (
	// ControlSocket carries pure ordering dependencies (a task's wait list).
	// Control links never transport data.
	ControlSocket = "_wait"
	// OutputsSocket is the aggregate output of a task.
	OutputsSocket = "_outputs"
)

// ActionReset marks a task whose cached result must be discarded.
const ActionReset = "reset"

// RunState is the lifecycle state of a run.
type RunState string

const (
	RunCreated  RunState = "CREATED"
	RunRunning  RunState = "RUNNING"
	RunFinished RunState = "FINISHED"
	RunFailed   RunState = "FAILED"
)

// TaskState is the execution state of a single task.
type TaskState string

const (
	TaskPending  TaskState = "PENDING"  // Waiting to be (re)submitted
	TaskRunning  TaskState = "RUNNING"  // Process submitted
	TaskFinished TaskState = "FINISHED" // Completed with results
	TaskFailed   TaskState = "FAILED"   // Process excepted or non-zero exit
	TaskSkipped  TaskState = "SKIPPED"  // Intentionally not run
)

// NodeType classifies what a task's executor is.
type NodeType string

const (
	NodeNormal       NodeType = "normal"
	NodeCalcFunction NodeType = "calcfunction"
	NodeWorkFunction NodeType = "workfunction"
	NodeCalcJob      NodeType = "calcjob"
	NodeWorkChain    NodeType = "workchain"
	NodeGraph        NodeType = "graph"
	NodeShell        NodeType = "shell"
)

// Link is a directed edge (FromNode, FromSocket) -> (ToNode, ToSocket).
// Links have no identity beyond their fields.
type Link struct {
	FromNode   string `json:"from_node"`
	FromSocket string `json:"from_socket"`
	ToNode     string `json:"to_node"`
	ToSocket   string `json:"to_socket"`
}

// IsControl reports whether the link is a control dependency rather than a data edge.
func (l Link) IsControl() bool {
	return l.FromSocket == ControlSocket && l.ToSocket == ControlSocket
}

func (l Link) String() string {
	return l.FromNode + "." + l.FromSocket + " -> " + l.ToNode + "." + l.ToSocket
}

// Socket is a named input or output of a task.
type Socket struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value,omitempty"` // Bound value, inputs only
	Links []Link          `json:"links"`
}

// ContextBinding copies a task output into the run context once the task finishes.
type ContextBinding struct {
	Output string `json:"output"`
	Key    string `json:"key"`
}

// Task is a unit of work in a run.
type Task struct {
	Name       string                     `json:"name"`
	Identifier string                     `json:"identifier"`
	NodeType   NodeType                   `json:"node_type"`
	Inputs     []*Socket                  `json:"inputs"`
	Outputs    []*Socket                  `json:"outputs"`
	Executor   Executor                   `json:"executor"`
	Properties map[string]json.RawMessage `json:"properties,omitempty"`
	Wait       []string                   `json:"wait,omitempty"`
	ToContext  []ContextBinding           `json:"to_context,omitempty"`

	// Execution-derived fields, never part of the fingerprint.
	Action  string    `json:"action,omitempty"`
	State   TaskState `json:"state,omitempty"`
	Process string    `json:"process,omitempty"` // Process handle, empty until submission
}

// Input returns the input socket with the given name.
func (t *Task) Input(name string) (*Socket, bool) {
	return findSocket(t.Inputs, name)
}

// Output returns the output socket with the given name.
func (t *Task) Output(name string) (*Socket, bool) {
	return findSocket(t.Outputs, name)
}

// SetInput binds a value to an input socket. The value is stored as JSON.
func (t *Task) SetInput(name string, value any) error {
	sock, ok := t.Input(name)
	if !ok {
		return &GraphIntegrityError{Task: t.Name, Socket: name}
	}
	raw, err := gojson.Marshal(value)
	if err != nil {
		return err
	}
	sock.Value = raw
	return nil
}

// ResetExecution clears the execution-derived state so the task runs again.
func (t *Task) ResetExecution() {
	t.Action = ""
	t.State = TaskPending
	t.Process = ""
}

func findSocket(sockets []*Socket, name string) (*Socket, bool) {
	for _, s := range sockets {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Snapshot is one version of a run's task graph.
type Snapshot struct {
	UUID         string                     `json:"uuid"`
	Name         string                     `json:"name"`
	State        RunState                   `json:"state"`
	Tasks        map[string]*Task           `json:"tasks"`
	Links        []Link                     `json:"links"`
	Context      map[string]json.RawMessage `json:"context,omitempty"`
	Connectivity *Connectivity              `json:"connectivity,omitempty"`
	Created      time.Time                  `json:"created"`
	LastUpdate   time.Time                  `json:"lastUpdate"`
}

// NewSnapshot creates an empty run with a fresh UUID.
func NewSnapshot(name string) *Snapshot {
	return &Snapshot{
		UUID:  uuid.NewString(),
		Name:  name,
		State: RunCreated,
		Tasks: make(map[string]*Task),
	}
}

// AddTask adds a task to the snapshot, replacing any task with the same name.
func (s *Snapshot) AddTask(t *Task) {
	if s.Tasks == nil {
		s.Tasks = make(map[string]*Task)
	}
	s.Tasks[t.Name] = t
}

// AddLink appends a link. Endpoints are not validated here; dangling links are
// pruned and unknown sockets are rejected when the snapshot is wired.
func (s *Snapshot) AddLink(fromNode, fromSocket, toNode, toSocket string) Link {
	l := Link{FromNode: fromNode, FromSocket: fromSocket, ToNode: toNode, ToSocket: toSocket}
	s.Links = append(s.Links, l)
	return l
}

// SetContext stores a run context value as JSON.
func (s *Snapshot) SetContext(key string, value any) error {
	raw, err := gojson.Marshal(value)
	if err != nil {
		return err
	}
	if s.Context == nil {
		s.Context = make(map[string]json.RawMessage)
	}
	s.Context[key] = raw
	return nil
}

// SetAction applies an action directive to every task.
func (s *Snapshot) SetAction(action string) {
	for _, t := range s.Tasks {
		t.Action = action
	}
}

// TaskNames returns the task names in sorted order.
func (s *Snapshot) TaskNames() []string {
	names := make([]string, 0, len(s.Tasks))
	for name := range s.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
