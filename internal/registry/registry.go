// Package registry maps task identifiers to their descriptors and builds
// tasks that carry the built-in control sockets.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/aristath/workgraph/internal/graph"
)

// ErrUnknownIdentifier is returned when no descriptor is registered under an identifier.
var ErrUnknownIdentifier = errors.New("unknown task identifier")

// Descriptor is what the registration layer knows about a task identifier.
type Descriptor struct {
	Identifier string         `json:"identifier"`
	NodeType   graph.NodeType `json:"node_type" yaml:"node_type"`
	Inputs     []string       `json:"inputs"`
	Outputs    []string       `json:"outputs"`
	Executor   graph.Executor `json:"executor"`
}

// Registry is a thread-safe set of descriptors keyed by identifier.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

// Register adds or replaces a descriptor.
func (r *Registry) Register(d Descriptor) error {
	if d.Identifier == "" {
		return fmt.Errorf("descriptor has no identifier")
	}
	if d.NodeType == "" {
		d.NodeType = graph.NodeNormal
	}
	d.Executor.Identity = d.Executor.ContentID()
	for _, name := range append(append([]string(nil), d.Inputs...), d.Outputs...) {
		if name == graph.ControlSocket || name == graph.OutputsSocket {
			return fmt.Errorf("descriptor %q: socket name %q is reserved", d.Identifier, name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.Identifier] = d
	return nil
}

// LoadFile builds a registry from a YAML or JSON file (by extension) holding
// a list of descriptors.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptors: %w", err)
	}

	var descriptors []Descriptor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &descriptors)
	case ".json":
		err = gojson.Unmarshal(data, &descriptors)
	default:
		return nil, fmt.Errorf("unsupported descriptors format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	r := New()
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return r, nil
}

// Descriptor returns the descriptor registered under identifier.
func (r *Registry) Descriptor(identifier string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[identifier]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownIdentifier, identifier)
	}
	return d, nil
}

// Identifiers lists the registered identifiers in sorted order.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewTask builds a task from the descriptor registered under identifier and
// binds the given input values. Every task gets a _wait input plus _wait and
// _outputs outputs in addition to the declared sockets.
func (r *Registry) NewTask(name, identifier string, inputs map[string]any) (*graph.Task, error) {
	d, err := r.Descriptor(identifier)
	if err != nil {
		return nil, err
	}

	task := &graph.Task{
		Name:       name,
		Identifier: d.Identifier,
		NodeType:   d.NodeType,
		Executor:   d.Executor,
		State:      graph.TaskPending,
	}
	for _, in := range d.Inputs {
		task.Inputs = append(task.Inputs, &graph.Socket{Name: in})
	}
	task.Inputs = append(task.Inputs, &graph.Socket{Name: graph.ControlSocket})
	for _, out := range d.Outputs {
		task.Outputs = append(task.Outputs, &graph.Socket{Name: out})
	}
	task.Outputs = append(task.Outputs,
		&graph.Socket{Name: graph.ControlSocket},
		&graph.Socket{Name: graph.OutputsSocket},
	)

	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := task.SetInput(k, inputs[k]); err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
	}
	return task, nil
}

// Resolve completes a submitted task from the descriptor registered under its
// identifier. Node type and executor are taken from the descriptor, declared
// sockets missing from t are added in descriptor order, and a socket the
// descriptor does not declare is a *graph.GraphIntegrityError. Values and
// links already bound to declared sockets are kept.
func (r *Registry) Resolve(t *graph.Task) error {
	d, err := r.Descriptor(t.Identifier)
	if err != nil {
		return err
	}

	inputs, err := resolveSockets(t.Name, t.Inputs, append(append([]string(nil), d.Inputs...), graph.ControlSocket))
	if err != nil {
		return err
	}
	outputs, err := resolveSockets(t.Name, t.Outputs,
		append(append([]string(nil), d.Outputs...), graph.ControlSocket, graph.OutputsSocket))
	if err != nil {
		return err
	}

	t.NodeType = d.NodeType
	t.Executor = d.Executor
	t.Inputs = inputs
	t.Outputs = outputs
	return nil
}

func resolveSockets(task string, have []*graph.Socket, declared []string) ([]*graph.Socket, error) {
	byName := make(map[string]*graph.Socket, len(have))
	for _, s := range have {
		byName[s.Name] = s
	}
	known := make(map[string]struct{}, len(declared))
	out := make([]*graph.Socket, 0, len(declared))
	for _, name := range declared {
		known[name] = struct{}{}
		if s, ok := byName[name]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, &graph.Socket{Name: name})
	}
	for _, s := range have {
		if _, ok := known[s.Name]; !ok {
			return nil, &graph.GraphIntegrityError{Task: task, Socket: s.Name}
		}
	}
	return out, nil
}
