package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	gojson "github.com/goccy/go-json"
	"github.com/mitchellh/hashstructure/v2"
)

type inputView struct {
	Name  string
	Value string
	Links []string
}

// taskView is the configuration of a task that decides whether it must rerun.
// Process handle, state, action and timestamps are deliberately absent.
type taskView struct {
	Identifier       string
	NodeType         string
	ExecutorKind     string
	ExecutorIdentity string
	Properties       map[string]string
	ToContext        []string
	Inputs           []inputView
	Outputs          []string
}

// Fingerprint returns a hash of the task's normalized configuration: executor
// content ID, node type, properties, context bindings, input values, inbound
// links and output names. Two tasks with the same fingerprint are
// interchangeable for caching purposes.
func Fingerprint(t *Task) (uint64, error) {
	view := taskView{
		Identifier:       t.Identifier,
		NodeType:         string(t.NodeType),
		ExecutorKind:     string(t.Executor.Kind),
		ExecutorIdentity: t.Executor.ContentID(),
		Properties:       make(map[string]string, len(t.Properties)),
	}

	for k, v := range t.Properties {
		c, err := canonicalJSON(v)
		if err != nil {
			return 0, fmt.Errorf("task %q property %q: %w", t.Name, k, err)
		}
		view.Properties[k] = c
	}

	for _, b := range t.ToContext {
		view.ToContext = append(view.ToContext, b.Output+"->"+b.Key)
	}

	for _, in := range t.Inputs {
		value, err := canonicalJSON(in.Value)
		if err != nil {
			return 0, fmt.Errorf("task %q input %q: %w", t.Name, in.Name, err)
		}
		iv := inputView{Name: in.Name, Value: value}
		for _, l := range in.Links {
			iv.Links = append(iv.Links, l.FromNode+"."+l.FromSocket)
		}
		sort.Strings(iv.Links)
		view.Inputs = append(view.Inputs, iv)
	}

	for _, out := range t.Outputs {
		view.Outputs = append(view.Outputs, out.Name)
	}

	return hashstructure.Hash(view, hashstructure.FormatV2, nil)
}

// canonicalJSON re-encodes raw so that equal values compare equal as strings
// regardless of whitespace or object key order.
func canonicalJSON(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}
	dec := gojson.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	out, err := gojson.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
