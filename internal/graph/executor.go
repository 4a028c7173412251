package graph

import (
	"crypto/sha256"
	"encoding/hex"

	gojson "github.com/goccy/go-json"
)

// ExecutorKind tags which variant of Executor is populated.
type ExecutorKind string

const (
	ExecutorFunction ExecutorKind = "function"
	ExecutorProgram  ExecutorKind = "program"
	ExecutorSubgraph ExecutorKind = "subgraph"
)

// FunctionExecutor references a registered callable.
type FunctionExecutor struct {
	Module string `json:"module"`
	Name   string `json:"name"`
	// Serialized is the opaque serialized form of the callable, if any.
	Serialized []byte `json:"serialized,omitempty"`
}

// ProgramExecutor runs an external program.
type ProgramExecutor struct {
	Command   string   `json:"command"`
	Arguments []string `json:"arguments,omitempty"`
	Computer  string   `json:"computer,omitempty"`
}

// SubgraphExecutor runs a nested graph.
type SubgraphExecutor struct {
	Graph string `json:"graph"`
	// Digest identifies the nested graph's definition.
	Digest string `json:"digest,omitempty"`
}

// Executor is an opaque, content-addressed reference to the work a task performs.
// Exactly one variant pointer is set, matching Kind.
type Executor struct {
	Kind     ExecutorKind      `json:"kind"`
	Identity string            `json:"identity"`
	Function *FunctionExecutor `json:"function,omitempty"`
	Program  *ProgramExecutor  `json:"program,omitempty"`
	Subgraph *SubgraphExecutor `json:"subgraph,omitempty"`
}

// NewFunctionExecutor builds a function executor and computes its identity.
func NewFunctionExecutor(module, name string, serialized []byte) Executor {
	fn := &FunctionExecutor{Module: module, Name: name, Serialized: serialized}
	return Executor{Kind: ExecutorFunction, Identity: contentID(ExecutorFunction, fn), Function: fn}
}

// NewProgramExecutor builds an external-program executor and computes its identity.
func NewProgramExecutor(command string, args []string, computer string) Executor {
	p := &ProgramExecutor{Command: command, Arguments: args, Computer: computer}
	return Executor{Kind: ExecutorProgram, Identity: contentID(ExecutorProgram, p), Program: p}
}

// NewSubgraphExecutor builds a sub-graph executor and computes its identity.
func NewSubgraphExecutor(graphName, digest string) Executor {
	sg := &SubgraphExecutor{Graph: graphName, Digest: digest}
	return Executor{Kind: ExecutorSubgraph, Identity: contentID(ExecutorSubgraph, sg), Subgraph: sg}
}

// ContentID computes the identity from the populated variant. It ignores the
// stored Identity, so a decoded executor whose identity is missing or stale
// still addresses its real content. It is empty when no variant matches Kind.
func (e Executor) ContentID() string {
	switch {
	case e.Kind == ExecutorFunction && e.Function != nil:
		return contentID(e.Kind, e.Function)
	case e.Kind == ExecutorProgram && e.Program != nil:
		return contentID(e.Kind, e.Program)
	case e.Kind == ExecutorSubgraph && e.Subgraph != nil:
		return contentID(e.Kind, e.Subgraph)
	}
	return ""
}

// SealExecutors overwrites every task's executor identity with its content ID.
func SealExecutors(s *Snapshot) {
	for _, t := range s.Tasks {
		t.Executor.Identity = t.Executor.ContentID()
	}
}

// contentID is the hex sha256 of the kind followed by the variant's JSON encoding.
func contentID(kind ExecutorKind, variant any) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	data, err := gojson.Marshal(variant)
	if err != nil {
		// Variants are plain structs of strings and bytes.
		panic(err)
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
