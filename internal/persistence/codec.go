package persistence

import (
	gojson "github.com/goccy/go-json"

	"github.com/aristath/workgraph/internal/graph"
)

// Codec converts snapshots to and from their stored blob form.
type Codec interface {
	Marshal(s *graph.Snapshot) ([]byte, error)
	Unmarshal(data []byte) (*graph.Snapshot, error)
}

// JSONCodec stores snapshots as JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(s *graph.Snapshot) ([]byte, error) {
	return gojson.Marshal(s)
}

func (JSONCodec) Unmarshal(data []byte) (*graph.Snapshot, error) {
	var s graph.Snapshot
	if err := gojson.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Tasks == nil {
		s.Tasks = make(map[string]*graph.Task)
	}
	return &s, nil
}
