package graph

import (
	"errors"
	"fmt"
)

var (
	ErrGraphIntegrity    = errors.New("graph integrity violation")
	ErrStaleConnectivity = errors.New("stale connectivity")
)

// GraphIntegrityError reports a link that names a socket (or task) that does
// not exist. It means the graph was built inconsistently upstream.
type GraphIntegrityError struct {
	Task   string
	Socket string
	Link   *Link
}

func (e *GraphIntegrityError) Error() string {
	if e.Link == nil {
		return fmt.Sprintf("%s: task %q has no socket %q", ErrGraphIntegrity, e.Task, e.Socket)
	}
	return fmt.Sprintf("%s: task %q has no socket %q (link %s)", ErrGraphIntegrity, e.Task, e.Socket, e.Link)
}

func (e *GraphIntegrityError) Unwrap() error { return ErrGraphIntegrity }

// StaleConnectivityError is returned when invalidation is planned against
// connectivity that is missing or does not describe the current graph.
type StaleConnectivityError struct {
	Reason string
}

func (e *StaleConnectivityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrStaleConnectivity, e.Reason)
}

func (e *StaleConnectivityError) Unwrap() error { return ErrStaleConnectivity }

func stalef(format string, args ...any) error {
	return &StaleConnectivityError{Reason: fmt.Sprintf(format, args...)}
}
