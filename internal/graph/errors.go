package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is returned before the first Seed.
	ErrNoSession = errors.New("graph: no seed k-mer")
	// ErrUnknownNode is returned for IDs not in the current graph.
	ErrUnknownNode = errors.New("graph: unknown node")
	// ErrNotExpandable is returned when a node is not UNEXPLORED.
	ErrNotExpandable = errors.New("graph: node is not expandable")
	// ErrStale is returned when a re-seed superseded an expansion in flight.
	ErrStale = errors.New("graph: result superseded by a newer seed")
)

// PreconditionViolation reports a path too short for the overlap an
// operation needs. The graph is left untouched.
type PreconditionViolation struct {
	Op   string
	Node NodeID
	Need int
	Have int
}

func (e *PreconditionViolation) Error() string {
	return fmt.Sprintf("graph: %s %s: path length %d, need at least %d", e.Op, e.Node, e.Have, e.Need)
}
