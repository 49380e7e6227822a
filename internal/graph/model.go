package graph

import (
	"fmt"
	"strconv"
	"strings"

	"kmerwalk/internal/epoch"
)

// NodeID identifies a node. IDs come from a counter that is never reset, so
// an ID is never reused across seeds.
type NodeID uint64

// Root is the parent of the seed node.
const Root NodeID = ^NodeID(0)

func (id NodeID) String() string {
	if id == Root {
		return "root"
	}
	return "n" + strconv.FormatUint(uint64(id), 10)
}

// MarshalText renders the "n<counter>" form.
func (id NodeID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// ParseNodeID reads "n12" (or a bare "12").
func ParseNodeID(s string) (NodeID, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "n"), 10, 64)
	if err != nil || NodeID(v) == Root {
		return 0, fmt.Errorf("graph: bad node id %q", s)
	}
	return NodeID(v), nil
}

// EdgeID identifies an edge, allocated like NodeID.
type EdgeID uint64

func (id EdgeID) String() string { return "e" + strconv.FormatUint(uint64(id), 10) }

// Color is the display tag of an expanded node. Unexpanded non-seed nodes
// have no color yet; renderers derive one from State.
type Color string

const (
	ColorNone     Color = ""
	ColorSeed     Color = "seed"
	ColorTerminal Color = "terminal"
	ColorInternal Color = "internal"
)

// Node is one k-mer in the exploration graph. Path and the count series are
// filled in once the node reaches ResultsReady.
type Node struct {
	ID          NodeID
	Kmer        string
	State       State
	Parent      NodeID
	Color       Color
	Path        string
	Forward     []int
	RevComp     []int
	NextForward [4]int
	NextRevComp [4]int
	// Children are the targets of this node's edges in discovery order.
	Children []NodeID
}

func (n *Node) clone() Node {
	c := *n
	c.Forward = append([]int(nil), n.Forward...)
	c.RevComp = append([]int(nil), n.RevComp...)
	c.Children = append([]NodeID(nil), n.Children...)
	return c
}

// Terminal reports whether the node was expanded and no extension qualified.
func (n Node) Terminal() bool {
	return n.State == ResultsReady && len(n.Children) == 0
}

// Edge records one qualifying extension. Edges are never deduplicated.
type Edge struct {
	ID     EdgeID
	Source NodeID
	Target NodeID
	Symbol byte
	Count  int // forward + reverse-complement count of the extension
}

// Label is "<symbol>:<count>".
func (e Edge) Label() string { return fmt.Sprintf("%c:%d", e.Symbol, e.Count) }

// Session describes the active seed.
type Session struct {
	Epoch     epoch.Epoch
	Dataset   string
	Seed      string
	Threshold int
	K         int
	SeedID    NodeID
}

// Snapshot is an immutable copy of the graph. Nodes and Edges are in
// creation order.
type Snapshot struct {
	Session Session
	Nodes   []Node
	Edges   []Edge
}

// Node finds a node in the snapshot.
func (s Snapshot) Node(id NodeID) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
