// internal/output/json.go
package output

import (
	"io"

	"kmerwalk/internal/graph"
	"kmerwalk/internal/jsonutil"
	"kmerwalk/pkg/api"
)

// ToAPISession converts the session; id is the serving process's session UUID.
func ToAPISession(s graph.Session, id string) api.SessionV1 {
	return api.SessionV1{
		ID:        id,
		Epoch:     uint64(s.Epoch),
		Dataset:   s.Dataset,
		Seed:      s.Seed,
		Threshold: s.Threshold,
		K:         s.K,
		SeedNode:  s.SeedID.String(),
	}
}

// ToAPINode converts a node to the stable wire schema (v1).
func ToAPINode(n graph.Node) api.NodeV1 {
	v := api.NodeV1{
		ID:     n.ID.String(),
		Kmer:   n.Kmer,
		State:  n.State.String(),
		Parent: n.Parent.String(),
		Color:  string(n.Color),
	}
	if n.State != graph.ResultsReady {
		return v
	}
	v.Path = n.Path
	v.PathLength = len(n.Path)
	v.Forward = append([]int{}, n.Forward...)
	v.RevComp = append([]int{}, n.RevComp...)
	v.NextForward = append([]int{}, n.NextForward[:]...)
	v.NextRevComp = append([]int{}, n.NextRevComp[:]...)
	for _, c := range n.Children {
		v.Children = append(v.Children, c.String())
	}
	return v
}

// ToAPIEdge converts an edge.
func ToAPIEdge(e graph.Edge) api.EdgeV1 {
	return api.EdgeV1{
		ID:     e.ID.String(),
		Source: e.Source.String(),
		Target: e.Target.String(),
		Label:  e.Label(),
	}
}

// ToAPIGraph converts a snapshot. An empty snapshot has no session.
func ToAPIGraph(s graph.Snapshot, sessionID string) api.GraphV1 {
	g := api.GraphV1{
		Nodes: make([]api.NodeV1, 0, len(s.Nodes)),
		Edges: make([]api.EdgeV1, 0, len(s.Edges)),
	}
	if s.Session.Epoch != 0 {
		sess := ToAPISession(s.Session, sessionID)
		g.Session = &sess
	}
	for _, n := range s.Nodes {
		g.Nodes = append(g.Nodes, ToAPINode(n))
	}
	for _, e := range s.Edges {
		g.Edges = append(g.Edges, ToAPIEdge(e))
	}
	return g
}

// ToAPIEvent converts one change event.
func ToAPIEvent(ev graph.Event, sessionID string) api.EventV1 {
	v := api.EventV1{Seq: ev.Seq, Type: string(ev.Type), Epoch: uint64(ev.Epoch)}
	switch {
	case ev.Session != nil:
		s := ToAPISession(*ev.Session, sessionID)
		v.Session = &s
	case ev.Node != nil:
		n := ToAPINode(*ev.Node)
		v.Node = &n
	case ev.Edge != nil:
		e := ToAPIEdge(*ev.Edge)
		v.Edge = &e
	}
	return v
}

// WriteJSON writes the snapshot as one indented JSON document.
func WriteJSON(w io.Writer, s graph.Snapshot, sessionID string) error {
	return jsonutil.EncodePretty(w, ToAPIGraph(s, sessionID))
}
