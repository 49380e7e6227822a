// pkg/api/graph_v1.go
package api

// SessionV1 describes the active exploration seed.
// Keep fields, names, and types stable. Add new fields only with ",omitempty".
type SessionV1 struct {
	ID        string `json:"id"` // UUID of the serving process's session
	Epoch     uint64 `json:"epoch"`
	Dataset   string `json:"dataset"`
	Seed      string `json:"seed"`
	Threshold int    `json:"threshold"`
	K         int    `json:"k"`
	SeedNode  string `json:"seed_node,omitempty"`
}

// NodeV1 is one graph node. Path and counts appear once the node is expanded.
type NodeV1 struct {
	ID          string   `json:"id"` // "n<counter>"
	Kmer        string   `json:"kmer"`
	State       string   `json:"state"` // "unexplored" | "waiting" | "results_ready"
	Parent      string   `json:"parent"` // node ID or "root"
	Color       string   `json:"color,omitempty"` // "seed" | "terminal" | "internal"
	Path        string   `json:"path,omitempty"`
	PathLength  int      `json:"path_length,omitempty"`
	Forward     []int    `json:"forward_counts,omitempty"`
	RevComp     []int    `json:"revcomp_counts,omitempty"`
	NextForward []int    `json:"next_forward,omitempty"` // A, C, G, T
	NextRevComp []int    `json:"next_revcomp,omitempty"`
	Children    []string `json:"children,omitempty"`
}

// EdgeV1 is one discovered extension.
type EdgeV1 struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"` // "<symbol>:<count>"
}

// GraphV1 is a full snapshot.
type GraphV1 struct {
	Session *SessionV1 `json:"session,omitempty"`
	Nodes   []NodeV1   `json:"nodes"`
	Edges   []EdgeV1   `json:"edges"`
}

// EventV1 is one line of the event stream. Exactly one payload field is set.
type EventV1 struct {
	Seq     uint64     `json:"seq"`
	Type    string     `json:"type"` // "reset" | "node_added" | "edge_added" | "node_updated"
	Epoch   uint64     `json:"epoch"`
	Session *SessionV1 `json:"session,omitempty"`
	Node    *NodeV1    `json:"node,omitempty"`
	Edge    *EdgeV1    `json:"edge,omitempty"`
}

// AssemblyV1 is the current assembly chain.
type AssemblyV1 struct {
	Chain      []string `json:"chain"`
	Candidates []string `json:"candidates"`
	Sequence   string   `json:"sequence"`
	Length     int      `json:"length"`
	Header     string   `json:"header"`
}

// ErrorV1 is the body of every non-2xx session API response.
type ErrorV1 struct {
	Error  string   `json:"error"`
	Kind   string   `json:"kind"` // "validation" | "transport" | "precondition" | "conflict" | "not_found"
	Values []string `json:"values,omitempty"`
}

// SeedRequestV1 is the body of POST /session/seed.
type SeedRequestV1 struct {
	Kmer      string `json:"kmer"`
	Dataset   string `json:"dataset"`
	Threshold int    `json:"threshold"`
}

// SelectRequestV1 is the body of POST /session/assembly/select.
type SelectRequestV1 struct {
	Node string `json:"node"`
}
