// internal/writers/registry.go
package writers

import (
	"fmt"
	"io"

	"kmerwalk/internal/assembly"
	"kmerwalk/internal/graph"
)

// WalkResult is everything a finished walk can render.
type WalkResult struct {
	SessionID string
	Snapshot  graph.Snapshot
	Chain     *assembly.Chain
	Header    bool
}

// WalkWriters maps an output format to its renderer. JSONL is absent: it
// streams events while the walk runs (StartEventJSONLWriter).
var WalkWriters = map[string]func(w io.Writer, r WalkResult) error{}

// RegisterWalk adds or replaces a renderer (last wins).
func RegisterWalk(format string, fn func(io.Writer, WalkResult) error) { WalkWriters[format] = fn }

// WriteWalk renders r in format.
func WriteWalk(format string, w io.Writer, r WalkResult) error {
	fn, ok := WalkWriters[format]
	if !ok {
		return fmt.Errorf("unknown walk format %q (no writer registered)", format)
	}
	return fn(w, r)
}
