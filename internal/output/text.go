// internal/output/text.go
package output

import (
	"fmt"
	"io"

	"kmerwalk/internal/graph"
)

// WriteText prints the node table in creation order.
func WriteText(w io.Writer, snap graph.Snapshot, header bool) error {
	if header {
		if _, err := fmt.Fprintln(w, NodeTableHeader); err != nil {
			return err
		}
	}
	for _, n := range snap.Nodes {
		if _, err := fmt.Fprintln(w, FormatNodeRow(n)); err != nil {
			return err
		}
	}
	return nil
}
