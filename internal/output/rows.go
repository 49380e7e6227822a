// internal/output/rows.go
package output

import (
	"strconv"
	"strings"

	"kmerwalk/internal/graph"
)

// IDsCSV joins node IDs with commas; no IDs renders as "---".
func IDsCSV(ids []graph.NodeID) string {
	if len(ids) == 0 {
		return "---"
	}
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = id.String()
	}
	return strings.Join(ss, ",")
}

// FormatNodeRow returns one node table line (no trailing newline).
// Unexpanded nodes show their k-mer in the path column.
func FormatNodeRow(n graph.Node) string {
	path, length := n.Path, strconv.Itoa(len(n.Path))
	children := IDsCSV(n.Children)
	if n.State != graph.ResultsReady {
		path, length, children = n.Kmer, "-", "-"
	}
	color := string(n.Color)
	if color == "" {
		color = "-"
	}
	return strings.Join([]string{
		n.ID.String(), n.State.String(), color, length, children, path,
	}, "\t")
}
