// internal/output/common.go
package output

// Output formats accepted by --output.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatFASTA = "fasta"
)

// NodeTableHeader is the header row of the text node table.
// Keep this as the single source of truth; all writers should use it.
const NodeTableHeader = "node\tstate\tcolor\tpath_length\tchildren\tpath"

// Formats lists every supported format, for flag help and validation.
var Formats = []string{FormatText, FormatJSON, FormatJSONL, FormatFASTA}

// ValidFormat reports whether f is one of Formats.
func ValidFormat(f string) bool {
	for _, v := range Formats {
		if v == f {
			return true
		}
	}
	return false
}
