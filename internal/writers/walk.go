// internal/writers/walk.go
package writers

import (
	"errors"
	"io"

	"kmerwalk/internal/output"
)

// ErrNoChain is returned by the FASTA writer when no chain was selected.
var ErrNoChain = errors.New("no assembly chain selected (use --chain)")

func init() {
	RegisterWalk(output.FormatText, func(w io.Writer, r WalkResult) error {
		return output.WriteText(w, r.Snapshot, r.Header)
	})
	RegisterWalk(output.FormatJSON, func(w io.Writer, r WalkResult) error {
		return output.WriteJSON(w, r.Snapshot, r.SessionID)
	})
	RegisterWalk(output.FormatFASTA, func(w io.Writer, r WalkResult) error {
		if r.Chain == nil || len(r.Chain.IDs()) == 0 {
			return ErrNoChain
		}
		return output.WriteFASTA(w, r.Chain)
	})
}
