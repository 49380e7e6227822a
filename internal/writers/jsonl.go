// internal/writers/jsonl.go
package writers

import (
	"encoding/json"
	"io"

	"kmerwalk/internal/graph"
	"kmerwalk/internal/jsonlutil"
	"kmerwalk/internal/output"
)

// StartEventJSONLWriter streams each graph.Event as one JSON line (v1).
func StartEventJSONLWriter(out io.Writer, bufSize int, sessionID string) (chan<- graph.Event, <-chan error) {
	return jsonlutil.Start[graph.Event](out, bufSize,
		func(enc *json.Encoder, ev graph.Event) error {
			return enc.Encode(output.ToAPIEvent(ev, sessionID))
		},
		IsBrokenPipe,
	)
}
