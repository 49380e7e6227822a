// internal/output/batch.go
package output

import (
	"io"

	"kmerwalk/internal/dispatch"
	"kmerwalk/internal/jsonutil"
	"kmerwalk/pkg/api"
)

// ToAPIBatch converts a dispatcher result to the v1 schema.
func ToAPIBatch(r dispatch.Result) api.BatchResultV1 {
	v := api.BatchResultV1{
		Epoch:    uint64(r.Epoch),
		Queries:  append([]string{}, r.Kmers...),
		Labels:   r.Labels,
		Datasets: make([]api.DatasetCountsV1, 0, len(r.Datasets)),
	}
	for _, d := range r.Datasets {
		v.Datasets = append(v.Datasets, api.DatasetCountsV1{
			Dataset: d.Dataset.ID,
			Label:   d.Dataset.Label,
			Forward: d.Counts.Forward,
			RevComp: d.Counts.RevComp,
			Done:    d.Done,
		})
	}
	return v
}

// WriteBatchJSON writes the result as indented JSON.
func WriteBatchJSON(w io.Writer, r dispatch.Result) error {
	return jsonutil.EncodePretty(w, ToAPIBatch(r))
}

// WriteBatchText writes the delimited table the dispatcher buffer renders.
func WriteBatchText(w io.Writer, b *dispatch.Buffer) error {
	_, err := io.WriteString(w, b.Text())
	return err
}
