// pkg/api/batch_v1.go
package api

// DatasetCountsV1 holds one dataset's counts, aligned with the query order.
type DatasetCountsV1 struct {
	Dataset string `json:"dataset"`
	Label   string `json:"label,omitempty"`
	Forward []int  `json:"forward_counts,omitempty"`
	RevComp []int  `json:"revcomp_counts,omitempty"`
	Done    bool   `json:"done"`
}

// BatchResultV1 is the JSON rendering of a finished batch.
type BatchResultV1 struct {
	Epoch    uint64            `json:"epoch"`
	Queries  []string          `json:"queries"`
	Labels   []string          `json:"labels,omitempty"`
	Datasets []DatasetCountsV1 `json:"datasets"`
}
