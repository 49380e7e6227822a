// Package oracle is the client side of the k-mer index server: batch counts,
// paged mass counts and single-seed path following.
package oracle

import "context"

// Counts holds per-query counts aligned with the submitted k-mer order.
// A disabled orientation is returned as an empty slice.
type Counts struct {
	Forward []int `json:"forward"`
	RevComp []int `json:"revcomp"`
}

// PathResult is the answer to FollowPath. Path starts with the queried k-mer
// and is extended while the extension is unambiguous. Forward and RevComp are
// aligned with the k-mers along Path. The Next* arrays hold the counts of the
// four possible extensions of Path's tail, in A, C, G, T order.
type PathResult struct {
	Path        string
	Forward     []int
	RevComp     []int
	NextForward [4]int
	NextRevComp [4]int
}

// Oracle is the request/response contract with the index server.
type Oracle interface {
	// BatchQuery counts every k-mer in every dataset with one request.
	BatchQuery(ctx context.Context, kmers, datasets []string, forward, revComp bool) (map[string]Counts, error)
	// MassQuery counts one page of k-mers in a single dataset.
	MassQuery(ctx context.Context, kmers []string, dataset string, forward, revComp bool) (Counts, error)
	// FollowPath walks the implicit de Bruijn graph from kmer.
	FollowPath(ctx context.Context, kmer, dataset string, threshold int) (PathResult, error)
}
