package oracletest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"kmerwalk/internal/oracle"
)

// Call records one request received by a Fake.
type Call struct {
	Op        string
	Kmers     []string
	Datasets  []string
	Dataset   string
	Kmer      string
	Threshold int
	Forward   bool
	RevComp   bool
}

// Fake is a scripted oracle. Nil hooks fall back to deterministic counts
// (forward = len(kmer), revcomp = number of A symbols).
type Fake struct {
	Batch func(ctx context.Context, kmers, datasets []string, forward, revComp bool) (map[string]oracle.Counts, error)
	Mass  func(ctx context.Context, kmers []string, dataset string, forward, revComp bool) (oracle.Counts, error)
	Path  func(ctx context.Context, kmer, dataset string, threshold int) (oracle.PathResult, error)

	mu    sync.Mutex
	calls []Call
}

var _ oracle.Oracle = (*Fake)(nil)

// DefaultCounts is the fallback count for every query.
func DefaultCounts(kmers []string, forward, revComp bool) oracle.Counts {
	c := oracle.Counts{Forward: []int{}, RevComp: []int{}}
	for _, k := range kmers {
		if forward {
			c.Forward = append(c.Forward, len(k))
		}
		if revComp {
			c.RevComp = append(c.RevComp, strings.Count(k, "A"))
		}
	}
	return c
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

// Calls returns a copy of all recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns how many calls of op were made ("" counts all).
func (f *Fake) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if op == "" || c.Op == op {
			n++
		}
	}
	return n
}

// BatchQuery implements oracle.Oracle.
func (f *Fake) BatchQuery(ctx context.Context, kmers, datasets []string, forward, revComp bool) (map[string]oracle.Counts, error) {
	f.record(Call{Op: "batchQuery", Kmers: kmers, Datasets: datasets, Forward: forward, RevComp: revComp})
	if f.Batch != nil {
		return f.Batch(ctx, kmers, datasets, forward, revComp)
	}
	out := make(map[string]oracle.Counts, len(datasets))
	for _, ds := range datasets {
		out[ds] = DefaultCounts(kmers, forward, revComp)
	}
	return out, nil
}

// MassQuery implements oracle.Oracle.
func (f *Fake) MassQuery(ctx context.Context, kmers []string, dataset string, forward, revComp bool) (oracle.Counts, error) {
	f.record(Call{Op: "massQuery", Kmers: kmers, Dataset: dataset, Forward: forward, RevComp: revComp})
	if f.Mass != nil {
		return f.Mass(ctx, kmers, dataset, forward, revComp)
	}
	return DefaultCounts(kmers, forward, revComp), nil
}

// FollowPath implements oracle.Oracle.
func (f *Fake) FollowPath(ctx context.Context, kmer, dataset string, threshold int) (oracle.PathResult, error) {
	f.record(Call{Op: "followPath", Kmer: kmer, Dataset: dataset, Threshold: threshold})
	if f.Path != nil {
		return f.Path(ctx, kmer, dataset, threshold)
	}
	return oracle.PathResult{}, errors.New("oracletest: no followPath script")
}

// TransportFailure is a ready-made retryable error.
func TransportFailure(op string) error {
	return &oracle.TransportError{Op: op, Status: 503, Err: errors.New("service unavailable")}
}
