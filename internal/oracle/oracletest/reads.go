// Package oracletest provides in-memory oracles and an HTTP server speaking
// the index server protocol, for tests.
package oracletest

import (
	"context"
	"fmt"
	"strings"

	"kmerwalk/internal/kmer"
	"kmerwalk/internal/oracle"
)

// maxPathSteps stops FollowPath on cyclic read sets.
const maxPathSteps = 10000

// Reads answers queries by counting substring occurrences in in-memory reads,
// the same quantity a BWT index reports.
type Reads struct {
	Datasets map[string][]string
}

var _ oracle.Oracle = (*Reads)(nil)

// NewReads builds an oracle over dataset -> reads.
func NewReads(datasets map[string][]string) *Reads {
	return &Reads{Datasets: datasets}
}

// Count returns the number of occurrences of seq in dataset's reads.
func (r *Reads) Count(dataset, seq string) int {
	if seq == "" {
		return 0
	}
	n := 0
	for _, read := range r.Datasets[dataset] {
		for i := 0; ; {
			j := strings.Index(read[i:], seq)
			if j < 0 {
				break
			}
			n++
			i += j + 1
			if i >= len(read) {
				break
			}
		}
	}
	return n
}

func (r *Reads) counts(kmers []string, dataset string, forward, revComp bool) Counts {
	c := Counts{Forward: []int{}, RevComp: []int{}}
	for _, k := range kmers {
		if forward {
			c.Forward = append(c.Forward, r.Count(dataset, k))
		}
		if revComp {
			c.RevComp = append(c.RevComp, r.Count(dataset, kmer.RevComp(k)))
		}
	}
	return c
}

// Counts aliases oracle.Counts for brevity in tests.
type Counts = oracle.Counts

// BatchQuery implements oracle.Oracle.
func (r *Reads) BatchQuery(_ context.Context, kmers, datasets []string, forward, revComp bool) (map[string]oracle.Counts, error) {
	out := make(map[string]oracle.Counts, len(datasets))
	for _, ds := range datasets {
		if _, ok := r.Datasets[ds]; !ok {
			return nil, fmt.Errorf("unknown dataset %q", ds)
		}
		out[ds] = r.counts(kmers, ds, forward, revComp)
	}
	return out, nil
}

// MassQuery implements oracle.Oracle.
func (r *Reads) MassQuery(_ context.Context, kmers []string, dataset string, forward, revComp bool) (oracle.Counts, error) {
	if _, ok := r.Datasets[dataset]; !ok {
		return oracle.Counts{}, fmt.Errorf("unknown dataset %q", dataset)
	}
	return r.counts(kmers, dataset, forward, revComp), nil
}

// FollowPath extends seed one symbol at a time while exactly one extension
// (and at most one predecessor) reaches threshold on either strand.
func (r *Reads) FollowPath(_ context.Context, seed, dataset string, threshold int) (oracle.PathResult, error) {
	if _, ok := r.Datasets[dataset]; !ok {
		return oracle.PathResult{}, fmt.Errorf("unknown dataset %q", dataset)
	}
	fwdSym := kmer.Symbols
	revSym := [4]byte{'T', 'G', 'C', 'A'}

	path := seed
	cur := seed
	rev := kmer.RevComp(seed)
	res := oracle.PathResult{
		Forward: []int{r.Count(dataset, cur)},
		RevComp: []int{r.Count(dataset, rev)},
	}
	var next, revNext [4]int

	for step := 0; step < maxPathSteps; step++ {
		last := len(res.Forward) - 1
		if res.Forward[last]+res.RevComp[last] < threshold || len(cur) == 0 {
			break
		}
		cur = cur[1:]
		rev = rev[:len(rev)-1]

		passed, backPassed := 0, 0
		for x := 0; x < 4; x++ {
			next[x] = r.Count(dataset, cur+string(fwdSym[x]))
			revNext[x] = r.Count(dataset, string(revSym[x])+rev)
			back := r.Count(dataset, string(fwdSym[x])+cur) + r.Count(dataset, rev+string(revSym[x]))
			if next[x]+revNext[x] >= threshold {
				passed++
			}
			if back >= threshold {
				backPassed++
			}
		}
		if passed != 1 || backPassed > 1 {
			break
		}
		best := 0
		for x := 1; x < 4; x++ {
			if next[x]+revNext[x] > next[best]+revNext[best] {
				best = x
			}
		}
		cur += string(fwdSym[best])
		rev = string(revSym[best]) + rev
		path += string(fwdSym[best])
		res.Forward = append(res.Forward, next[best])
		res.RevComp = append(res.RevComp, revNext[best])
	}
	res.Path = path
	res.NextForward = next
	res.NextRevComp = revNext
	return res, nil
}
