package dispatch

import (
	"strconv"
	"strings"
	"sync"

	"kmerwalk/internal/epoch"
	"kmerwalk/internal/oracle"
)

// Buffer is the output of the current batch. Counts are stored per dataset
// and rendered on demand, so datasets always appear in submission order even
// when their streams finish out of order. Safe for concurrent use.
type Buffer struct {
	mu sync.Mutex

	epoch    epoch.Epoch
	req      Request
	series   map[string]*series
	complete bool
}

type series struct {
	fw, rc []int
	done   bool
}

func (s *series) received(req Request) int {
	if req.CountForward {
		return len(s.fw)
	}
	return len(s.rc)
}

// reset starts a fresh buffer for epoch e. Callers advance the epoch first.
func (b *Buffer) reset(e epoch.Epoch, req Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.epoch = e
	b.req = req
	b.complete = false
	b.series = make(map[string]*series, len(req.Datasets))
	for _, ds := range req.Datasets {
		b.series[ds.ID] = &series{}
	}
}

// apply appends one page of counts for dataset. It reports false, without
// touching the buffer, when e is no longer the current epoch.
func (b *Buffer) apply(g *epoch.Guard, e epoch.Epoch, dataset string, c oracle.Counts) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g.Stale(e) || b.epoch != e {
		return false
	}
	s := b.series[dataset]
	if s == nil {
		return false
	}
	if b.req.CountForward {
		s.fw = append(s.fw, c.Forward...)
	}
	if b.req.CountRevComp {
		s.rc = append(s.rc, c.RevComp...)
	}
	return true
}

func (b *Buffer) markDone(g *epoch.Guard, e epoch.Epoch, dataset string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g.Stale(e) || b.epoch != e {
		return false
	}
	if s := b.series[dataset]; s != nil {
		s.done = true
	}
	return true
}

func (b *Buffer) markComplete(g *epoch.Guard, e epoch.Epoch) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g.Stale(e) || b.epoch != e {
		return false
	}
	b.complete = true
	return true
}

// Epoch is the epoch the buffer currently belongs to.
func (b *Buffer) Epoch() epoch.Epoch {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epoch
}

// Complete reports whether every dataset of the current epoch finished.
func (b *Buffer) Complete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.complete
}

// DatasetCounts returns a copy of what has been received for dataset.
func (b *Buffer) DatasetCounts(dataset string) (oracle.Counts, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.series[dataset]
	if !ok {
		return oracle.Counts{}, false
	}
	return oracle.Counts{
		Forward: append([]int{}, s.fw...),
		RevComp: append([]int{}, s.rc...),
	}, s.done
}

// Table renders the buffer as header plus rows. Datasets without any page
// yet are omitted.
func (b *Buffer) Table() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table()
}

func (b *Buffer) table() [][]string {
	if b.series == nil {
		return nil
	}
	if b.req.Layout == LayoutWide {
		return b.wide()
	}
	return b.long()
}

// Text renders Table with the input delimiter, one line per row.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	for _, r := range b.table() {
		sb.WriteString(strings.Join(r, b.req.Delimiter))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (b *Buffer) label(i int) string {
	if b.req.Labels != nil {
		return b.req.Labels[i]
	}
	return b.req.Kmers[i]
}

func (b *Buffer) wide() [][]string {
	header := []string{"dataset"}
	for i := range b.req.Kmers {
		if b.req.CountForward {
			header = append(header, b.label(i)+"_fw")
		}
		if b.req.CountRevComp {
			header = append(header, b.label(i)+"_rc")
		}
	}
	out := [][]string{header}
	for _, ds := range b.req.Datasets {
		s := b.series[ds.ID]
		n := s.received(b.req)
		if n == 0 && !s.done {
			continue
		}
		row := []string{ds.Name()}
		for i := 0; i < n; i++ {
			row = appendCounts(row, b.req, s, i)
		}
		out = append(out, row)
	}
	return out
}

func (b *Buffer) long() [][]string {
	multi := len(b.req.Datasets) > 1
	var header []string
	if multi {
		header = append(header, "dataset")
	}
	if b.req.RowHeader != nil {
		header = append(header, b.req.RowHeader...)
	} else {
		header = append(header, "query")
	}
	if b.req.CountForward {
		header = append(header, "forward_counts")
	}
	if b.req.CountRevComp {
		header = append(header, "reverse_complement_counts")
	}
	out := [][]string{header}
	for _, ds := range b.req.Datasets {
		s := b.series[ds.ID]
		for i := 0; i < s.received(b.req); i++ {
			var row []string
			if multi {
				row = append(row, ds.Name())
			}
			if b.req.Rows != nil {
				row = append(row, b.req.Rows[i]...)
			} else {
				row = append(row, b.req.Kmers[i])
			}
			out = append(out, appendCounts(row, b.req, s, i))
		}
	}
	return out
}

func appendCounts(row []string, req Request, s *series, i int) []string {
	if req.CountForward {
		row = append(row, countAt(s.fw, i))
	}
	if req.CountRevComp {
		row = append(row, countAt(s.rc, i))
	}
	return row
}

func countAt(v []int, i int) string {
	if i >= len(v) {
		return ""
	}
	return strconv.Itoa(v[i])
}

// DatasetResult is one dataset's share of a Result.
type DatasetResult struct {
	Dataset Dataset
	Counts  oracle.Counts
	Done    bool
}

// Result is a copy of the buffer contents in submission order.
type Result struct {
	Epoch    epoch.Epoch
	Kmers    []string
	Labels   []string
	Datasets []DatasetResult
	Complete bool
}

// Result copies the buffer. Datasets with no page yet are included with
// empty counts.
func (b *Buffer) Result() Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := Result{
		Epoch:    b.epoch,
		Kmers:    append([]string(nil), b.req.Kmers...),
		Labels:   append([]string(nil), b.req.Labels...),
		Complete: b.complete,
	}
	for _, ds := range b.req.Datasets {
		s := b.series[ds.ID]
		if s == nil {
			continue
		}
		r.Datasets = append(r.Datasets, DatasetResult{
			Dataset: ds,
			Counts: oracle.Counts{
				Forward: append([]int{}, s.fw...),
				RevComp: append([]int{}, s.rc...),
			},
			Done: s.done,
		})
	}
	return r
}
