package dispatch

import (
	"fmt"
	"strings"

	"kmerwalk/internal/batchinput"
	"kmerwalk/internal/kmer"
)

// Mode selects how k-mers are sent to the oracle.
type Mode int

const (
	// ModePaged sends fixed-size pages per dataset with massQuery.
	ModePaged Mode = iota
	// ModeFull sends everything in one batchQuery.
	ModeFull
)

func (m Mode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "paged"
}

// ParseMode accepts "full" or "paged".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "paged":
		return ModePaged, nil
	case "full":
		return ModeFull, nil
	}
	return 0, kmer.Invalid("mode", "want full or paged", s)
}

// Layout selects how the output buffer renders.
type Layout int

const (
	// LayoutAuto is wide for several datasets and long for one.
	LayoutAuto Layout = iota
	// LayoutWide is one row per dataset, two columns per k-mer.
	LayoutWide
	// LayoutLong is one row per input row with the counts appended.
	LayoutLong
)

func (l Layout) String() string {
	switch l {
	case LayoutWide:
		return "wide"
	case LayoutLong:
		return "long"
	}
	return "auto"
}

// ParseLayout accepts "auto", "wide" or "long".
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return LayoutAuto, nil
	case "wide":
		return LayoutWide, nil
	case "long":
		return LayoutLong, nil
	}
	return 0, kmer.Invalid("layout", "want auto, wide or long", s)
}

// Dataset is a server dataset ID with an optional display label.
type Dataset struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Name is the label when set, the ID otherwise.
func (d Dataset) Name() string {
	if d.Label != "" {
		return d.Label
	}
	return d.ID
}

// ParseDataset reads "ID" or "ID=LABEL".
func ParseDataset(s string) Dataset {
	id, label, _ := strings.Cut(s, "=")
	return Dataset{ID: strings.TrimSpace(id), Label: strings.TrimSpace(label)}
}

// Request is one batch submission.
type Request struct {
	Kmers        []string
	Datasets     []Dataset
	CountForward bool
	CountRevComp bool
	Mode         Mode
	Layout       Layout

	// Labels name each k-mer in the wide header; nil uses the k-mers.
	Labels []string
	// Rows are echoed in front of the counts in the long layout; nil
	// echoes the k-mer alone.
	Rows      [][]string
	RowHeader []string
	Delimiter string
}

// FromTable builds a request from parsed input.
func FromTable(t *batchinput.Table, datasets []Dataset, forward, revComp bool) Request {
	return Request{
		Kmers:        t.Kmers,
		Labels:       t.Labels,
		Rows:         t.Rows,
		RowHeader:    t.OutputHeader(),
		Delimiter:    t.Delimiter,
		Datasets:     datasets,
		CountForward: forward,
		CountRevComp: revComp,
	}
}

// ParseCount maps both|forward|rc to orientation flags.
func ParseCount(s string) (forward, revComp bool, err error) {
	switch strings.ToLower(s) {
	case "", "both":
		return true, true, nil
	case "forward", "fw":
		return true, false, nil
	case "rc", "revcomp":
		return false, true, nil
	}
	return false, false, kmer.Invalid("count", "want both, forward or rc", s)
}

// normalize uppercases k-mers and checks everything that can be checked
// without the network. Every invalid k-mer is reported.
func (r Request) normalize() (Request, error) {
	if len(r.Datasets) == 0 {
		return r, kmer.Invalid("dataset", "select at least one dataset")
	}
	seen := make(map[string]int, len(r.Datasets))
	var dups []string
	for _, ds := range r.Datasets {
		if ds.ID == "" {
			return r, kmer.Invalid("dataset", "empty dataset ID")
		}
		// Counts are stored per ID; a repeated ID would interleave two streams.
		if seen[ds.ID]++; seen[ds.ID] == 2 {
			dups = append(dups, ds.ID)
		}
	}
	if len(dups) > 0 {
		return r, kmer.Invalid("dataset", "duplicate dataset", dups...)
	}
	if len(r.Kmers) == 0 {
		return r, kmer.Invalid("k-mer", "no queries")
	}
	if !r.CountForward && !r.CountRevComp {
		return r, kmer.Invalid("count", "enable forward and/or reverse-complement counting")
	}
	kmers := make([]string, len(r.Kmers))
	for i, k := range r.Kmers {
		kmers[i] = strings.ToUpper(k)
	}
	if err := kmer.ValidateAll(kmers, kmer.QueryAlphabet); err != nil {
		return r, err
	}
	if r.Labels != nil && len(r.Labels) != len(kmers) {
		return r, kmer.Invalid("labels", fmt.Sprintf("%d labels for %d k-mers", len(r.Labels), len(kmers)))
	}
	if r.Rows != nil && len(r.Rows) != len(kmers) {
		return r, kmer.Invalid("rows", fmt.Sprintf("%d rows for %d k-mers", len(r.Rows), len(kmers)))
	}
	r.Kmers = kmers
	r.Datasets = append([]Dataset(nil), r.Datasets...)
	if r.Delimiter == "" {
		r.Delimiter = ","
	}
	if r.Layout == LayoutAuto {
		r.Layout = LayoutLong
		if len(r.Datasets) > 1 {
			r.Layout = LayoutWide
		}
	}
	return r, nil
}
