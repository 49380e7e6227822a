// Package batchinput turns uploaded query text into an ordered k-mer list
// plus the row context needed to echo it back next to the counts.
package batchinput

import (
	"io"
	"strconv"
	"strings"

	"kmerwalk/internal/fasta"
	"kmerwalk/internal/kmer"
)

// Delimiters by name.
var delimiters = map[string]string{
	"csv": ",",
	",":   ",",
	"tab": "\t",
	"tsv": "\t",
	`\t`:  "\t",
	"\t":  "\t",
}

// ParseDelimiter maps "csv" / "tab" (case-insensitive) to the separator.
func ParseDelimiter(name string) (string, error) {
	if d, ok := delimiters[strings.ToLower(name)]; ok {
		return d, nil
	}
	return "", kmer.Invalid("delimiter", "want csv or tab", name)
}

// Split breaks text into lines on '\n' and each line on delim. A trailing
// '\r' is dropped from every line.
func Split(text, delim string) [][]string {
	lines := strings.Split(text, "\n")
	out := make([][]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.Split(strings.TrimSuffix(l, "\r"), delim))
	}
	return out
}

// Options select the query column (1-based), the optional label column and
// whether the first line is a header.
type Options struct {
	Delimiter string
	Column    int
	Labels    int // 0 = label each query with itself
	Header    bool
}

// Table is parsed batch input.
type Table struct {
	Delimiter string
	Column    int
	Header    []string   // nil when the input had none
	Rows      [][]string // data rows, header excluded
	Kmers     []string   // uppercased query column, one per row
	Labels    []string   // label column, one per row
}

// Parse splits text and extracts the query and label columns. Blank lines
// are skipped. Column problems are reported as *kmer.ValidationError listing
// every offending line number; symbol validation is left to the dispatcher.
func Parse(text string, opts Options) (*Table, error) {
	if opts.Delimiter == "" {
		opts.Delimiter = ","
	}
	if opts.Column < 1 {
		return nil, kmer.Invalid("column", "must be a positive integer", strconv.Itoa(opts.Column))
	}
	if opts.Labels < 0 {
		return nil, kmer.Invalid("labels column", "must be a positive integer", strconv.Itoa(opts.Labels))
	}

	t := &Table{Delimiter: opts.Delimiter, Column: opts.Column}
	var short []string
	for i, row := range Split(text, opts.Delimiter) {
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if opts.Header && t.Header == nil && len(t.Rows) == 0 {
			t.Header = row
			continue
		}
		line := strconv.Itoa(i + 1)
		if opts.Column > len(row) || (opts.Labels > 0 && opts.Labels > len(row)) {
			short = append(short, line)
			continue
		}
		q := strings.ToUpper(strings.TrimSpace(row[opts.Column-1]))
		label := q
		if opts.Labels > 0 {
			label = strings.TrimSpace(row[opts.Labels-1])
		}
		t.Rows = append(t.Rows, row)
		t.Kmers = append(t.Kmers, q)
		t.Labels = append(t.Labels, label)
	}
	if len(short) > 0 {
		return nil, &kmer.ValidationError{
			Field:  "column",
			Reason: "line has fewer than " + strconv.Itoa(max(opts.Column, opts.Labels)) + " fields",
			Values: short,
		}
	}
	return t, nil
}

// Width is the number of columns of the widest row (or the header).
func (t *Table) Width() int {
	w := len(t.Header)
	for _, r := range t.Rows {
		w = max(w, len(r))
	}
	return w
}

// OutputHeader is the header echoed before the count columns: the input
// header, or one synthesized with "query" in the query column.
func (t *Table) OutputHeader() []string {
	if t.Header != nil {
		return t.Header
	}
	h := make([]string, max(t.Width(), t.Column))
	h[t.Column-1] = "query"
	return h
}

// FromFASTA builds a table from FASTA records: record ID is the label and
// the sequence the query.
func FromFASTA(recs []fasta.Record, delim string) *Table {
	if delim == "" {
		delim = "\t"
	}
	t := &Table{Delimiter: delim, Column: 2, Header: []string{"id", "query"}}
	for _, r := range recs {
		seq := string(r.Seq)
		t.Rows = append(t.Rows, []string{r.ID, seq})
		t.Kmers = append(t.Kmers, seq)
		t.Labels = append(t.Labels, r.ID)
	}
	return t
}

// ReadText reads r fully and strips one trailing newline.
func ReadText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s := string(b)
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, nil
}

// Load reads path ("-" = stdin, .gz/.zst transparently) as delimited text,
// or as FASTA when asFASTA is set.
func Load(path string, asFASTA bool, opts Options) (*Table, error) {
	if asFASTA {
		recs, err := fasta.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return FromFASTA(recs, opts.Delimiter), nil
	}
	rc, err := fasta.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	text, err := ReadText(rc)
	if err != nil {
		return nil, err
	}
	return Parse(text, opts)
}
