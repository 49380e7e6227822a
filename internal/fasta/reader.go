// internal/fasta/reader.go
package fasta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Record is one FASTA entry. ID is the first word of the header.
type Record struct {
	ID  string
	Seq []byte
}

// ReadAll parses every record from r. Sequence lines are joined and
// uppercased; blank lines are ignored. Text before the first header is an error.
func ReadAll(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	var (
		out  []Record
		cur  *Record
		line int
	)
	for {
		b, err := br.ReadBytes('\n')
		eof := err == io.EOF
		if err != nil && !eof {
			return nil, err
		}
		line++
		b = bytes.TrimRight(b, "\r\n")
		if eof && len(b) == 0 {
			break
		}
		switch {
		case len(bytes.TrimSpace(b)) == 0:
		case b[0] == '>':
			fields := strings.Fields(string(b[1:]))
			if len(fields) == 0 {
				return nil, fmt.Errorf("fasta: line %d: empty header", line)
			}
			out = append(out, Record{ID: fields[0]})
			cur = &out[len(out)-1]
		default:
			if cur == nil {
				return nil, fmt.Errorf("fasta: line %d: sequence before first header", line)
			}
			cur.Seq = append(cur.Seq, bytes.ToUpper(bytes.TrimSpace(b))...)
		}
		if eof {
			break
		}
	}
	return out, nil
}

// ReadFile parses path ("-" = stdin). .gz and .zst files are decompressed.
func ReadFile(path string) ([]Record, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadAll(rc)
}

// Open returns a reader for path, "-" meaning stdin.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		gr, err := gzip.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, err
		}
		return struct {
			io.Reader
			io.Closer
		}{Reader: gr, Closer: fh}, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, err
		}
		return closerFunc{Reader: zr, close: func() error { zr.Close(); return fh.Close() }}, nil
	}
	return fh, nil
}

type closerFunc struct {
	io.Reader
	close func() error
}

func (c closerFunc) Close() error { return c.close() }
