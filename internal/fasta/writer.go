package fasta

import (
	"fmt"
	"io"
)

// LineWidth is the wrap width used for assembled sequences.
const LineWidth = 50

// Write emits one record, wrapping seq at width symbols (0 = no wrap).
func Write(w io.Writer, header, seq string, width int) error {
	if _, err := fmt.Fprintf(w, ">%s\n", header); err != nil {
		return err
	}
	if width <= 0 {
		width = len(seq)
	}
	for len(seq) > 0 {
		n := width
		if n > len(seq) {
			n = len(seq)
		}
		if _, err := fmt.Fprintln(w, seq[:n]); err != nil {
			return err
		}
		seq = seq[n:]
	}
	return nil
}
