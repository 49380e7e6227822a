// internal/jsonlutil/jsonlutil.go
package jsonlutil

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// Pooled 64 KiB writers; the encoder is tied to one io.Writer, so it is
// recreated per goroutine.
var bwPool = sync.Pool{
	New: func() any {
		return bufio.NewWriterSize(io.Discard, 64<<10)
	},
}

// Start spins up a JSONL encoder goroutine for values of type T.
//   - encode: fn to encode one value (convert to wire type & enc.Encode)
//   - isBroken: recognizer for broken/closed pipe errors to suppress them
//
// The buffer is flushed whenever the input channel runs empty, so a slow
// producer (a walk waiting on the server) still shows up line by line. If out
// is itself buffered (has Flush() error) it is flushed too.
func Start[T any](out io.Writer, bufSize int, encode func(*json.Encoder, T) error, isBroken func(error) bool) (chan<- T, <-chan error) {
	if bufSize <= 0 {
		bufSize = 64
	}
	in := make(chan T, bufSize)
	done := make(chan error, 1)

	go func() {
		bw := bwPool.Get().(*bufio.Writer)
		bw.Reset(out)
		defer func() {
			bw.Reset(io.Discard)
			bwPool.Put(bw)
		}()

		enc := json.NewEncoder(bw)
		fail := func(err error) {
			// Keep draining so the producer never blocks on a dead writer.
			for range in {
			}
			if isBroken(err) {
				err = nil
			}
			done <- err
		}

		for v := range in {
			if err := encode(enc, v); err != nil {
				fail(err)
				return
			}
			if len(in) == 0 {
				if err := flush(bw, out); err != nil {
					fail(err)
					return
				}
			}
		}
		if err := flush(bw, out); err != nil && !isBroken(err) {
			done <- err
			return
		}
		done <- nil
	}()

	return in, done
}

func flush(bw *bufio.Writer, out io.Writer) error {
	if err := bw.Flush(); err != nil {
		return err
	}
	if f, ok := out.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
