package oracle

import (
	"errors"
	"fmt"
)

// ErrMisaligned marks a response whose arrays do not match the request.
var ErrMisaligned = errors.New("response not aligned with request")

// TransportError is any failure to obtain a usable answer from the server:
// connection errors, non-2xx statuses, undecodable or misaligned bodies.
// Transport errors are never fatal to a batch; they are retried.
type TransportError struct {
	Op     string // batchQuery | massQuery | followPath
	Status int    // HTTP status, 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: server status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
