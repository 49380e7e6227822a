package writers

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsBrokenPipe reports whether writing to stdout failed because the reader
// went away, as when `kmerwalk walk ... | head` exits early. Such runs are
// not failures.
func IsBrokenPipe(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe)
}

// IsPeerGone extends IsBrokenPipe to network peers: an API client or event
// subscriber that reset or closed its connection mid-response.
func IsPeerGone(err error) bool {
	if IsBrokenPipe(err) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, net.ErrClosed)
}
