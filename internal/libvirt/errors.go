package libvirt

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/digitalocean/go-libvirt"
)

// virterror codes used to classify failures. go-libvirt does not carry the
// error domain, so a system error is always treated as a transport failure.
const (
	errNoConnect   = 5
	errInvalidConn = 6
	errSystemError = 38
	errRPC         = 39
)

// ErrorCode returns the libvirt error code carried by err, or -1 when err
// did not come from the daemon.
func ErrorCode(err error) int {
	var e libvirt.Error
	if errors.As(err, &e) {
		return int(e.Code)
	}
	return -1
}

// IsTransportError reports whether err means the connection to the daemon
// is unusable and should be reopened.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var e libvirt.Error
	if !errors.As(err, &e) {
		return false
	}
	switch int(e.Code) {
	case errRPC, errNoConnect, errInvalidConn, errSystemError:
		return true
	}
	return false
}

// IsNotFound reports whether err is libvirt's "no such domain" error.
func IsNotFound(err error) bool {
	return libvirt.IsNotFound(err)
}
