package aio

import "syscall"

// ErrKind is the error taxonomy of spec §7. The reactor never raises: every
// fault becomes a Result with Kind==ResultError carrying an *OpError.
type ErrKind uint8

const (
	// ErrIO is any kernel-level failure not matched by a more specific
	// kind. The raw errno is preserved on Errno for logging.
	ErrIO ErrKind = iota
	// ErrConnectionRefused is ECONNREFUSED on connect; used by callers
	// to detect a stale listening socket.
	ErrConnectionRefused
	// ErrWouldBlock is EINPROGRESS on connect or EAGAIN on recv/send.
	// On io_uring this propagates to the callback; the kqueue backend
	// absorbs it internally and re-arms the readiness filter.
	ErrWouldBlock
)

func (k ErrKind) String() string {
	switch k {
	case ErrConnectionRefused:
		return "connection_refused"
	case ErrWouldBlock:
		return "would_block"
	default:
		return "io"
	}
}

// OpError wraps the kernel errno behind a completion's error result.
type OpError struct {
	Kind  ErrKind
	Errno syscall.Errno
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Kind.String() + ": " + e.Errno.Error()
}

func (e *OpError) String() string { return e.Error() }

// Temporary reports whether errno should be retried by the caller rather
// than treated as fatal.
func (e *OpError) Temporary() bool {
	o := e.Errno
	return o == syscall.EINTR || o == syscall.EMFILE || o == syscall.ENFILE ||
		o == syscall.ENOBUFS || e.WouldBlock()
}

// WouldBlock reports whether errno is one of the "try again" family.
func (e *OpError) WouldBlock() bool {
	o := e.Errno
	return o == syscall.EAGAIN || o == syscall.EWOULDBLOCK || o == syscall.EINPROGRESS
}

// ConnectionReset reports whether errno indicates the peer tore down the
// connection underneath us.
func (e *OpError) ConnectionReset() bool {
	return e.Errno == syscall.ECONNRESET || e.Errno == syscall.ENOTCONN
}

// newOpError classifies a raw errno into the taxonomy's Kind, following the
// translation rules of spec §4.1 (io_uring backend):
//
//	ECONNREFUSED   -> connection_refused
//	EINPROGRESS/EAGAIN -> would_block
//	everything else    -> io (raw code preserved)
func newOpError(errno syscall.Errno) *OpError {
	e := &OpError{Errno: errno}
	switch errno {
	case syscall.ECONNREFUSED:
		e.Kind = ErrConnectionRefused
	case syscall.EINPROGRESS, syscall.EAGAIN:
		e.Kind = ErrWouldBlock
	default:
		e.Kind = ErrIO
	}
	return e
}
