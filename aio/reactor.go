// Package aio implements the cross-platform asynchronous I/O reactor:
// a single-threaded, completion-based façade over io_uring (Linux) and
// kqueue (BSD/macOS), plus an in-memory mock backend for tests.
//
// Every façade operation is non-blocking and returns an OpID synchronously;
// the outcome is delivered later, from inside Run, through the Context's
// Callback. Callbacks run on the goroutine that calls Run and must not
// block — any further I/O is expressed as a new operation.
package aio

import (
	"fmt"
	"syscall"
)

// Sockaddr is the address type accepted by Connect; it is an alias of
// syscall.Sockaddr so callers can pass *syscall.SockaddrInet4,
// *syscall.SockaddrInet6 or *syscall.SockaddrUnix directly.
type Sockaddr = syscall.Sockaddr

// OpID identifies one submitted operation for its entire lifetime. It is
// monotonically increasing and never reused by a given Reactor.
type OpID uint64

// OpKind is the kind of work a pending operation represents.
type OpKind uint8

const (
	OpSocket OpKind = iota
	OpConnect
	OpAccept
	OpRecv
	OpSend
	OpClose
)

func (k OpKind) String() string {
	switch k {
	case OpSocket:
		return "socket"
	case OpConnect:
		return "connect"
	case OpAccept:
		return "accept"
	case OpRecv:
		return "recv"
	case OpSend:
		return "send"
	case OpClose:
		return "close"
	default:
		return "unknown"
	}
}

// Context is the caller-supplied triple carried from submission to
// completion: an opaque userdata value the reactor never inspects, a small
// tag letting one callback multiplex several outstanding operations, and
// the callback itself. Callbacks may re-enter the façade (submit further
// work, cancel) but must not block.
type Context struct {
	UserData any
	Tag      uint16
	Callback func(Reactor, Completion)
}

// Completion is delivered exactly once per OpID. UserData, Tag and
// Callback are copied verbatim from the originating Context so the
// callback can re-enter its own state machine without a lookup.
type Completion struct {
	ID       OpID
	UserData any
	Tag      uint16
	Callback func(Reactor, Completion)
	Result   Result
}

// ResultKind tags the outcome variant of a Completion.
type ResultKind uint8

const (
	ResultSocket ResultKind = iota
	ResultConnect
	ResultAccept
	ResultRecv
	ResultSend
	ResultClose
	ResultError
)

// Result is the tagged variant described in spec §3:
// socket(fd) | connect | accept(fd) | recv(nbytes) | send(nbytes) | close | error(kind).
type Result struct {
	Kind ResultKind
	FD   int   // ResultSocket, ResultAccept
	N    int   // ResultRecv, ResultSend; N==0 on ResultRecv means peer closed
	Err  *OpError
}

func (r Result) String() string {
	switch r.Kind {
	case ResultSocket:
		return fmt.Sprintf("socket(fd=%d)", r.FD)
	case ResultConnect:
		return "connect"
	case ResultAccept:
		return fmt.Sprintf("accept(fd=%d)", r.FD)
	case ResultRecv:
		return fmt.Sprintf("recv(n=%d)", r.N)
	case ResultSend:
		return fmt.Sprintf("send(n=%d)", r.N)
	case ResultClose:
		return "close"
	case ResultError:
		return fmt.Sprintf("error(%s)", r.Err)
	default:
		return "unknown"
	}
}

// Mode selects how Run drains the reactor.
type Mode uint8

const (
	// ModeOnce submits all pending work and drains whatever completions
	// the kernel already has, without waiting. Never blocks.
	ModeOnce Mode = iota
	// ModeUntilDone repeats submit/drain, waiting for at least one
	// completion per iteration, until the operation table is empty.
	ModeUntilDone
	// ModeForever repeats submit/drain with no exit condition; the
	// caller stops it by destroying the Reactor.
	ModeForever
)

// Reactor is the platform-selected façade of spec §4.1. Socket, Connect,
// Accept, Recv, Send and Close all return an OpID synchronously and
// deliver their outcome later through the Context's Callback. There is no
// internal locking: a Reactor is bound to a single goroutine for its
// entire lifetime.
type Reactor interface {
	Socket(domain, typ, protocol int, ctx Context) OpID
	Connect(fd int, addr Sockaddr, ctx Context) OpID
	Accept(fd int, ctx Context) OpID
	Recv(fd int, buf []byte, ctx Context) OpID
	Send(fd int, buf []byte, ctx Context) OpID
	Close(fd int, ctx Context) OpID

	// Cancel best-effort cancels a pending operation. It never traps on
	// an unknown, already-completed, or in-flight id; the normal
	// completion for id may still fire afterwards.
	Cancel(id OpID)

	// Run drains the reactor according to mode. ModeOnce never blocks;
	// on the kernel backends ModeUntilDone and ModeForever block waiting
	// for the kernel to report progress. The mock backend does not block:
	// its ModeUntilDone returns as soon as no injected completion is
	// queued, even if operations are still pending.
	Run(mode Mode) error

	// Pending returns the number of in-flight operations. Used by
	// ModeUntilDone and by tests asserting the no-leaks invariant.
	Pending() int

	// Shutdown tears the reactor down. Remaining operations are
	// abandoned: their buffers are left untouched and their callbacks
	// are not invoked.
	Shutdown() error
}
