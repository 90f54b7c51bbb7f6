//go:build linux

package aio

import (
	"runtime"
	"syscall"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
)

const cqeBatchSize = 32

// Loop is the io_uring-backed Reactor (spec §4.1, "Reactor (io_uring
// backend)"). One Loop owns one ring and must be driven from a single
// goroutine for its entire lifetime.
type Loop struct {
	ring    *giouring.Ring
	ops     opTable
	pending []func(*giouring.SubmissionQueueEntry)
	pinner  map[OpID]*runtime.Pinner
}

var _ Reactor = (*Loop)(nil)

// New creates an io_uring-backed Reactor.
func New(opt Options) (*Loop, error) {
	ring, err := giouring.CreateRing(opt.RingEntries)
	if err != nil {
		return nil, err
	}
	l := &Loop{ring: ring, pinner: make(map[OpID]*runtime.Pinner)}
	l.ops.init()
	return l, nil
}

func (l *Loop) Pending() int { return l.ops.len() }

func (l *Loop) Shutdown() error {
	l.ring.QueueExit()
	return nil
}

func (l *Loop) Cancel(id OpID) {
	op, ok := l.ops.get(id)
	if !ok {
		return
	}
	l.ops.remove(id)
	if pinner, ok := l.pinner[id]; ok {
		pinner.Unpin()
		delete(l.pinner, id)
	}
	l.prepare(func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareCancel(uint64(id), 0)
		sqe.UserData = 0
	})
	_ = op // the normal completion may still fire; cancel is best-effort
}

func (l *Loop) Socket(domain, typ, protocol int, ctx Context) OpID {
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpSocket})
	l.prepare(func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareSocket(domain, typ, protocol, 0)
		sqe.UserData = uint64(id)
	})
	return id
}

func (l *Loop) Connect(fd int, addr Sockaddr, ctx Context) OpID {
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpConnect, fd: fd})
	rawAddr, rawLen, err := encodeSockaddr(addr)
	if err != nil {
		l.ops.remove(id)
		l.completeError(id, ctx, newOpError(syscall.EINVAL))
		return id
	}
	pinner := &runtime.Pinner{}
	pinner.Pin(rawAddr)
	l.pinner[id] = pinner
	l.prepare(func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareConnect(fd, uintptr(rawAddr), uint64(rawLen))
		sqe.UserData = uint64(id)
	})
	return id
}

func (l *Loop) Accept(fd int, ctx Context) OpID {
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpAccept, fd: fd})
	l.prepare(func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareAccept(fd, 0, 0, 0)
		sqe.UserData = uint64(id)
	})
	return id
}

func (l *Loop) Recv(fd int, buf []byte, ctx Context) OpID {
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpRecv, buf: buf, fd: fd})
	if len(buf) == 0 {
		panic("aio: Recv requires a non-empty buffer")
	}
	pinner := &runtime.Pinner{}
	pinner.Pin(&buf[0])
	l.pinner[id] = pinner
	l.prepare(func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareRecv(fd, uintptr(unsafe.Pointer(&buf[0])), uint32(len(buf)), 0)
		sqe.UserData = uint64(id)
	})
	return id
}

func (l *Loop) Send(fd int, buf []byte, ctx Context) OpID {
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpSend, buf: buf, fd: fd})
	if len(buf) == 0 {
		panic("aio: Send requires a non-empty buffer")
	}
	pinner := &runtime.Pinner{}
	pinner.Pin(&buf[0])
	l.pinner[id] = pinner
	l.prepare(func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareSend(fd, uintptr(unsafe.Pointer(&buf[0])), uint32(len(buf)), 0)
		sqe.UserData = uint64(id)
	})
	return id
}

func (l *Loop) Close(fd int, ctx Context) OpID {
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpClose, fd: fd})
	l.prepare(func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareClose(fd)
		sqe.UserData = uint64(id)
	})
	return id
}

func (l *Loop) Run(mode Mode) error {
	switch mode {
	case ModeOnce:
		if err := l.submit(); err != nil {
			return err
		}
		_, err := l.ring.SubmitAndWait(0)
		if err != nil && !temporary(err) {
			return err
		}
		l.flushCompletions()
		return nil
	case ModeUntilDone:
		for l.ops.len() > 0 {
			if err := l.runWait(1); err != nil {
				return err
			}
		}
		return nil
	case ModeForever:
		for {
			if err := l.runWait(1); err != nil {
				return err
			}
		}
	default:
		panic("aio: unknown run mode")
	}
}

func (l *Loop) runWait(waitNr uint32) error {
	if err := l.submit(); err != nil {
		return err
	}
	for {
		_, err := l.ring.SubmitAndWait(waitNr)
		if err != nil {
			if temporary(err) {
				continue
			}
			return err
		}
		break
	}
	l.flushCompletions()
	return nil
}

func (l *Loop) submit() error {
	l.preparePending()
	_, err := l.ring.Submit()
	if err != nil && !temporary(err) {
		return err
	}
	return nil
}

func (l *Loop) prepare(op func(*giouring.SubmissionQueueEntry)) {
	sqe := l.ring.GetSQE()
	if sqe == nil {
		l.pending = append(l.pending, op)
		return
	}
	op(sqe)
}

func (l *Loop) preparePending() {
	prepared := 0
	for _, op := range l.pending {
		sqe := l.ring.GetSQE()
		if sqe == nil {
			break
		}
		op(sqe)
		prepared++
	}
	if prepared == len(l.pending) {
		l.pending = nil
	} else {
		l.pending = l.pending[prepared:]
	}
}

func (l *Loop) flushCompletions() {
	var cqes [cqeBatchSize]*giouring.CompletionQueueEvent
	for {
		peeked := l.ring.PeekBatchCQE(cqes[:])
		for _, cqe := range cqes[:peeked] {
			if cqe.UserData == 0 {
				// cancel SQEs are submitted with UserData cleared; their
				// own completion carries no pending entry to resolve.
				continue
			}
			l.complete(OpID(cqe.UserData), cqe.Res, cqe.Flags)
		}
		l.ring.CQAdvance(peeked)
		if peeked < uint32(len(cqes)) {
			return
		}
	}
}

func (l *Loop) complete(id OpID, res int32, flags uint32) {
	op, ok := l.ops.get(id)
	if !ok {
		// already cancelled locally; kernel still reported it.
		return
	}
	l.ops.remove(id)
	if pinner, ok := l.pinner[id]; ok {
		pinner.Unpin()
		delete(l.pinner, id)
	}

	var result Result
	if res < 0 {
		errno := syscall.Errno(-res)
		result = Result{Kind: ResultError, Err: newOpError(errno)}
	} else {
		switch op.kin {
		case OpSocket:
			result = Result{Kind: ResultSocket, FD: int(res)}
		case OpAccept:
			result = Result{Kind: ResultAccept, FD: int(res)}
		case OpConnect:
			result = Result{Kind: ResultConnect}
		case OpRecv:
			result = Result{Kind: ResultRecv, N: int(res)}
		case OpSend:
			result = Result{Kind: ResultSend, N: int(res)}
		case OpClose:
			result = Result{Kind: ResultClose}
		}
	}
	l.invoke(id, op.ctx, result)
}

func (l *Loop) completeError(id OpID, ctx Context, err *OpError) {
	l.invoke(id, ctx, Result{Kind: ResultError, Err: err})
}

func (l *Loop) invoke(id OpID, ctx Context, result Result) {
	if ctx.Callback == nil {
		return
	}
	c := Completion{ID: id, UserData: ctx.UserData, Tag: ctx.Tag, Callback: ctx.Callback, Result: result}
	ctx.Callback(l, c)
}

// temporary reports whether err (as returned by a ring syscall) should be
// retried rather than propagated.
func temporary(err error) bool {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false
	}
	return errno == syscall.EINTR || errno == syscall.EAGAIN
}

