//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package aio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Loop is the kqueue-backed Reactor (spec §4.1, "Reactor (kqueue
// backend)"). kqueue reports readiness, not completion, so Loop performs
// the actual accept/connect/recv/send/close syscall itself when a filter
// fires and synthesizes a completion shaped exactly like the io_uring
// backend's.
type Loop struct {
	kq       int
	ops      opTable
	ready    []readyCompletion
	readReg  map[int]OpID // fd -> op waiting on EVFILT_READ (accept, recv)
	writeReg map[int]OpID // fd -> op waiting on EVFILT_WRITE (connect, send)
	events   []unix.Kevent_t
}

var _ Reactor = (*Loop)(nil)

type readyCompletion struct {
	id     OpID
	result Result
}

// New creates a kqueue-backed Reactor.
func New(opt Options) (*Loop, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	if _, err := unix.FcntlInt(uintptr(kq), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		unix.Close(kq)
		return nil, err
	}
	n := opt.EventBuffer
	if n == 0 {
		n = 64
	}
	l := &Loop{
		kq:       kq,
		readReg:  make(map[int]OpID),
		writeReg: make(map[int]OpID),
		events:   make([]unix.Kevent_t, n),
	}
	l.ops.init()
	return l, nil
}

func (l *Loop) Pending() int { return l.ops.len() }

func (l *Loop) Shutdown() error {
	return unix.Close(l.kq)
}

func (l *Loop) Cancel(id OpID) {
	l.ops.remove(id)
	// the fd->id registrations and the ready queue are checked against
	// the operation table on fire/flush, so a stale entry there is
	// harmless: it resolves to a silent miss.
}

func (l *Loop) Socket(domain, typ, protocol int, ctx Context) OpID {
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpSocket})
	fd, err := syscall.Socket(domain, typ, protocol)
	if err != nil {
		l.queueReady(id, errResult(err))
		return id
	}
	_ = syscall.SetNonblock(fd, true)
	l.queueReady(id, Result{Kind: ResultSocket, FD: fd})
	return id
}

func (l *Loop) Connect(fd int, addr Sockaddr, ctx Context) OpID {
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpConnect, fd: fd})
	err := syscall.Connect(fd, addr)
	if err == nil {
		l.queueReady(id, Result{Kind: ResultConnect})
		return id
	}
	if err != syscall.EINPROGRESS {
		l.queueReady(id, errResult(err))
		return id
	}
	l.writeReg[fd] = id
	l.registerWrite(fd, false)
	return id
}

func (l *Loop) Accept(fd int, ctx Context) OpID {
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpAccept, fd: fd})
	l.readReg[fd] = id
	l.registerRead(fd, false)
	l.tryAccept(fd)
	return id
}

func (l *Loop) Recv(fd int, buf []byte, ctx Context) OpID {
	if len(buf) == 0 {
		panic("aio: Recv requires a non-empty buffer")
	}
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpRecv, buf: buf, fd: fd})
	l.readReg[fd] = id
	l.registerRead(fd, false)
	l.tryRecv(fd)
	return id
}

func (l *Loop) Send(fd int, buf []byte, ctx Context) OpID {
	if len(buf) == 0 {
		panic("aio: Send requires a non-empty buffer")
	}
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpSend, buf: buf, fd: fd})
	if l.trySend(fd, id) {
		return id
	}
	l.writeReg[fd] = id
	l.registerWrite(fd, true)
	return id
}

func (l *Loop) Close(fd int, ctx Context) OpID {
	id := l.ops.insert(pendingOp{ctx: ctx, kin: OpClose, fd: fd})
	_ = syscall.Close(fd)
	delete(l.readReg, fd)
	delete(l.writeReg, fd)
	l.queueReady(id, Result{Kind: ResultClose})
	return id
}

func (l *Loop) Run(mode Mode) error {
	switch mode {
	case ModeOnce:
		l.flushReady()
		return l.poll(&unix.Timespec{})
	case ModeUntilDone:
		for l.ops.len() > 0 {
			l.flushReady()
			if l.ops.len() == 0 {
				return nil
			}
			if err := l.poll(nil); err != nil {
				return err
			}
		}
		return nil
	case ModeForever:
		for {
			l.flushReady()
			if err := l.poll(nil); err != nil {
				return err
			}
		}
	default:
		panic("aio: unknown run mode")
	}
}

// poll waits for kqueue events (ts==nil blocks indefinitely, a non-nil
// zero Timespec returns immediately) and dispatches each one.
func (l *Loop) poll(ts *unix.Timespec) error {
	n, err := unix.Kevent(l.kq, nil, l.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		ev := l.events[i]
		fd := int(ev.Ident)
		switch ev.Filter {
		case unix.EVFILT_READ:
			l.fireRead(fd)
		case unix.EVFILT_WRITE:
			l.fireWrite(fd)
		}
	}
	l.flushReady()
	return nil
}

func (l *Loop) fireRead(fd int) {
	id, ok := l.readReg[fd]
	if !ok {
		return
	}
	op, ok := l.ops.get(id)
	if !ok {
		delete(l.readReg, fd)
		return
	}
	switch op.kin {
	case OpAccept:
		l.tryAccept(fd)
	case OpRecv:
		l.tryRecv(fd)
	}
}

func (l *Loop) fireWrite(fd int) {
	id, ok := l.writeReg[fd]
	if !ok {
		return
	}
	op, ok := l.ops.get(id)
	if !ok {
		delete(l.writeReg, fd)
		return
	}
	switch op.kin {
	case OpConnect:
		l.completeConnectFire(fd, id)
	case OpSend:
		l.trySend(fd, id)
	}
}

func (l *Loop) completeConnectFire(fd int, id OpID) {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	delete(l.writeReg, fd)
	if err != nil {
		l.resolve(id, errResult(err))
		return
	}
	if errno != 0 {
		l.resolve(id, errResult(syscall.Errno(errno)))
		return
	}
	l.resolve(id, Result{Kind: ResultConnect})
}

func (l *Loop) tryAccept(fd int) {
	id, ok := l.readReg[fd]
	if !ok {
		return
	}
	nfd, _, err := syscall.Accept(fd)
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			return // spurious wake-up, stay armed
		}
		delete(l.readReg, fd)
		l.resolve(id, errResult(err))
		return
	}
	_ = syscall.SetNonblock(nfd, true)
	delete(l.readReg, fd)
	l.resolve(id, Result{Kind: ResultAccept, FD: nfd})
}

func (l *Loop) tryRecv(fd int) {
	id, ok := l.readReg[fd]
	if !ok {
		return
	}
	op, ok := l.ops.get(id)
	if !ok {
		delete(l.readReg, fd)
		return
	}
	n, err := syscall.Read(fd, op.buf)
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			return
		}
		delete(l.readReg, fd)
		l.resolve(id, errResult(err))
		return
	}
	delete(l.readReg, fd)
	l.resolve(id, Result{Kind: ResultRecv, N: n})
}

// trySend attempts a non-blocking send; returns true if it resolved the
// operation (success or hard error), false if it must wait for
// EVFILT_WRITE.
func (l *Loop) trySend(fd int, id OpID) bool {
	op, ok := l.ops.get(id)
	if !ok {
		return true
	}
	n, err := syscall.Write(fd, op.buf)
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			return false
		}
		l.resolve(id, errResult(err))
		return true
	}
	l.resolve(id, Result{Kind: ResultSend, N: n})
	return true
}

func (l *Loop) registerRead(fd int, oneshot bool) {
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if oneshot {
		flags |= unix.EV_ONESHOT
	}
	ev := unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags}
	_, _ = unix.Kevent(l.kq, []unix.Kevent_t{ev}, nil, nil)
}

func (l *Loop) registerWrite(fd int, oneshot bool) {
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if oneshot {
		flags |= unix.EV_ONESHOT
	}
	ev := unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags}
	_, _ = unix.Kevent(l.kq, []unix.Kevent_t{ev}, nil, nil)
}

// resolve completes id immediately; used from inside event dispatch where
// the callback is free to re-enter Run's caller since we are not holding
// any kqueue-specific lock (Loop is single-threaded by contract).
func (l *Loop) resolve(id OpID, result Result) {
	op, ok := l.ops.get(id)
	if !ok {
		return
	}
	l.ops.remove(id)
	l.invoke(op.ctx, id, result)
}

// queueReady defers delivery of an already-known outcome (socket, close,
// synchronous connect/send/recv results) to the next flushReady, so every
// completion is observed from inside Run exactly like the io_uring
// backend's.
func (l *Loop) queueReady(id OpID, result Result) {
	l.ready = append(l.ready, readyCompletion{id: id, result: result})
}

func (l *Loop) flushReady() {
	if len(l.ready) == 0 {
		return
	}
	batch := l.ready
	l.ready = nil
	for _, rc := range batch {
		l.resolve(rc.id, rc.result)
	}
}

func (l *Loop) invoke(ctx Context, id OpID, result Result) {
	if ctx.Callback == nil {
		return
	}
	c := Completion{ID: id, UserData: ctx.UserData, Tag: ctx.Tag, Callback: ctx.Callback, Result: result}
	ctx.Callback(l, c)
}

func errResult(err error) Result {
	errno, ok := err.(syscall.Errno)
	if !ok {
		errno = syscall.EIO
	}
	return Result{Kind: ResultError, Err: newOpError(errno)}
}
