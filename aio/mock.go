package aio

import "syscall"

// Mock is the in-memory Reactor of spec §4.3, used by tests that want to
// drive the same callback state machine production code uses without a
// real kernel underneath. It mirrors the façade exactly and adds test
// hooks (CompleteConnect, CompleteWithError, CompleteRecv, CompleteSend,
// CompleteAccept) that inject a synthesized completion to be delivered on
// the next Run(ModeOnce).
type Mock struct {
	ops     opTable
	byFD    map[int]OpID // auxiliary index: fd -> the op pending on it
	nextFD  int
	ready   []readyCompletion
	sockets map[int]bool // fds handed out by Socket/Accept, for sanity only
}

var _ Reactor = (*Mock)(nil)

// NewMock creates an empty Mock reactor. Fds returned by Socket start at 3,
// matching the lowest fd a real process would hand back after stdin/
// stdout/stderr.
func NewMock() *Mock {
	m := &Mock{
		byFD:    make(map[int]OpID),
		nextFD:  3,
		sockets: make(map[int]bool),
	}
	m.ops.init()
	return m
}

func (m *Mock) Pending() int { return m.ops.len() }

func (m *Mock) Shutdown() error { return nil }

// Cancel marks id cancelled without removing its entry: a test hook fired
// after Cancel (CompleteRecv, CompleteWithError, ...) must still be able
// to resolve and deliver the completion exactly once, matching spec §8's
// cancel-race scenario. Cancel on an unknown or already-resolved id is a
// silent no-op.
func (m *Mock) Cancel(id OpID) {
	m.ops.cancel(id)
}

func (m *Mock) Socket(domain, typ, protocol int, ctx Context) OpID {
	fd := m.allocFD()
	id := m.ops.insert(pendingOp{ctx: ctx, kin: OpSocket, fd: fd})
	m.sockets[fd] = true
	m.byFD[fd] = id
	m.queueReady(id, Result{Kind: ResultSocket, FD: fd})
	return id
}

func (m *Mock) Connect(fd int, addr Sockaddr, ctx Context) OpID {
	id := m.ops.insert(pendingOp{ctx: ctx, kin: OpConnect, fd: fd})
	m.byFD[fd] = id
	return id
}

func (m *Mock) Accept(fd int, ctx Context) OpID {
	id := m.ops.insert(pendingOp{ctx: ctx, kin: OpAccept, fd: fd})
	m.byFD[fd] = id
	return id
}

func (m *Mock) Recv(fd int, buf []byte, ctx Context) OpID {
	id := m.ops.insert(pendingOp{ctx: ctx, kin: OpRecv, buf: buf, fd: fd})
	m.byFD[fd] = id
	return id
}

func (m *Mock) Send(fd int, buf []byte, ctx Context) OpID {
	id := m.ops.insert(pendingOp{ctx: ctx, kin: OpSend, buf: buf, fd: fd})
	m.byFD[fd] = id
	return id
}

func (m *Mock) Close(fd int, ctx Context) OpID {
	id := m.ops.insert(pendingOp{ctx: ctx, kin: OpClose, fd: fd})
	delete(m.sockets, fd)
	m.queueReady(id, Result{Kind: ResultClose})
	return id
}

func (m *Mock) Run(mode Mode) error {
	switch mode {
	case ModeOnce:
		m.flushReady()
		return nil
	case ModeUntilDone:
		for m.ops.len() > 0 {
			if len(m.ready) == 0 {
				// nothing left to synthesize and no test hook fired: a
				// real backend would block forever here, which is a
				// caller bug in a test.
				return nil
			}
			m.flushReady()
		}
		return nil
	case ModeForever:
		for {
			m.flushReady()
		}
	default:
		panic("aio: unknown run mode")
	}
}

func (m *Mock) allocFD() int {
	fd := m.nextFD
	m.nextFD++
	return fd
}

func (m *Mock) queueReady(id OpID, result Result) {
	m.ready = append(m.ready, readyCompletion{id: id, result: result})
}

func (m *Mock) flushReady() {
	if len(m.ready) == 0 {
		return
	}
	batch := m.ready
	m.ready = nil
	for _, rc := range batch {
		m.resolve(rc.id, rc.result)
	}
}

func (m *Mock) resolve(id OpID, result Result) {
	op, ok := m.ops.get(id)
	if !ok {
		return
	}
	m.ops.remove(id)
	if m.byFD[op.fd] == id {
		delete(m.byFD, op.fd)
	}
	if op.ctx.Callback == nil {
		return
	}
	c := Completion{ID: id, UserData: op.ctx.UserData, Tag: op.ctx.Tag, Callback: op.ctx.Callback, Result: result}
	op.ctx.Callback(m, c)
}

// CompleteConnect succeeds the connect operation pending on fd. Call
// Run(ModeOnce) afterwards to deliver it through the normal callback path.
func (m *Mock) CompleteConnect(fd int) {
	id, ok := m.byFD[fd]
	if !ok {
		return
	}
	m.queueReady(id, Result{Kind: ResultConnect})
}

// CompleteWithError fails whichever operation is pending on fd with kind.
// Call Run(ModeOnce) afterwards to deliver it.
func (m *Mock) CompleteWithError(fd int, kind ErrKind) {
	id, ok := m.byFD[fd]
	if !ok {
		return
	}
	errno := syscall.EIO
	switch kind {
	case ErrConnectionRefused:
		errno = syscall.ECONNREFUSED
	case ErrWouldBlock:
		errno = syscall.EAGAIN
	}
	m.queueReady(id, Result{Kind: ResultError, Err: newOpError(errno)})
}

// CompleteRecv succeeds the recv operation pending on fd with n bytes
// (copied into the caller's buffer by the test, if it wants specific
// contents; n==0 models the peer closing the connection).
func (m *Mock) CompleteRecv(fd int, n int) {
	id, ok := m.byFD[fd]
	if !ok {
		return
	}
	m.queueReady(id, Result{Kind: ResultRecv, N: n})
}

// CompleteSend succeeds the send operation pending on fd, reporting n
// bytes written.
func (m *Mock) CompleteSend(fd int, n int) {
	id, ok := m.byFD[fd]
	if !ok {
		return
	}
	m.queueReady(id, Result{Kind: ResultSend, N: n})
}

// CompleteAccept succeeds the accept operation pending on the listening
// fd, handing back newFD as the accepted connection.
func (m *Mock) CompleteAccept(fd int, newFD int) {
	id, ok := m.byFD[fd]
	if !ok {
		return
	}
	m.queueReady(id, Result{Kind: ResultAccept, FD: newFD})
}
