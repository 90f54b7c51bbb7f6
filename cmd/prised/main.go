// Command prised is the server side of the Unix domain socket described
// in spec §6: it listens on /tmp/prise-<uid>.sock and dispatches decoded
// RPC frames from each connection.
package main

import (
	"log/slog"
	"os"
	"syscall"

	"github.com/ianic/prise/aio"
	"github.com/ianic/prise/aio/signal"
	"github.com/ianic/prise/internal/daemonize"
	"github.com/ianic/prise/rpc"
)

func main() {
	if err := daemonize.Daemonize(run); err != nil {
		slog.Error("prised: daemonize failed", "err", err)
		os.Exit(1)
	}
}

const recvBufSize = 64 * 1024

type conn struct {
	fd      int
	reactor aio.Reactor
	codec   *rpc.Codec
	recvBuf []byte
	pending []byte // unconsumed bytes carried across recv calls
}

func run() error {
	path := daemonize.SocketPath(os.Getuid())
	os.Remove(path)

	reactor, err := aio.New(aio.DefaultOptions)
	if err != nil {
		return err
	}
	defer reactor.Shutdown()

	listenFD, err := syscall.Socket(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	if err := syscall.Bind(listenFD, &syscall.SockaddrUnix{Name: path}); err != nil {
		return err
	}
	if err := syscall.Listen(listenFD, 64); err != nil {
		return err
	}
	slog.Info("prised: listening", "path", path)

	armAccept(reactor, listenFD)

	ctx := signal.InterruptContext()
	go func() {
		<-ctx.Done()
		reactor.Shutdown()
		os.Exit(0)
	}()

	return reactor.Run(aio.ModeForever)
}

func armAccept(reactor aio.Reactor, listenFD int) {
	reactor.Accept(listenFD, aio.Context{
		UserData: listenFD,
		Callback: onAccept,
	})
}

func onAccept(r aio.Reactor, c aio.Completion) {
	listenFD := c.UserData.(int)
	armAccept(r, listenFD) // keep listening for the next peer

	if c.Result.Kind == aio.ResultError {
		slog.Warn("prised: accept failed", "err", c.Result.Err)
		return
	}

	cn := &conn{
		fd:      c.Result.FD,
		reactor: r,
		codec:   rpc.NewCodec(),
		recvBuf: make([]byte, recvBufSize),
	}
	cn.armRecv()
}

func (c *conn) armRecv() {
	c.reactor.Recv(c.fd, c.recvBuf, aio.Context{
		UserData: c,
		Callback: onRecv,
	})
}

func onRecv(r aio.Reactor, comp aio.Completion) {
	c := comp.UserData.(*conn)

	switch comp.Result.Kind {
	case aio.ResultError:
		slog.Warn("prised: recv failed", "fd", c.fd, "err", comp.Result.Err)
		r.Close(c.fd, aio.Context{})
		return
	case aio.ResultRecv:
		if comp.Result.N == 0 {
			r.Close(c.fd, aio.Context{})
			return
		}
		c.pending = append(c.pending, c.recvBuf[:comp.Result.N]...)
		c.drainFrames(r)
		c.armRecv()
	}
}

// drainFrames decodes as many complete frames as pending currently holds,
// dispatching each one, and leaves any trailing partial frame in place.
func (c *conn) drainFrames(r aio.Reactor) {
	for len(c.pending) > 0 {
		frame, n, err := c.codec.Decode(c.pending)
		if err != nil {
			if cerr, ok := err.(*rpc.CodecError); ok && cerr.Kind == rpc.ErrInvalidMessageFormat && n == 0 {
				return // incomplete frame; wait for more bytes
			}
			slog.Warn("prised: codec error, closing connection", "fd", c.fd, "err", err)
			r.Close(c.fd, aio.Context{})
			c.pending = nil
			return
		}
		c.pending = c.pending[n:]
		c.dispatch(r, frame)
	}
}

func (c *conn) dispatch(r aio.Reactor, frame rpc.Frame) {
	switch f := frame.(type) {
	case rpc.Request:
		slog.Debug("prised: request", "method", f.Method, "msgid", f.MsgID)
		resp := c.codec.EncodeResponse(f.MsgID, rpc.Nil, rpc.NewString("ok"))
		r.Send(c.fd, resp, aio.Context{})
	case rpc.Notification:
		slog.Debug("prised: notification", "method", f.Method)
	case rpc.Response:
		slog.Debug("prised: unexpected response from peer", "msgid", f.MsgID)
	}
}
