// Command priseclient is the client side of the Unix domain socket
// described in spec §6. It speaks the Request/Response/Notification wire
// protocol over an aio.Reactor connection, daemonizing prised on first
// use if nothing is listening yet.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/ianic/prise/aio"
	"github.com/ianic/prise/internal/daemonize"
	"github.com/ianic/prise/rpc"
)

func main() {
	method := flag.String("method", "ping", "RPC method to invoke")
	flag.Parse()

	if err := run(*method); err != nil {
		slog.Error("priseclient: failed", "err", err)
		os.Exit(1)
	}
}

const recvBufSize = 64 * 1024

func run(method string) error {
	path := daemonize.SocketPath(os.Getuid())
	serverArgv := []string{serverBinary()}

	if err := daemonize.EnsureServer(path, serverArgv); err != nil {
		return err
	}

	reactor, err := aio.New(aio.DefaultOptions)
	if err != nil {
		return err
	}
	defer reactor.Shutdown()

	fd, err := syscall.Socket(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return err
	}

	codec := rpc.NewCodec()
	recvBuf := make([]byte, recvBufSize)
	done := false
	var runErr error

	reactor.Connect(fd, &syscall.SockaddrUnix{Name: path}, aio.Context{
		Callback: func(r aio.Reactor, c aio.Completion) {
			if c.Result.Kind == aio.ResultError {
				runErr = c.Result.Err
				done = true
				return
			}
			req := codec.EncodeRequest(1, method, rpc.NewArray(nil))
			r.Send(fd, req, aio.Context{})
			r.Recv(fd, recvBuf, aio.Context{
				Callback: func(r aio.Reactor, c aio.Completion) {
					defer func() { done = true }()
					if c.Result.Kind == aio.ResultError {
						runErr = c.Result.Err
						return
					}
					frame, _, err := rpc.DecodeMessage(recvBuf[:c.Result.N])
					if err != nil {
						runErr = err
						return
					}
					if resp, ok := frame.(rpc.Response); ok {
						slog.Info("priseclient: response", "msgid", resp.MsgID, "result", resp.Result.String())
					}
					r.Close(fd, aio.Context{})
				},
			})
		},
	})

	for !done {
		if err := reactor.Run(aio.ModeUntilDone); err != nil {
			return err
		}
		if reactor.Pending() == 0 {
			break
		}
	}
	return runErr
}

// serverBinary resolves the prised binary expected to sit alongside this
// one; a real install would look it up on PATH instead.
func serverBinary() string {
	self, err := os.Executable()
	if err != nil {
		return "prised"
	}
	return filepath.Join(filepath.Dir(self), "prised")
}
