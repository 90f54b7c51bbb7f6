//go:build linux

package aio

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLoopUnixSocketRoundTrip exercises spec §8 scenario 1 end to end
// against the real io_uring backend rather than the mock: Socket, Accept,
// Connect and Send/Recv all go through the kernel ring.
func TestLoopUnixSocketRoundTrip(t *testing.T) {
	path := tempSocketPath(t)

	listenFD, err := syscall.Socket(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer syscall.Close(listenFD)
	require.NoError(t, syscall.Bind(listenFD, &syscall.SockaddrUnix{Name: path}))
	require.NoError(t, syscall.Listen(listenFD, 1))

	loop, err := New(Options{RingEntries: 32})
	require.NoError(t, err)
	defer loop.Shutdown()

	var connected, accepted bool
	var recvN int
	recvBuf := make([]byte, 32)

	loop.Accept(listenFD, Context{
		Callback: func(r Reactor, c Completion) {
			require.Equal(t, ResultAccept, c.Result.Kind)
			accepted = true
			r.Recv(c.Result.FD, recvBuf, Context{
				Callback: func(r Reactor, c Completion) {
					require.Equal(t, ResultRecv, c.Result.Kind)
					recvN = c.Result.N
				},
			})
		},
	})

	clientFD, err := syscall.Socket(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer syscall.Close(clientFD)

	loop.Connect(clientFD, &syscall.SockaddrUnix{Name: path}, Context{
		Callback: func(r Reactor, c Completion) {
			require.Equal(t, ResultConnect, c.Result.Kind)
			connected = true
			r.Send(clientFD, []byte("hello"), Context{})
		},
	})

	require.NoError(t, loop.Run(ModeUntilDone))

	require.True(t, accepted)
	require.True(t, connected)
	require.Equal(t, 5, recvN)
	require.Equal(t, "hello", string(recvBuf[:recvN]))
	require.Equal(t, 0, loop.Pending())
}

// TestLoopCancelUnpinsBuffer is a white-box check of the no-leaks
// invariant (spec §8): cancelling a pending Recv must release the pinned
// buffer immediately rather than holding it until a completion that may
// never arrive.
func TestLoopCancelUnpinsBuffer(t *testing.T) {
	loop, err := New(Options{RingEntries: 16})
	require.NoError(t, err)
	defer loop.Shutdown()

	fds := make([]int, 2)
	require.NoError(t, syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0, fds))
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])

	buf := make([]byte, 16)
	id := loop.Recv(fds[0], buf, Context{})
	require.Len(t, loop.pinner, 1)

	loop.Cancel(id)
	require.Empty(t, loop.pinner)
	require.Equal(t, 0, loop.Pending())
}

// TestLoopCancelUnknownIDIsSafe covers spec §8's "cancel is safe" property
// for an id the Loop never issued.
func TestLoopCancelUnknownIDIsSafe(t *testing.T) {
	loop, err := New(Options{RingEntries: 16})
	require.NoError(t, err)
	defer loop.Shutdown()

	require.NotPanics(t, func() { loop.Cancel(OpID(999)) })
	require.Equal(t, 0, loop.Pending())
}
