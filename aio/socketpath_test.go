package aio

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

// tempSocketPath returns a Unix domain socket path scoped to t's name and
// the current process, removing any stale file at that path on cleanup.
// Shared by the io_uring and kqueue backend tests, which each drive a real
// listening socket through the platform-specific Loop.
func tempSocketPath(t *testing.T) string {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	path := fmt.Sprintf("%s/aio-test-%d-%s.sock", os.TempDir(), os.Getpid(), name)
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })
	return path
}
