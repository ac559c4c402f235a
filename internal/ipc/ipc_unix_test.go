//go:build !windows

package ipc

import (
	"net"
	"path/filepath"
	"testing"
)

func dialSocket(socketPath string) (net.Conn, error) {
	return net.Dial("unix", socketPath)
}

func testSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "lb.sock")
}
