//go:build !windows

package ipc

import (
	"net"
	"os"
)

func newListener(socketPath string) (net.Listener, error) {
	_ = os.Remove(socketPath) // stale socket from a previous run
	return net.Listen("unix", socketPath)
}

func cleanupListener(socketPath string) {
	_ = os.Remove(socketPath)
}
