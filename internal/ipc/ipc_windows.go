//go:build windows

package ipc

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// newListener opens a byte-mode named pipe with the default security descriptor.
func newListener(socketPath string) (net.Listener, error) {
	return winio.ListenPipe(socketPath, &winio.PipeConfig{
		MessageMode:      false,
		InputBufferSize:  64 * 1024,
		OutputBufferSize: 64 * 1024,
	})
}

func cleanupListener(_ string) {
	// Named pipes go away with the listener.
}
