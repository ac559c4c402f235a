//go:build windows

package ipc

import (
	"net"
	"testing"
	"time"

	"github.com/Microsoft/go-winio"
	"github.com/google/uuid"
)

func dialSocket(socketPath string) (net.Conn, error) {
	timeout := 2 * time.Second
	return winio.DialPipe(socketPath, &timeout)
}

func testSocketPath(t *testing.T) string {
	t.Helper()
	return `\\.\pipe\labelbridge-test-` + uuid.New().String()
}
