//go:build !windows

package process

import (
	"os/exec"
	"runtime"
)

func openDefault(o Opener, target string) error {
	return o.run(target, defaultCommand(target))
}

// defaultCommand uses open(1) on macOS and xdg-open elsewhere. Both exit non-zero
// when no application handles the file type.
func defaultCommand(target string) *exec.Cmd {
	if runtime.GOOS == "darwin" {
		return exec.Command("open", target)
	}
	return exec.Command("xdg-open", target)
}
