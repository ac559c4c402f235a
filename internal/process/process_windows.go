//go:build windows

package process

import (
	"fmt"
	"log"

	"golang.org/x/sys/windows"
)

// openDefault asks the shell to open target with its registered verb. ShellExecute
// reports a missing association (SE_ERR_NOASSOC) synchronously.
func openDefault(_ Opener, target string) error {
	verb, err := windows.UTF16PtrFromString("open")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	file, err := windows.UTF16PtrFromString(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	if err := windows.ShellExecute(0, verb, file, nil, nil, windows.SW_SHOWNORMAL); err != nil {
		return fmt.Errorf("%w: no application accepted %s: %w", ErrLaunchFailed, target, err)
	}
	log.Printf("[launch] opened %s", target)
	return nil
}
