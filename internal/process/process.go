package process

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"
)

// ErrLaunchFailed is returned when the OS did not accept the launch request.
var ErrLaunchFailed = errors.New("failed to open template")

// DefaultBrokerTimeout is how long Open waits for the opener to hand the file over.
const DefaultBrokerTimeout = 5 * time.Second

// Opener starts the application associated with a file. The zero value uses the
// platform's default association mechanism.
type Opener struct {
	// Command overrides the opener binary. Args are placed before the target path.
	Command string
	Args    []string
	// Env is appended to the current environment of the launched process.
	Env []string
	// BrokerTimeout bounds the wait for the opener to exit. Zero means DefaultBrokerTimeout.
	BrokerTimeout time.Duration
}

// Open hands target to its associated application.
//
// Openers such as xdg-open, open(1) and "cmd /C start" are brokers: they exit as soon
// as the application is running, and exit non-zero when no application is associated
// with the file. Open waits for that exit and reports a non-zero status as
// ErrLaunchFailed. An opener still running after BrokerTimeout is assumed to be the
// application itself; it is left running and reaped in the background.
func (o Opener) Open(target string) error {
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	if o.Command == "" {
		return openDefault(o, target)
	}
	return o.run(target, o.command(target))
}

func (o Opener) run(target string, cmd *exec.Cmd) error {
	cmd.Env = append(os.Environ(), o.Env...)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	pid := cmd.Process.Pid

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timeout := o.BrokerTimeout
	if timeout <= 0 {
		timeout = DefaultBrokerTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: no application accepted %s: %w", ErrLaunchFailed, target, err)
		}
		log.Printf("[launch] opened %s (pid %d)", target, pid)
	case <-timer.C:
		log.Printf("[launch] opener for %s still running after %s, detaching (pid %d)", target, timeout, pid)
	}
	return nil
}

func (o Opener) command(target string) *exec.Cmd {
	args := append(append([]string{}, o.Args...), target)
	return exec.Command(o.Command, args...)
}
