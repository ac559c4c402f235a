package process

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestMain lets the test binary stand in for the opener. PROCESS_TEST_HELPER selects
// how it behaves.
func TestMain(m *testing.M) {
	switch os.Getenv("PROCESS_TEST_HELPER") {
	case "record":
		target := os.Args[len(os.Args)-1]
		_ = os.WriteFile(os.Getenv("PROCESS_TEST_MARKER"), []byte(target), 0644)
		os.Exit(0)
	case "noassoc":
		// xdg-open: "the action failed" / no handler for the file type
		os.Exit(3)
	case "linger":
		time.Sleep(3 * time.Second)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func writeTemplate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "STIC33X21.btw")
	if err := os.WriteFile(path, []byte("template"), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	return path
}

func helperOpener(mode string, env ...string) Opener {
	return Opener{
		Command: os.Args[0],
		Env:     append([]string{"PROCESS_TEST_HELPER=" + mode}, env...),
	}
}

func TestOpen_PassesTargetToOpener(t *testing.T) {
	template := writeTemplate(t)
	marker := filepath.Join(t.TempDir(), "opened")

	if err := helperOpener("record", "PROCESS_TEST_MARKER="+marker).Open(template); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// The opener has exited by the time Open returns.
	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("opener did not run: %v", err)
	}
	if string(data) != template {
		t.Errorf("opener received %q, want %q", data, template)
	}
}

func TestOpen_OpenerReportsNoAssociation(t *testing.T) {
	template := writeTemplate(t)

	err := helperOpener("noassoc").Open(template)
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed, got %v", err)
	}
}

func TestOpen_DetachesLongRunningOpener(t *testing.T) {
	template := writeTemplate(t)
	o := helperOpener("linger")
	o.BrokerTimeout = 100 * time.Millisecond

	start := time.Now()
	if err := o.Open(template); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Open waited %s for a lingering opener", elapsed)
	}
}

func TestOpen_MissingTemplate(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "opened")
	err := helperOpener("record", "PROCESS_TEST_MARKER="+marker).Open(filepath.Join(t.TempDir(), "missing.btw"))
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed, got %v", err)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Error("opener must not run for a missing template")
	}
}

func TestOpen_OpenerNotInstalled(t *testing.T) {
	template := writeTemplate(t)
	o := Opener{Command: filepath.Join(t.TempDir(), "no-such-opener")}
	err := o.Open(template)
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed, got %v", err)
	}
}

func TestCommand_ArgsPrecedeTarget(t *testing.T) {
	o := Opener{Command: "opener", Args: []string{"-a", "Label App"}}
	cmd := o.command("/tmp/x.btw")
	want := []string{"opener", "-a", "Label App", "/tmp/x.btw"}
	if len(cmd.Args) != len(want) {
		t.Fatalf("args: got %q, want %q", cmd.Args, want)
	}
	for i := range want {
		if cmd.Args[i] != want[i] {
			t.Errorf("arg %d: got %q, want %q", i, cmd.Args[i], want[i])
		}
	}
}
