package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig creates a complete config.txt in a temp dir and returns its path and
// the configured data file path.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	return writeConfigFor(t, "http://127.0.0.1:1")
}

// writeConfigFor is writeConfig with the remote endpoints under baseURL.
func writeConfigFor(t *testing.T, baseURL string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "out", "labels.txt")
	content := fmt.Sprintf("SEARCH_API_URL=%s/search\nDATA_FILE_PATH=%s\nTEMPLATE_FILE_PATH=%s\nLOGIN_API_URL=%s/login\nLOCATIONS_API_URL=%s/locations\n",
		baseURL, dataPath, filepath.Join(dir, "label.btw"), baseURL, baseURL)
	path := filepath.Join(dir, "config.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, dataPath
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestConfigCommand_PrintsLoadedConfig(t *testing.T) {
	cfgPath, dataPath := writeConfig(t)

	out, _, err := execute(t, "", "config", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "DATA_FILE_PATH="+dataPath) {
		t.Errorf("output missing data path:\n%s", out)
	}
}

func TestPrintCommand_NoLaunchFromStdin(t *testing.T) {
	cfgPath, dataPath := writeConfig(t)
	items := `[{"code":"A1","name":"Widget","price":"9.99","qty":2,"barcode":"123"}]`

	out, _, err := execute(t, items, "print", "--config", cfgPath, "--no-launch")
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(out, "Wrote 2 labels") {
		t.Errorf("unexpected output: %s", out)
	}

	data, err := os.ReadFile(dataPath)
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}
	if string(data) != "A1,Widget,9.99,123\nA1,Widget,9.99,123\n" {
		t.Errorf("data file: %q", data)
	}
}

func TestPrintCommand_ItemsFile(t *testing.T) {
	cfgPath, dataPath := writeConfig(t)
	itemsPath := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(itemsPath, []byte(`[{"code":"B","name":"Book","price":"1.00","quantity":1,"barcode":"9"}]`), 0644); err != nil {
		t.Fatalf("write items: %v", err)
	}

	if _, _, err := execute(t, "", "print", "--config", cfgPath, "--no-launch", "--items", itemsPath); err != nil {
		t.Fatalf("print: %v", err)
	}
	data, _ := os.ReadFile(dataPath)
	if string(data) != "B,Book,1.00,9\n" {
		t.Errorf("data file: %q", data)
	}
}

func TestPrintCommand_InvalidQuantityReportsKind(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	_, stderr, err := execute(t, `[{"code":"A","qty":-3}]`, "print", "--config", cfgPath, "--no-launch")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(stderr, "InvalidQuantity:") {
		t.Errorf("stderr: %q", stderr)
	}
}

func TestPrintCommand_EmptyItems(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	if _, _, err := execute(t, `[]`, "print", "--config", cfgPath, "--no-launch"); err == nil {
		t.Fatal("expected error for empty item list")
	}
}

func TestLoginCommand_RequiresCredentials(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	t.Setenv("LABELBRIDGE_PASSWORD", "")

	_, stderr, err := execute(t, "", "login", "--config", cfgPath, "--name", "cashier")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(stderr, "invalid login request") {
		t.Errorf("stderr: %q", stderr)
	}
}

func TestHelp_DoesNotPrintSecretsFromEnvironment(t *testing.T) {
	t.Setenv("LABELBRIDGE_PASSWORD", "s3cr3t-pass")
	t.Setenv("LABELBRIDGE_TOKEN", "tok-abc123")

	for _, args := range [][]string{{"login", "--help"}, {"search", "--help"}} {
		out, _, err := execute(t, "", args...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if strings.Contains(out, "s3cr3t-pass") || strings.Contains(out, "tok-abc123") {
			t.Errorf("%v leaked a secret:\n%s", args, out)
		}
	}
}

func TestSecretsFallBackToEnvironment(t *testing.T) {
	t.Setenv("LABELBRIDGE_PASSWORD", "s3cr3t-pass")
	t.Setenv("LABELBRIDGE_TOKEN", "tok-abc123")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			if got := r.Header.Get("Authorization"); got != "Bearer tok-abc123" {
				t.Errorf("authorization: got %q", got)
			}
			w.Write([]byte(`[]`)) //nolint:errcheck
		case "/login":
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["password"] != "s3cr3t-pass" {
				t.Errorf("login body: %v %v", body, err)
			}
			w.Write([]byte(`{"token":"t"}`)) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	cfgPath, _ := writeConfigFor(t, ts.URL)

	if _, stderr, err := execute(t, "", "search", "pen", "--config", cfgPath); err != nil {
		t.Fatalf("search: %v (%s)", err, stderr)
	}
	if _, stderr, err := execute(t, "", "login", "--config", cfgPath, "--name", "cashier"); err != nil {
		t.Fatalf("login: %v (%s)", err, stderr)
	}
}
