package runner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medimg"
)

func TestRunCapturesOutput(t *testing.T) {
	r := New("echo")
	res, err := r.Run("hello", "world")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Error("echo reported failure")
	}
	if strings.TrimSpace(res.Output) != "hello world" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestRunNonzeroExit(t *testing.T) {
	r := New("sh")
	res, err := r.Run("-c", "echo oops >&2; exit 3")
	if err != nil {
		t.Fatalf("nonzero exit should not be an error: %v", err)
	}
	if res.Success {
		t.Error("exit 3 reported success")
	}
	if !strings.Contains(res.Output, "oops") {
		t.Errorf("stderr not captured: %q", res.Output)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := New("definitely-not-a-binary-xyz")
	if _, err := r.Run(); !errors.Is(err, medimg.ErrMissingBinary) {
		t.Errorf("expected missing-binary error, got %v", err)
	}
}

func TestRunAppendsLog(t *testing.T) {
	log := filepath.Join(t.TempDir(), "run.log")
	r := &Runner{Path: "echo", LogPath: log}
	if _, err := r.Run("first"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run("second"); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(log)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "first") || !strings.Contains(string(raw), "second") {
		t.Errorf("log = %q", raw)
	}
}
