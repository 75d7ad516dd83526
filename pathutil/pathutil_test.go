package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtAndStem(t *testing.T) {
	for _, v := range []struct {
		in   string
		ext  string
		stem string
	}{
		{"/data/brain.nii.gz", ".nii.gz", "brain"},
		{"/data/brain.nii", ".nii", "brain"},
		{"/data/slice.tiff", ".tiff", "slice"},
		{"/data/UPPER.NII.GZ", ".nii.gz", "UPPER"},
		{"/data/noext", "", "noext"},
		{"relative/series.dcm", ".dcm", "series"},
	} {
		p := New(v.in)
		if got := p.Ext(); got != v.ext {
			t.Errorf("Ext(%q) = %q, want %q", v.in, got, v.ext)
		}
		if got := p.Stem(); got != v.stem {
			t.Errorf("Stem(%q) = %q, want %q", v.in, got, v.stem)
		}
	}
}

func TestParentAndJoin(t *testing.T) {
	p := New("/data/sub/brain.nii.gz")
	if got := p.Parent().String(); got != filepath.Clean("/data/sub") {
		t.Errorf("Parent = %q", got)
	}
	if got := New("/data").Join("sub", "brain.nii").String(); got != filepath.Clean("/data/sub/brain.nii") {
		t.Errorf("Join = %q", got)
	}
}

func TestWithSuffix(t *testing.T) {
	p := New("/data/brain.nii.gz")
	if got := p.WithSuffix(".nii").String(); got != filepath.Clean("/data/brain.nii") {
		t.Errorf("WithSuffix = %q", got)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "x.nii")
	if New(f).Exists() {
		t.Error("Exists reported true for a missing file")
	}
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !New(f).Exists() {
		t.Error("Exists reported false for an existing file")
	}
}
