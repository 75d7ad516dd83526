package niftiio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"medimg"
	"medimg/volume"
)

func TestRoundTrip(t *testing.T) {
	v, err := volume.New(4, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range v.Data {
		v.Data[i] = float64(i) - 7.5
	}
	v.Spatial.Origin = [3]float64{10, -20, 5}
	v.Spatial.Spacing = [3]float64{0.5, 0.5, 3}

	for _, name := range []string{"vol.nii", "vol.nii.gz"} {
		path := filepath.Join(t.TempDir(), name)
		if err := WriteImage(v, path); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}
		got, err := ReadImage(path)
		if err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		if got.NDim() != 3 || got.Dim(0) != 4 || got.Dim(1) != 3 || got.Dim(2) != 2 {
			t.Fatalf("%s: shape = %v", name, got.Shape)
		}
		for i := range v.Data {
			if math.Abs(got.Data[i]-v.Data[i]) > 1e-5 {
				t.Errorf("%s: voxel %d = %g, want %g", name, i, got.Data[i], v.Data[i])
			}
		}
		for i := 0; i < 3; i++ {
			if math.Abs(got.Spatial.Origin[i]-v.Spatial.Origin[i]) > 1e-4 ||
				math.Abs(got.Spatial.Spacing[i]-v.Spatial.Spacing[i]) > 1e-4 {
				t.Errorf("%s: spatial metadata lost: %+v", name, got.Spatial)
			}
		}
	}
}

func TestReadImageErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadImage(filepath.Join(dir, "missing.nii")); !errors.Is(err, medimg.ErrNotFound) {
		t.Errorf("missing file: expected not-found, got %v", err)
	}
	if _, err := ReadImage(filepath.Join(dir, "image.xyz")); !errors.Is(err, medimg.ErrFileFormat) {
		t.Errorf("unknown extension: expected file-format, got %v", err)
	}

	junk := filepath.Join(dir, "junk.nii")
	if err := os.WriteFile(junk, make([]byte, 500), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadImage(junk); !errors.Is(err, medimg.ErrFileFormat) {
		t.Errorf("corrupt content: expected file-format, got %v", err)
	}
}

func TestWriteWithReference(t *testing.T) {
	dir := t.TempDir()

	ref, _ := volume.New(2, 2, 2)
	ref.Spatial.Origin = [3]float64{-1, -2, -3}
	ref.Spatial.Spacing = [3]float64{2, 2, 4}
	refPath := filepath.Join(dir, "ref.nii")
	if err := WriteImage(ref, refPath); err != nil {
		t.Fatal(err)
	}

	v, _ := volume.New(5, 5, 5)
	outPath := filepath.Join(dir, "out.nii")
	if err := WriteImage(v, outPath, WithReference(refPath)); err != nil {
		t.Fatal(err)
	}
	got, err := ReadImage(outPath)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if math.Abs(got.Spatial.Origin[i]-ref.Spatial.Origin[i]) > 1e-4 ||
			math.Abs(got.Spatial.Spacing[i]-ref.Spatial.Spacing[i]) > 1e-4 {
			t.Fatalf("reference metadata not propagated: %+v", got.Spatial)
		}
	}

	// The caller's volume must not be mutated by reference propagation.
	if v.Spatial.Origin != [3]float64{0, 0, 0} {
		t.Error("input volume mutated")
	}
}

func TestWriteWithReferenceMismatch(t *testing.T) {
	dir := t.TempDir()

	ref, _ := volume.New(2, 2, 2)
	refPath := filepath.Join(dir, "ref.nii")
	if err := WriteImage(ref, refPath); err != nil {
		t.Fatal(err)
	}

	flat, _ := volume.New(8, 8)
	outPath := filepath.Join(dir, "out.nii")
	err := WriteImage(flat, outPath, WithReference(refPath))
	if !errors.Is(err, medimg.ErrMismatch) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Error("file was written despite metadata mismatch")
	}
}
