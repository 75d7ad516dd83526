package tiffio

import (
	"errors"
	"path/filepath"
	"testing"

	"medimg"
	"medimg/volume"
)

func TestRoundTrip(t *testing.T) {
	v, err := volume.New(5, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range v.Data {
		v.Data[i] = float64(i * 1000)
	}

	path := filepath.Join(t.TempDir(), "slice.tiff")
	if err := WriteTIFF(v, path); err != nil {
		t.Fatal(err)
	}
	got, err := ReadTIFF(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.NDim() != 2 || got.Dim(0) != 5 || got.Dim(1) != 3 {
		t.Fatalf("shape = %v", got.Shape)
	}
	for i := range v.Data {
		if got.Data[i] != v.Data[i] {
			t.Errorf("voxel %d = %g, want %g", i, got.Data[i], v.Data[i])
		}
	}
}

func TestWriteClamps(t *testing.T) {
	v, _ := volume.FromData([]float64{-50, 70000}, 2, 1)
	path := filepath.Join(t.TempDir(), "clamp.tif")
	if err := WriteTIFF(v, path); err != nil {
		t.Fatal(err)
	}
	got, err := ReadTIFF(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Data[0] != 0 || got.Data[1] != 65535 {
		t.Errorf("clamped values = %v", got.Data)
	}
}

func TestWriteRejectsNon2D(t *testing.T) {
	v, _ := volume.New(2, 2, 2)
	err := WriteTIFF(v, filepath.Join(t.TempDir(), "vol.tif"))
	if !errors.Is(err, medimg.ErrUnsupportedDimensionality) {
		t.Errorf("expected dimensionality error, got %v", err)
	}
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadTIFF(filepath.Join(dir, "missing.tif")); !errors.Is(err, medimg.ErrNotFound) {
		t.Errorf("missing file: expected not-found, got %v", err)
	}
	if _, err := ReadTIFF(filepath.Join(dir, "wrong.png")); !errors.Is(err, medimg.ErrFileFormat) {
		t.Errorf("wrong extension: expected file-format, got %v", err)
	}
}
