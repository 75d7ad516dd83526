package normalize

import (
	"errors"
	"math"
	"testing"

	"medimg"
	"medimg/volume"
)

func vol(t *testing.T, data ...float64) *volume.Volume {
	t.Helper()
	v, err := volume.FromData(data, len(data))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestPercentileValidation(t *testing.T) {
	for _, v := range []struct {
		lower, upper float64
	}{
		{-1, 50},
		{0, 101},
		{60, 40},
		{50, 50},
	} {
		if _, err := NewPercentile(v.lower, v.upper); !errors.Is(err, medimg.ErrConfiguration) {
			t.Errorf("NewPercentile(%g, %g): expected configuration error, got %v", v.lower, v.upper, err)
		}
	}
	if _, err := NewPercentile(0, 100); err != nil {
		t.Errorf("NewPercentile(0, 100): %v", err)
	}
}

func TestPercentileBoundsAndMonotonicity(t *testing.T) {
	in := vol(t, 12, -3, 7, 7, 100, 0.5, 42, -8, 19, 3)
	n, err := NewPercentile(10, 90)
	if err != nil {
		t.Fatal(err)
	}
	out := n.Normalize(in)

	if len(out.Data) != len(in.Data) {
		t.Fatalf("shape changed: %d -> %d", len(in.Data), len(out.Data))
	}
	for i, d := range out.Data {
		if d < 0 || d > 1 {
			t.Errorf("output[%d] = %g outside [0, 1]", i, d)
		}
	}
	for i := range in.Data {
		for j := range in.Data {
			if in.Data[i] <= in.Data[j] && out.Data[i] > out.Data[j]+1e-12 {
				t.Errorf("monotonicity violated at (%d, %d)", i, j)
			}
		}
	}
}

func TestPercentileFullRangeIsRescaleOnly(t *testing.T) {
	in := vol(t, 0, 2, 4, 8)
	n, err := NewPercentile(0, 100)
	if err != nil {
		t.Fatal(err)
	}
	out := n.Normalize(in)
	// Full-range normalization is the plain min-max rescale.
	want := []float64{0, 0.25, 0.5, 1}
	for i := range want {
		if math.Abs(out.Data[i]-want[i]) > 1e-12 {
			t.Errorf("output[%d] = %g, want %g", i, out.Data[i], want[i])
		}
	}
	// Applying it again is the identity: the data already spans [0, 1].
	again := n.Normalize(out)
	for i := range out.Data {
		if math.Abs(again.Data[i]-out.Data[i]) > 1e-12 {
			t.Errorf("second pass changed output[%d]: %g -> %g", i, out.Data[i], again.Data[i])
		}
	}
}

func TestPercentileFlatRegion(t *testing.T) {
	in := vol(t, 5, 5, 5, 5)
	n, err := NewPercentile(5, 95)
	if err != nil {
		t.Fatal(err)
	}
	out := n.Normalize(in)
	for i, d := range out.Data {
		if d != 0 {
			t.Errorf("flat input: output[%d] = %g, want 0", i, d)
		}
	}
}

func TestPercentileCustomRange(t *testing.T) {
	in := vol(t, 0, 10)
	n, err := NewPercentile(0, 100, WithRange(0, 255))
	if err != nil {
		t.Fatal(err)
	}
	out := n.Normalize(in)
	if out.Data[0] != 0 || out.Data[1] != 255 {
		t.Errorf("custom range output = %v", out.Data)
	}
}

func TestWindowValidation(t *testing.T) {
	for _, width := range []float64{0, -40} {
		if _, err := NewWindow(50, width); !errors.Is(err, medimg.ErrConfiguration) {
			t.Errorf("NewWindow(50, %g): expected configuration error, got %v", width, err)
		}
	}
}

func TestWindowEdgeMapping(t *testing.T) {
	// Window [0, 80]: below maps to min, above to max, center to midpoint.
	w, err := NewWindow(40, 80)
	if err != nil {
		t.Fatal(err)
	}
	in := vol(t, -100, 0, 40, 80, 500)
	out := w.Normalize(in)
	want := []float64{0, 0, 0.5, 1, 1}
	for i := range want {
		if math.Abs(out.Data[i]-want[i]) > 1e-12 {
			t.Errorf("output[%d] = %g, want %g", i, out.Data[i], want[i])
		}
	}
}

func TestWindowPreservesSpatial(t *testing.T) {
	in, _ := volume.New(2, 2, 2)
	in.Spatial.Spacing = [3]float64{0.7, 0.7, 3}
	w, _ := NewWindow(0.5, 1)
	out := w.Normalize(in)
	if out.Spatial != in.Spatial {
		t.Error("spatial metadata dropped by normalization")
	}
}

func TestWindowGray16(t *testing.T) {
	w, _ := NewWindow(1000, 400)
	if got := w.Gray16(600); got != 0 {
		t.Errorf("below window: %d", got)
	}
	if got := w.Gray16(1500); got != math.MaxUint16 {
		t.Errorf("above window: %d", got)
	}
	if got := w.Gray16(1000); got != math.MaxUint16/2 {
		t.Errorf("center: %d, want %d", got, math.MaxUint16/2)
	}
}
