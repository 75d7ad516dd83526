// Package normalize rescales voxel intensities. Two stateless transformers
// are provided: percentile clipping with data-derived bounds, and fixed
// center/width windowing as used for CT display. Configuration is validated
// at construction and never mutated by Normalize calls.
package normalize

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"medimg"
	"medimg/volume"
)

// Option adjusts the output range of a normalizer. The default range is
// [0, 1].
type Option func(*outRange)

type outRange struct {
	min, max float64
}

// WithRange sets the target output range.
func WithRange(min, max float64) Option {
	return func(r *outRange) {
		r.min, r.max = min, max
	}
}

func newRange(opts []Option) (outRange, error) {
	r := outRange{min: 0, max: 1}
	for _, o := range opts {
		o(&r)
	}
	if r.max <= r.min {
		return r, fmt.Errorf("%w: output range [%g, %g]", medimg.ErrConfiguration, r.min, r.max)
	}
	return r, nil
}

// Percentile clips input to its own [lower, upper] percentile values, then
// linearly rescales that span to the output range. When the two percentile
// values coincide (a flat region), every voxel maps to the output minimum.
type Percentile struct {
	lower, upper float64
	out          outRange
}

// NewPercentile validates 0 <= lower < upper <= 100 and returns the
// transformer.
func NewPercentile(lower, upper float64, opts ...Option) (*Percentile, error) {
	if lower < 0 || upper > 100 || lower >= upper {
		return nil, fmt.Errorf("%w: percentiles (%g, %g) must satisfy 0 <= lower < upper <= 100", medimg.ErrConfiguration, lower, upper)
	}
	out, err := newRange(opts)
	if err != nil {
		return nil, err
	}
	return &Percentile{lower: lower, upper: upper, out: out}, nil
}

// Normalize returns a new volume of the same shape. Spatial metadata is
// carried through unchanged.
func (p *Percentile) Normalize(v *volume.Volume) *volume.Volume {
	low := percentileValue(v.Data, p.lower)
	high := percentileValue(v.Data, p.upper)
	out := v.Clone()
	rescale(out.Data, low, high, p.out)
	return out
}

// percentileValue computes the percentile of data, falling back to the
// extremes where the interpolated estimate is undefined (0, 100, or very
// small inputs).
func percentileValue(data []float64, percent float64) float64 {
	d := stats.Float64Data(data)
	if percent <= 0 {
		v, _ := stats.Min(d)
		return v
	}
	if percent >= 100 {
		v, _ := stats.Max(d)
		return v
	}
	v, err := stats.Percentile(d, percent)
	if err != nil {
		v, _ = stats.Min(d)
	}
	return v
}

// Window clips input to [center-width/2, center+width/2] and rescales that
// span to the output range.
type Window struct {
	center, width float64
	out           outRange
}

// NewWindow validates width > 0 and returns the transformer.
func NewWindow(center, width float64, opts ...Option) (*Window, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: window width %g must be > 0", medimg.ErrConfiguration, width)
	}
	out, err := newRange(opts)
	if err != nil {
		return nil, err
	}
	return &Window{center: center, width: width, out: out}, nil
}

// Bounds returns the window's low and high clipping values.
func (w *Window) Bounds() (low, high float64) {
	return w.center - w.width/2, w.center + w.width/2
}

// Normalize returns a new volume of the same shape.
func (w *Window) Normalize(v *volume.Volume) *volume.Volume {
	low, high := w.Bounds()
	out := v.Clone()
	rescale(out.Data, low, high, w.out)
	return out
}

// Gray16 maps a single intensity into the full uint16 display range. See
// 'Grayscale Image Display' under
// https://dgobbi.github.io/vtk-dicom/doc/api/image_display.html
func (w *Window) Gray16(value float64) uint16 {
	low, high := w.Bounds()
	if value <= low {
		return 0
	}
	if value >= high {
		return math.MaxUint16
	}
	return uint16((value - low) / (high - low) * float64(math.MaxUint16))
}

// rescale clips data to [low, high] in place and maps that span linearly to
// the output range. low == high (possible after floating-point rounding)
// maps everything to the range minimum rather than dividing by zero.
func rescale(data []float64, low, high float64, out outRange) {
	if high <= low {
		for i := range data {
			data[i] = out.min
		}
		return
	}
	span := out.max - out.min
	for i, d := range data {
		switch {
		case d <= low:
			data[i] = out.min
		case d >= high:
			data[i] = out.max
		default:
			data[i] = out.min + (d-low)/(high-low)*span
		}
	}
}
