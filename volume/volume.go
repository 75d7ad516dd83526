// Package volume holds the in-memory representation shared by every codec in
// this module: a dense float64 array with up to four axes, paired with the
// physical-space metadata (origin, spacing, direction) that NIfTI and DICOM
// carry.
package volume

import (
	"fmt"

	"medimg"
)

// Spatial is the physical reference of a volume: the world position of voxel
// (0,0,0), the per-axis voxel size in millimeters, and a row-major 3x3
// orientation matrix whose columns are the world directions of the i, j and
// k axes.
type Spatial struct {
	Origin    [3]float64
	Spacing   [3]float64
	Direction [9]float64
}

// IdentitySpatial returns zero origin, unit spacing and identity direction.
func IdentitySpatial() Spatial {
	return Spatial{
		Spacing:   [3]float64{1, 1, 1},
		Direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
}

// Volume is a dense array of voxel intensities. Data is ordered x-fastest:
// the linear index of (x, y, z, t) is x + nx*(y + ny*(z + nz*t)). Shape has
// between one and four axes.
type Volume struct {
	Data    []float64
	Shape   []int
	Spatial Spatial
}

// New allocates a zeroed volume with the given shape.
func New(shape ...int) (*Volume, error) {
	n, err := checkShape(shape)
	if err != nil {
		return nil, err
	}
	return &Volume{
		Data:    make([]float64, n),
		Shape:   append([]int{}, shape...),
		Spatial: IdentitySpatial(),
	}, nil
}

// FromData wraps an existing slice. The data length must match the shape.
func FromData(data []float64, shape ...int) (*Volume, error) {
	n, err := checkShape(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d values for shape %v (%d voxels)", medimg.ErrConfiguration, len(data), shape, n)
	}
	return &Volume{
		Data:    data,
		Shape:   append([]int{}, shape...),
		Spatial: IdentitySpatial(),
	}, nil
}

func checkShape(shape []int) (int, error) {
	if len(shape) < 1 || len(shape) > 4 {
		return 0, fmt.Errorf("%w: shape must have 1-4 axes, got %v", medimg.ErrConfiguration, shape)
	}
	n := 1
	for _, d := range shape {
		if d < 1 {
			return 0, fmt.Errorf("%w: nonpositive axis in shape %v", medimg.ErrConfiguration, shape)
		}
		n *= d
	}
	return n, nil
}

// NDim returns the number of axes.
func (v *Volume) NDim() int { return len(v.Shape) }

// NumVoxels returns the total voxel count.
func (v *Volume) NumVoxels() int { return len(v.Data) }

// Dim returns the extent of axis i, or 1 when the volume has fewer axes.
func (v *Volume) Dim(i int) int {
	if i >= len(v.Shape) {
		return 1
	}
	return v.Shape[i]
}

func (v *Volume) index(idx []int) int {
	pos := 0
	stride := 1
	for i := 0; i < len(v.Shape); i++ {
		d := 0
		if i < len(idx) {
			d = idx[i]
		}
		if d < 0 || d >= v.Shape[i] {
			panic(fmt.Sprintf("volume: index %v out of range for shape %v", idx, v.Shape))
		}
		pos += d * stride
		stride *= v.Shape[i]
	}
	return pos
}

// At returns the voxel at idx. Missing trailing indices default to zero;
// out-of-range indices panic.
func (v *Volume) At(idx ...int) float64 {
	return v.Data[v.index(idx)]
}

// Set stores val at idx.
func (v *Volume) Set(val float64, idx ...int) {
	v.Data[v.index(idx)] = val
}

// At4 addresses the volume as if it always had four axes, ignoring indices
// beyond its true dimensionality when their value is zero.
func (v *Volume) At4(x, y, z, t int) float64 {
	idx := []int{x, y, z, t}
	for _, d := range idx[len(v.Shape):] {
		if d != 0 {
			panic(fmt.Sprintf("volume: index (%d,%d,%d,%d) out of range for shape %v", x, y, z, t, v.Shape))
		}
	}
	return v.Data[v.index(idx[:len(v.Shape)])]
}

// MinMax returns the smallest and largest voxel values.
func (v *Volume) MinMax() (min, max float64) {
	min, max = v.Data[0], v.Data[0]
	for _, d := range v.Data {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	out := &Volume{
		Data:    append([]float64{}, v.Data...),
		Shape:   append([]int{}, v.Shape...),
		Spatial: v.Spatial,
	}
	return out
}

// SliceZ extracts plane z of a volume with at least three axes as a 2-D
// volume. The slice inherits in-plane spacing.
func (v *Volume) SliceZ(z int) (*Volume, error) {
	if v.NDim() < 3 {
		return nil, fmt.Errorf("%w: SliceZ needs a 3-D volume, got %d-D", medimg.ErrUnsupportedDimensionality, v.NDim())
	}
	if z < 0 || z >= v.Shape[2] {
		return nil, fmt.Errorf("%w: slice %d of %d", medimg.ErrConfiguration, z, v.Shape[2])
	}
	nx, ny := v.Shape[0], v.Shape[1]
	out, err := New(nx, ny)
	if err != nil {
		return nil, err
	}
	copy(out.Data, v.Data[z*nx*ny:(z+1)*nx*ny])
	out.Spatial.Spacing = [3]float64{v.Spatial.Spacing[0], v.Spatial.Spacing[1], 1}
	return out, nil
}

// CopySpatialFrom copies origin, spacing and direction from ref. The two
// volumes must have the same dimensionality; on mismatch nothing is copied.
func (v *Volume) CopySpatialFrom(ref *Volume) error {
	if v.NDim() != ref.NDim() {
		return fmt.Errorf("%w: target is %d-D, reference is %d-D", medimg.ErrMismatch, v.NDim(), ref.NDim())
	}
	v.Spatial = ref.Spatial
	return nil
}
