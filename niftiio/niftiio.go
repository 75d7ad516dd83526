// Package niftiio reads and writes NIfTI volumes. Reading decodes voxels
// through the nifti library and takes the spatial reference from the raw
// header; writing goes through the nifti1 encoder. An optional reference
// image supplies the spatial metadata of a written volume.
package niftiio

import (
	"fmt"
	"os"

	"github.com/carbocation/pfx"

	"medimg"
	"medimg/nifti1"
	"medimg/pathutil"
	"medimg/volume"
)

func isNIfTI(path string) bool {
	ext := pathutil.New(path).Ext()
	return ext == ".nii" || ext == ".nii.gz"
}

// ReadImage decodes the NIfTI file at path into a volume whose axis order
// matches the on-disk order (x fastest).
func ReadImage(path string) (*volume.Volume, error) {
	if !isNIfTI(path) {
		return nil, fmt.Errorf("%w: %s is not a .nii or .nii.gz file", medimg.ErrFileFormat, path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", medimg.ErrNotFound, path)
	}

	hdr, _, err := nifti1.ReadHeader(path)
	if err != nil {
		return nil, err
	}

	img, err := safelyLoadImage(path, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", medimg.ErrFileFormat, path, err)
	}

	shape := hdr.Dims()
	vol, err := volume.New(shape...)
	if err != nil {
		return nil, pfx.Err(err)
	}

	nx, ny, nz, nt := vol.Dim(0), vol.Dim(1), vol.Dim(2), vol.Dim(3)
	i := 0
	for t := 0; t < nt; t++ {
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					vol.Data[i] = float64(img.GetAt(x, y, z, t))
					i++
				}
			}
		}
	}

	vol.Spatial = hdr.Spatial()
	return vol, nil
}

// WriteOption adjusts WriteImage.
type WriteOption func(*writeConfig)

type writeConfig struct {
	referencePath string
}

// WithReference copies origin, spacing and direction from the NIfTI file at
// refPath onto the written image. The reference must have the same
// dimensionality as the array being written; on mismatch nothing is written.
func WithReference(refPath string) WriteOption {
	return func(c *writeConfig) {
		c.referencePath = refPath
	}
}

// WriteImage encodes v at path (.nii or .nii.gz). Parent directories are not
// created implicitly.
func WriteImage(v *volume.Volume, path string, opts ...WriteOption) error {
	if !isNIfTI(path) {
		return fmt.Errorf("%w: %s is not a .nii or .nii.gz file", medimg.ErrFileFormat, path)
	}

	var cfg writeConfig
	for _, o := range opts {
		o(&cfg)
	}

	out := v
	if cfg.referencePath != "" {
		hdr, _, err := nifti1.ReadHeader(cfg.referencePath)
		if err != nil {
			return err
		}
		if refDims := len(hdr.Dims()); refDims != v.NDim() {
			return fmt.Errorf("%w: array is %d-D, reference %s is %d-D", medimg.ErrMismatch, v.NDim(), cfg.referencePath, refDims)
		}
		out = v.Clone()
		out.Spatial = hdr.Spatial()
	}

	return nifti1.WriteVolume(path, out)
}
