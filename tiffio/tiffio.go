// Package tiffio reads and writes 2-D volumes as TIFF files. TIFF carries no
// physical-coordinate model, so unlike the NIfTI path there is no spatial
// metadata to propagate.
package tiffio

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/carbocation/pfx"
	"golang.org/x/image/tiff"

	"medimg"
	"medimg/pathutil"
	"medimg/volume"
)

func isTIFF(path string) bool {
	ext := pathutil.New(path).Ext()
	return ext == ".tif" || ext == ".tiff"
}

// ReadTIFF decodes the TIFF at path into a 2-D volume of raw gray values.
func ReadTIFF(path string) (*volume.Volume, error) {
	if !isTIFF(path) {
		return nil, fmt.Errorf("%w: %s is not a .tif or .tiff file", medimg.ErrFileFormat, path)
	}

	// The image decoder can swallow i/o errors, so read the full file into
	// memory and decode from bytes.
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", medimg.ErrNotFound, path)
		}
		return nil, pfx.Err(err)
	}

	img, err := tiff.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", medimg.ErrFileFormat, path, err)
	}

	return FromImage(img)
}

// WriteTIFF encodes a 2-D volume at path as a 16-bit grayscale TIFF. Voxel
// values are rounded and clamped to [0, 65535].
func WriteTIFF(v *volume.Volume, path string) error {
	if !isTIFF(path) {
		return fmt.Errorf("%w: %s is not a .tif or .tiff file", medimg.ErrFileFormat, path)
	}
	img, err := ToGray16(v)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: parent of %s", medimg.ErrNotFound, path)
		}
		return pfx.Err(err)
	}
	defer f.Close()

	if err := tiff.Encode(f, img, nil); err != nil {
		return pfx.Err(err)
	}
	return pfx.Err(f.Close())
}

// FromImage converts a decoded image into a 2-D volume. Grayscale sources
// keep their raw sample values; anything else is reduced to 16-bit luma.
func FromImage(img image.Image) (*volume.Volume, error) {
	b := img.Bounds()
	v, err := volume.New(b.Dx(), b.Dy())
	if err != nil {
		return nil, pfx.Err(err)
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			var val float64
			switch im := img.(type) {
			case *image.Gray:
				val = float64(im.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			case *image.Gray16:
				val = float64(im.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			default:
				val = float64(color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y)
			}
			v.Set(val, x, y)
		}
	}
	return v, nil
}

// ToGray16 renders a 2-D volume as a 16-bit grayscale image.
func ToGray16(v *volume.Volume) (*image.Gray16, error) {
	if v.NDim() != 2 {
		return nil, fmt.Errorf("%w: need a 2-D array, got %d-D", medimg.ErrUnsupportedDimensionality, v.NDim())
	}
	nx, ny := v.Dim(0), v.Dim(1)
	img := image.NewGray16(image.Rect(0, 0, nx, ny))
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			val := math.Round(v.At(x, y))
			if val < 0 {
				val = 0
			}
			if val > math.MaxUint16 {
				val = math.MaxUint16
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(val)})
		}
	}
	return img, nil
}
