// Package imgio dispatches reads and writes on file extension: NIfTI and
// TIFF volumes through their codecs, plus the ordinary raster formats the
// registered decoders understand.
package imgio

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/carbocation/pfx"
	_ "golang.org/x/image/bmp"

	"medimg"
	"medimg/niftiio"
	"medimg/pathutil"
	"medimg/tiffio"
	"medimg/volume"
)

// ReadImage decodes the file at path into a volume, choosing the codec from
// the extension. Raster formats (png, jpeg, gif, bmp) decode to a 2-D volume
// of 16-bit gray values.
func ReadImage(path string) (*volume.Volume, error) {
	switch pathutil.New(path).Ext() {
	case ".nii", ".nii.gz":
		return niftiio.ReadImage(path)
	case ".tif", ".tiff":
		return tiffio.ReadTIFF(path)
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp":
		return readRaster(path)
	default:
		return nil, fmt.Errorf("%w: no codec for %s", medimg.ErrFileFormat, path)
	}
}

// imageFromBytes decodes an image based on the decoders we have imported.
func imageFromBytes(imgBytes []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	return img, err
}

func readRaster(path string) (*volume.Volume, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", medimg.ErrNotFound, path)
		}
		return nil, pfx.Err(err)
	}
	img, err := imageFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", medimg.ErrFileFormat, path, err)
	}
	return tiffio.FromImage(img)
}

// WriteOption adjusts WriteImage.
type WriteOption func(*writeConfig)

type writeConfig struct {
	referencePath string
}

// WithReference propagates spatial metadata from the image at refPath. Only
// meaningful for formats that carry a spatial reference (NIfTI).
func WithReference(refPath string) WriteOption {
	return func(c *writeConfig) {
		c.referencePath = refPath
	}
}

// WriteImage encodes v at path, choosing the codec from the extension.
func WriteImage(v *volume.Volume, path string, opts ...WriteOption) error {
	var cfg writeConfig
	for _, o := range opts {
		o(&cfg)
	}

	switch pathutil.New(path).Ext() {
	case ".nii", ".nii.gz":
		if cfg.referencePath != "" {
			return niftiio.WriteImage(v, path, niftiio.WithReference(cfg.referencePath))
		}
		return niftiio.WriteImage(v, path)
	case ".tif", ".tiff":
		if cfg.referencePath != "" {
			return fmt.Errorf("%w: %s cannot carry reference spatial metadata", medimg.ErrFileFormat, path)
		}
		return tiffio.WriteTIFF(v, path)
	case ".png":
		if cfg.referencePath != "" {
			return fmt.Errorf("%w: %s cannot carry reference spatial metadata", medimg.ErrFileFormat, path)
		}
		return writePNG(v, path)
	default:
		return fmt.Errorf("%w: no codec for %s", medimg.ErrFileFormat, path)
	}
}

func writePNG(v *volume.Volume, path string) error {
	img, err := tiffio.ToGray16(v)
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
	if err := png.Encode(f, img); err != nil {
		return pfx.Err(err)
	}
	return pfx.Err(f.Close())
}
