// nifti2png renders each z slice (and time point) of a NIfTI volume as a
// 16-bit grayscale PNG, with one metadata line per image on stdout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"medimg/niftiio"
	"medimg/normalize"
	"medimg/pathutil"
	"medimg/volume"
)

type normalizer interface {
	Normalize(*volume.Volume) *volume.Volume
}

func main() {
	var filename, output, mode string
	var lower, upper, center, width, scale float64

	flag.StringVar(&filename, "file", "", "Name of .nii or .nii.gz file to convert to PNGs.")
	flag.StringVar(&output, "out", "", "Name of folder where the pngs will be emitted. Filenames will be {orig_filename}.z{z depth}_t{time}.png.")
	flag.StringVar(&mode, "mode", "percentile", "Intensity normalization: percentile or window.")
	flag.Float64Var(&lower, "lower", 0, "Lower percentile for -mode percentile.")
	flag.Float64Var(&upper, "upper", 100, "Upper percentile for -mode percentile.")
	flag.Float64Var(&center, "center", 0, "Window center for -mode window.")
	flag.Float64Var(&width, "width", 0, "Window width for -mode window.")
	flag.Float64Var(&scale, "scale", 1, "Resize factor applied to each output image.")
	flag.Parse()

	if filename == "" || output == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	prefix := pathutil.New(filename).Stem()

	if stat, err := os.Stat(output); err == nil && stat.IsDir() {
		// path is a directory already
	} else if err := os.MkdirAll(output, os.ModePerm); err != nil {
		log.Fatalln(err)
	}

	vol, err := niftiio.ReadImage(filename)
	if err != nil {
		log.Fatalln(err)
	}

	norm, err := buildNormalizer(mode, lower, upper, center, width)
	if err != nil {
		log.Fatalln(err)
	}

	if err := nifti2png(vol, norm, prefix, output, scale); err != nil {
		log.Fatalln(err)
	}
}

func buildNormalizer(mode string, lower, upper, center, width float64) (normalizer, error) {
	switch mode {
	case "percentile":
		return normalize.NewPercentile(lower, upper, normalize.WithRange(0, math.MaxUint16))
	case "window":
		return normalize.NewWindow(center, width, normalize.WithRange(0, math.MaxUint16))
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

func nifti2png(vol *volume.Volume, norm normalizer, prefix, output string, scale float64) error {
	scaled := norm.Normalize(vol)

	xm, ym := scaled.Dim(0), scaled.Dim(1)
	zm, tm := scaled.Dim(2), scaled.Dim(3)

	// March forward in time, then down the stack.
	for t := 0; t < tm; t++ {
		for z := 0; z < zm; z++ {
			img := image.NewGray16(image.Rect(0, 0, xm, ym))
			for y := 0; y < ym; y++ {
				for x := 0; x < xm; x++ {
					img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(scaled.At4(x, y, z, t)))})
				}
			}

			var out image.Image = img
			if scale != 1 {
				out = imaging.Resize(img, int(float64(xm)*scale), 0, imaging.NearestNeighbor)
			}

			f, err := os.Create(filepath.Join(output, fmt.Sprintf("%s.z%06d_t%06d.png", prefix, z, t)))
			if err != nil {
				return err
			}
			fw := bufio.NewWriter(f)

			if err := png.Encode(fw, out); err != nil {
				f.Close()
				return err
			}
			// Emit metadata about each PNG
			fmt.Printf("%s\t%d\t%d\t%g\t%g\t%g\n", fmt.Sprintf("%s.z%06d_t%06d", prefix, z, t), z, t, vol.Spatial.Spacing[0], vol.Spatial.Spacing[1], vol.Spatial.Spacing[2])

			if err := fw.Flush(); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}

	return nil
}
