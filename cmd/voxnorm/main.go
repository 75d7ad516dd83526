// voxnorm rescales the intensities of an image volume and writes the result,
// optionally stamping it with the spatial metadata of a reference image.
package main

import (
	"flag"
	"log"
	"os"

	"medimg/imgio"
	"medimg/normalize"
)

func main() {
	var in, out, mode, ref string
	var lower, upper, center, width, rangeMin, rangeMax float64

	flag.StringVar(&in, "in", "", "Input image (.nii, .nii.gz, .tif, .tiff, .png, ...).")
	flag.StringVar(&out, "out", "", "Output image path; the extension picks the format.")
	flag.StringVar(&mode, "mode", "percentile", "Normalization: percentile or window.")
	flag.Float64Var(&lower, "lower", 0, "Lower percentile for -mode percentile.")
	flag.Float64Var(&upper, "upper", 100, "Upper percentile for -mode percentile.")
	flag.Float64Var(&center, "center", 0, "Window center for -mode window.")
	flag.Float64Var(&width, "width", 0, "Window width for -mode window.")
	flag.Float64Var(&rangeMin, "min", 0, "Lower bound of the output range.")
	flag.Float64Var(&rangeMax, "max", 1, "Upper bound of the output range.")
	flag.StringVar(&ref, "ref", "", "NIfTI file whose spatial metadata is copied onto the output.")
	flag.Parse()

	if in == "" || out == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	vol, err := imgio.ReadImage(in)
	if err != nil {
		log.Fatalln(err)
	}

	rng := normalize.WithRange(rangeMin, rangeMax)
	var scaled = vol
	switch mode {
	case "percentile":
		p, err := normalize.NewPercentile(lower, upper, rng)
		if err != nil {
			log.Fatalln(err)
		}
		scaled = p.Normalize(vol)
	case "window":
		w, err := normalize.NewWindow(center, width, rng)
		if err != nil {
			log.Fatalln(err)
		}
		scaled = w.Normalize(vol)
	default:
		log.Fatalf("unknown mode %q", mode)
	}

	var opts []imgio.WriteOption
	if ref != "" {
		opts = append(opts, imgio.WithReference(ref))
	}
	if err := imgio.WriteImage(scaled, out, opts...); err != nil {
		log.Fatalln(err)
	}
}
