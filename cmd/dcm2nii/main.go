// dcm2nii converts DICOM series to NIfTI volumes, either natively or by
// shelling out to the dcm2niix tool. A single conversion is described with
// flags; a batch is described with a YAML config file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"medimg/config"
	"medimg/convert"
	"medimg/runner"
)

func main() {
	var input, output, name, method, configPath string
	var compress bool

	flag.StringVar(&input, "input", "", "Directory holding the DICOM series to convert.")
	flag.StringVar(&output, "output", "", "Directory the NIfTI file is written into. Must exist.")
	flag.StringVar(&name, "name", "converted", "Output file name, without extension.")
	flag.StringVar(&method, "method", config.MethodNative, "Conversion backend: native or dcm2niix.")
	flag.BoolVar(&compress, "compress", true, "Write .nii.gz instead of .nii.")
	flag.StringVar(&configPath, "config", "", "YAML config describing a batch of conversions. Overrides the single-job flags.")
	flag.Parse()

	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalln(err)
		}
		if len(cfg.Jobs) == 0 {
			log.Fatalln("config lists no jobs")
		}
		for _, job := range cfg.Jobs {
			if err := runJob(cfg, job); err != nil {
				log.Fatalln(err)
			}
		}
		return
	}

	if input == "" || output == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	cfg.Method = method
	cfg.Compress = compress
	if err := cfg.Validate(); err != nil {
		log.Fatalln(err)
	}
	if err := runJob(cfg, config.Job{Input: input, Output: output, Name: name}); err != nil {
		log.Fatalln(err)
	}
}

func runJob(cfg *config.Config, job config.Job) error {
	name := job.Name
	if name == "" {
		name = "converted"
	}

	switch cfg.Method {
	case config.MethodNative:
		if !cfg.Compress {
			name += ".nii"
		}
		out, err := convert.DicomToNIfTI(job.Input, job.Output, name)
		if err != nil {
			return err
		}
		log.Printf("wrote %s", out)
		return nil
	case config.MethodDcm2niix:
		r := runner.New("dcm2niix")
		r.LogPath = cfg.LogPath
		z := "n"
		if cfg.Compress {
			z = "y"
		}
		res, err := r.Run("-z", z, "-f", name, "-o", job.Output, job.Input)
		if err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("dcm2niix failed for %s: %s", job.Input, res.Output)
		}
		log.Printf("converted %s into %s", job.Input, job.Output)
		return nil
	default:
		return fmt.Errorf("unknown method %q", cfg.Method)
	}
}
