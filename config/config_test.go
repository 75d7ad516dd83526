package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"medimg"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Method != MethodNative || !cfg.Compress {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	doc := `method: dcm2niix
compress: false
logPath: /tmp/conv.log
jobs:
  - input: /data/series1
    output: /data/out
    name: scan1
  - input: /data/series2
    output: /data/out
    name: scan2
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Method != MethodDcm2niix || cfg.Compress {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Jobs) != 2 || cfg.Jobs[1].Name != "scan2" {
		t.Errorf("jobs = %+v", cfg.Jobs)
	}
}

func TestValidateRejectsBadMethod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = "itk"
	if err := cfg.Validate(); !errors.Is(err, medimg.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestValidateRejectsIncompleteJob(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jobs = []Job{{Input: "/data/series"}}
	if err := cfg.Validate(); !errors.Is(err, medimg.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
