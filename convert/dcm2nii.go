package convert

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"medimg"
	"medimg/niftiio"
	"medimg/pathutil"
)

// DicomToNIfTI converts the series under inputDir into a single NIfTI file
// named fileName under outputDir, which must already exist. When fileName
// carries no NIfTI extension, .nii.gz is appended. Returns the written path.
func DicomToNIfTI(inputDir, outputDir, fileName string) (string, error) {
	vol, _, err := ReadSeries(inputDir)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(outputDir); err != nil || !fi.IsDir() {
		return "", fmt.Errorf("%w: output directory %s", medimg.ErrNotFound, outputDir)
	}

	ext := pathutil.New(fileName).Ext()
	if ext != ".nii" && ext != ".nii.gz" {
		fileName += ".nii.gz"
	}
	out := filepath.Join(outputDir, fileName)
	if err := niftiio.WriteImage(vol, out); err != nil {
		return "", err
	}
	return out, nil
}

const dcm2niixBinary = "dcm2niix"

// Dcm2niix converts the series under inputDir by shelling out to the
// dcm2niix binary on PATH. The output lands under outputDir as fileName
// (without extension; dcm2niix appends its own). Returns the tool's stdout.
func Dcm2niix(inputDir, outputDir, fileName string, compress bool) (string, error) {
	bin, err := exec.LookPath(dcm2niixBinary)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not on PATH", medimg.ErrMissingBinary, dcm2niixBinary)
	}
	if fi, err := os.Stat(inputDir); err != nil || !fi.IsDir() {
		return "", fmt.Errorf("%w: input directory %s", medimg.ErrNotFound, inputDir)
	}
	if fi, err := os.Stat(outputDir); err != nil || !fi.IsDir() {
		return "", fmt.Errorf("%w: output directory %s", medimg.ErrNotFound, outputDir)
	}

	cmd := exec.Command(bin, dcm2niixArgs(inputDir, outputDir, fileName, compress)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s: %v: %s", medimg.ErrNonzeroExit, dcm2niixBinary, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func dcm2niixArgs(inputDir, outputDir, fileName string, compress bool) []string {
	z := "n"
	if compress {
		z = "y"
	}
	return []string{"-z", z, "-f", fileName, "-o", outputDir, inputDir}
}
