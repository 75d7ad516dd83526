// Package runner executes external tools, capturing their combined output
// and optionally appending it to a log file.
package runner

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/carbocation/pfx"

	"medimg"
)

// Runner launches one binary, possibly many times.
type Runner struct {
	// Path is the binary to run, resolved against PATH when not absolute.
	Path string
	// LogPath, when set, receives a copy of each run's output (appended).
	LogPath string
}

// Result reports one completed run.
type Result struct {
	// Success is true when the process exited with status zero.
	Success bool
	// Output is the interleaved stdout and stderr of the process.
	Output string
}

// New returns a Runner for the named binary.
func New(path string) *Runner {
	return &Runner{Path: path}
}

// Run executes the binary with args and waits for it to finish. A nonzero
// exit is not an error: it comes back as Success == false with the output
// intact. The error return is reserved for failures to launch or to log.
func (r *Runner) Run(args ...string) (Result, error) {
	bin, err := exec.LookPath(r.Path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", medimg.ErrMissingBinary, r.Path)
	}

	cmd := exec.Command(bin, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	res := Result{Success: runErr == nil, Output: buf.String()}

	if r.LogPath != "" {
		if err := appendLog(r.LogPath, res.Output); err != nil {
			return res, err
		}
	}

	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); ok {
			return res, nil
		}
		return res, pfx.Err(runErr)
	}
	return res, nil
}

func appendLog(path, output string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()
	if _, err := f.WriteString(output); err != nil {
		return pfx.Err(err)
	}
	return pfx.Err(f.Close())
}
