// Package medimg defines the error taxonomy shared by the imaging
// subpackages. All failures are surfaced to the caller immediately; nothing
// is retried and nothing is downgraded to a default value.
package medimg

import "errors"

var (
	// ErrNotFound indicates a missing input path or a missing parent
	// directory for an output path.
	ErrNotFound = errors.New("not found")

	// ErrFileFormat indicates unrecognized or corrupt image content, or a
	// file extension no codec claims.
	ErrFileFormat = errors.New("unrecognized file format")

	// ErrMismatch indicates that reference metadata could not be applied
	// because its dimensionality does not match the target array.
	ErrMismatch = errors.New("reference dimensionality mismatch")

	// ErrEmptySeries indicates a DICOM directory with no readable slices.
	ErrEmptySeries = errors.New("empty dicom series")

	// ErrHeterogeneousSeries indicates slices with inconsistent geometry.
	ErrHeterogeneousSeries = errors.New("heterogeneous dicom series")

	// ErrUnsupportedDimensionality indicates a non-3-D input where a 3-D
	// volume is required.
	ErrUnsupportedDimensionality = errors.New("unsupported dimensionality")

	// ErrMissingBinary indicates an external tool absent from the PATH.
	ErrMissingBinary = errors.New("external binary not found")

	// ErrNonzeroExit indicates an external tool that reported failure. The
	// wrapped message carries the captured stderr.
	ErrNonzeroExit = errors.New("external binary exited nonzero")

	// ErrConfiguration indicates invalid construction-time parameters.
	ErrConfiguration = errors.New("invalid configuration")
)
