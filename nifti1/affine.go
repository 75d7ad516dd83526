package nifti1

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// quaternToMatrix reconstructs the row-major rotation matrix from the qform
// quaternion, following the reference reconstruction in nifti1_io's
// quatern_to_mat44. qfac (+1 or -1) flips the k column for left-handed
// grids.
func quaternToMatrix(b, c, d, qfac float64) [9]float64 {
	a := 1 - b*b - c*c - d*d
	if a < 1e-7 {
		// Special case: 180 degree rotation, normalize (b,c,d).
		norm := math.Sqrt(b*b + c*c + d*d)
		b, c, d = b/norm, c/norm, d/norm
		a = 0
	} else {
		a = math.Sqrt(a)
	}

	m := [9]float64{
		a*a + b*b - c*c - d*d, 2*b*c - 2*a*d, 2*b*d + 2*a*c,
		2*b*c + 2*a*d, a*a + c*c - b*b - d*d, 2*c*d - 2*a*b,
		2*b*d - 2*a*c, 2*c*d + 2*a*b, a*a + d*d - c*c - b*b,
	}
	if qfac < 0 {
		m[2] = -m[2]
		m[5] = -m[5]
		m[8] = -m[8]
	}
	return m
}

// matrixToQuatern extracts the qform quaternion from a row-major direction
// matrix. When the matrix is left-handed (negative determinant) the k column
// is flipped and qfac is reported as -1, mirroring nifti1_io's
// mat44_to_quatern.
func matrixToQuatern(dir [9]float64) (b, c, d, qfac float64) {
	r := make([]float64, 9)
	copy(r, dir[:])

	qfac = 1
	if mat.Det(mat.NewDense(3, 3, r)) < 0 {
		qfac = -1
		r[2] = -r[2]
		r[5] = -r[5]
		r[8] = -r[8]
	}

	// Shepperd's method: pick the largest diagonal combination for
	// numerical stability.
	trace := r[0] + r[4] + r[8]
	var a float64
	switch {
	case trace > 0:
		a = 0.5 * math.Sqrt(trace+1)
		b = 0.25 * (r[7] - r[5]) / a
		c = 0.25 * (r[2] - r[6]) / a
		d = 0.25 * (r[3] - r[1]) / a
	case r[0] >= r[4] && r[0] >= r[8]:
		b = 0.5 * math.Sqrt(1+r[0]-r[4]-r[8])
		a = 0.25 * (r[7] - r[5]) / b
		c = 0.25 * (r[1] + r[3]) / b
		d = 0.25 * (r[2] + r[6]) / b
	case r[4] >= r[8]:
		c = 0.5 * math.Sqrt(1+r[4]-r[0]-r[8])
		a = 0.25 * (r[2] - r[6]) / c
		b = 0.25 * (r[1] + r[3]) / c
		d = 0.25 * (r[5] + r[7]) / c
	default:
		d = 0.5 * math.Sqrt(1+r[8]-r[0]-r[4])
		a = 0.25 * (r[3] - r[1]) / d
		b = 0.25 * (r[2] + r[6]) / d
		c = 0.25 * (r[5] + r[7]) / d
	}

	// The convention requires a >= 0.
	if a < 0 {
		b, c, d = -b, -c, -d
	}
	return b, c, d, qfac
}
