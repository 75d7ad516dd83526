// Package nifti1 implements the NIfTI-1 single-file container: the 348-byte
// header, the qform/sform spatial reference, and a float32 writer for .nii
// and .nii.gz. Header field layout follows the official nifti1.h definition,
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
package nifti1

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/carbocation/pfx"

	"medimg"
	"medimg/volume"
)

// Header is the on-disk NIfTI-1 header, 348 bytes packed little- or
// big-endian.
type Header struct {
	SizeofHdr    int32    // Must be 348
	DataTypeName [10]byte // Unused
	DBName       [18]byte // Unused
	Extents      int32    // Unused
	SessionError int16    // Unused
	Regular      byte     // Unused
	DimInfo      byte     // MRI slice ordering

	Dim        [8]int16 // Data array dimensions, Dim[0] = ndim
	IntentP1   float32
	IntentP2   float32
	IntentP3   float32
	IntentCode int16
	Datatype   int16 // DT_* code
	Bitpix     int16 // Bits per voxel
	SliceStart int16

	Pixdim    [8]float32 // Grid spacing, Pixdim[0] = qfac
	VoxOffset float32    // Offset into .nii file where data start
	SclSlope  float32
	SclInter  float32
	SliceEnd  int16
	SliceCode byte
	XyztUnits byte
	CalMax    float32
	CalMin    float32

	SliceDuration float32
	Toffset       float32
	Glmax         int32 // Unused
	Glmin         int32 // Unused

	Descrip [80]byte
	AuxFile [24]byte

	QformCode int16
	SformCode int16

	QuaternB float32
	QuaternC float32
	QuaternD float32
	QoffsetX float32
	QoffsetY float32
	QoffsetZ float32

	SrowX [4]float32
	SrowY [4]float32
	SrowZ [4]float32

	IntentName [16]byte

	Magic [4]byte // "n+1\x00" for single-file datasets
}

// Datatype codes from nifti1.h.
const (
	DTUint8   = 2
	DTInt16   = 4
	DTInt32   = 8
	DTFloat32 = 16
	DTFloat64 = 64
)

const (
	headerSize = 348
	// voxOffset is where voxel data start in a single-file dataset: the
	// header plus the four-byte extension flag.
	voxOffset = 352

	unitsMMSec = 10 // NIFTI_UNITS_MM | NIFTI_UNITS_SEC
)

// ReadHeader reads the header of the .nii or .nii.gz file at path.
func ReadHeader(path string) (Header, binary.ByteOrder, error) {
	var h Header

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil, fmt.Errorf("%w: %s", medimg.ErrNotFound, path)
		}
		return h, nil, pfx.Err(err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return h, nil, fmt.Errorf("%w: %s: %v", medimg.ErrFileFormat, path, err)
		}
		defer gz.Close()
		r = gz
	}

	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return h, nil, fmt.Errorf("%w: %s: truncated header: %v", medimg.ErrFileFormat, path, err)
	}

	return decodeHeader(raw, path)
}

// decodeHeader parses the 348 header bytes, sniffing byte order from Dim[0]
// the way nifti1_io does.
func decodeHeader(raw []byte, path string) (Header, binary.ByteOrder, error) {
	var h Header
	var order binary.ByteOrder = binary.LittleEndian

	if err := binary.Read(bytes.NewReader(raw), order, &h); err != nil {
		return h, nil, pfx.Err(err)
	}
	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(raw), order, &h); err != nil {
			return h, nil, pfx.Err(err)
		}
	}
	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		return h, nil, fmt.Errorf("%w: %s: dim[0] = %d not in [1, 7] in either byte order", medimg.ErrFileFormat, path, h.Dim[0])
	}
	if h.SizeofHdr != headerSize {
		return h, nil, fmt.Errorf("%w: %s: header size %d, want %d", medimg.ErrFileFormat, path, h.SizeofHdr, headerSize)
	}
	if m := h.Magic; !(m[0] == 'n' && (m[1] == '+' || m[1] == 'i') && m[2] == '1' && m[3] == 0) {
		return h, nil, fmt.Errorf("%w: %s: bad magic %q", medimg.ErrFileFormat, path, m[:])
	}
	return h, order, nil
}

// Dims returns the shape, trimmed to the true dimensionality.
func (h *Header) Dims() []int {
	n := int(h.Dim[0])
	if n > 4 {
		n = 4
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		d := int(h.Dim[i+1])
		if d < 1 {
			d = 1
		}
		out[i] = d
	}
	return out
}

// Spatial derives origin, spacing and direction from the header, preferring
// the sform affine, then the qform quaternion, then bare pixdim.
func (h *Header) Spatial() volume.Spatial {
	if h.SformCode > 0 {
		return h.sformSpatial()
	}
	if h.QformCode > 0 {
		return h.qformSpatial()
	}
	s := volume.IdentitySpatial()
	for i := 0; i < 3; i++ {
		if p := float64(h.Pixdim[i+1]); p > 0 {
			s.Spacing[i] = p
		}
	}
	return s
}

func (h *Header) sformSpatial() volume.Spatial {
	rows := [3][4]float32{h.SrowX, h.SrowY, h.SrowZ}
	var s volume.Spatial
	for col := 0; col < 3; col++ {
		norm := math.Sqrt(float64(rows[0][col])*float64(rows[0][col]) +
			float64(rows[1][col])*float64(rows[1][col]) +
			float64(rows[2][col])*float64(rows[2][col]))
		if norm == 0 {
			norm = 1
		}
		s.Spacing[col] = norm
		for row := 0; row < 3; row++ {
			s.Direction[row*3+col] = float64(rows[row][col]) / norm
		}
	}
	s.Origin = [3]float64{float64(h.SrowX[3]), float64(h.SrowY[3]), float64(h.SrowZ[3])}
	return s
}

func (h *Header) qformSpatial() volume.Spatial {
	var s volume.Spatial
	qfac := float64(h.Pixdim[0])
	if qfac >= 0 {
		qfac = 1
	} else {
		qfac = -1
	}
	s.Direction = quaternToMatrix(float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD), qfac)
	for i := 0; i < 3; i++ {
		p := float64(h.Pixdim[i+1])
		if p <= 0 {
			p = 1
		}
		s.Spacing[i] = p
	}
	s.Origin = [3]float64{float64(h.QoffsetX), float64(h.QoffsetY), float64(h.QoffsetZ)}
	return s
}
