package nifti1

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/carbocation/pfx"

	"medimg"
	"medimg/volume"
)

// WriteVolume encodes v as a single-file NIfTI-1 dataset at path, gzipped
// when the path ends in .gz. Voxels are stored as little-endian float32.
// Parent directories are not created; a missing parent surfaces as a
// not-found error.
func WriteVolume(path string, v *volume.Volume) error {
	h, err := buildHeader(v)
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

	var w io.Writer
	bw := bufio.NewWriter(f)
	var gz *gzip.Writer
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz = gzip.NewWriter(bw)
		w = gz
	} else {
		w = bw
	}

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return pfx.Err(err)
	}
	// Four-byte extension flag: no extensions follow the header.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return pfx.Err(err)
	}

	buf := make([]float32, len(v.Data))
	for i, d := range v.Data {
		buf[i] = float32(d)
	}
	if err := binary.Write(w, binary.LittleEndian, buf); err != nil {
		return pfx.Err(err)
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return pfx.Err(err)
		}
	}
	if err := bw.Flush(); err != nil {
		return pfx.Err(err)
	}
	return pfx.Err(f.Close())
}

func buildHeader(v *volume.Volume) (Header, error) {
	var h Header
	if v.NDim() < 1 || v.NDim() > 4 {
		return h, fmt.Errorf("%w: %d axes", medimg.ErrUnsupportedDimensionality, v.NDim())
	}

	h.SizeofHdr = headerSize
	h.Regular = 'r'
	h.Dim[0] = int16(v.NDim())
	for i := range h.Dim[1:] {
		h.Dim[i+1] = 1
	}
	for i, d := range v.Shape {
		h.Dim[i+1] = int16(d)
	}

	h.Datatype = DTFloat32
	h.Bitpix = 32
	h.VoxOffset = voxOffset
	h.SclSlope = 1
	h.XyztUnits = unitsMMSec

	b, c, d, qfac := matrixToQuatern(v.Spatial.Direction)
	h.Pixdim[0] = float32(qfac)
	for i := range h.Pixdim[1:] {
		h.Pixdim[i+1] = 1
	}
	for i := 0; i < 3; i++ {
		h.Pixdim[i+1] = float32(v.Spatial.Spacing[i])
	}

	h.QformCode = 1
	h.SformCode = 1
	h.QuaternB = float32(b)
	h.QuaternC = float32(c)
	h.QuaternD = float32(d)
	h.QoffsetX = float32(v.Spatial.Origin[0])
	h.QoffsetY = float32(v.Spatial.Origin[1])
	h.QoffsetZ = float32(v.Spatial.Origin[2])

	for col := 0; col < 3; col++ {
		sp := v.Spatial.Spacing[col]
		h.SrowX[col] = float32(v.Spatial.Direction[0*3+col] * sp)
		h.SrowY[col] = float32(v.Spatial.Direction[1*3+col] * sp)
		h.SrowZ[col] = float32(v.Spatial.Direction[2*3+col] * sp)
	}
	h.SrowX[3] = float32(v.Spatial.Origin[0])
	h.SrowY[3] = float32(v.Spatial.Origin[1])
	h.SrowZ[3] = float32(v.Spatial.Origin[2])

	copy(h.Descrip[:], "medimg")
	h.Magic = [4]byte{'n', '+', '1', 0}
	return h, nil
}
