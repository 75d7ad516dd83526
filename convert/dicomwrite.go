package convert

import (
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/carbocation/pfx"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"medimg"
	"medimg/volume"
)

const (
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	mrImageStorage         = "1.2.840.10008.5.1.4.1.1.4"
)

// WriteSeriesOption adjusts NIfTIToDicom.
type WriteSeriesOption func(*writeSeriesConfig)

type writeSeriesConfig struct {
	referenceDir      string
	seriesDescription string
}

// WithReferenceSeries inherits patient and study identity from an existing
// series at dir. The written series still gets its own SeriesInstanceUID.
func WithReferenceSeries(dir string) WriteSeriesOption {
	return func(c *writeSeriesConfig) {
		c.referenceDir = dir
	}
}

// WithSeriesDescription sets the SeriesDescription of the written slices.
func WithSeriesDescription(desc string) WriteSeriesOption {
	return func(c *writeSeriesConfig) {
		c.seriesDescription = desc
	}
}

// NIfTIToDicom writes a 3-D volume as one DICOM file per z slice under
// outputDir, which must already exist. Returns the written paths in slice
// order. Without a reference series the patient and study identity is
// synthetic but deterministic for a given volume shape and output directory.
func NIfTIToDicom(src Source, outputDir string, opts ...WriteSeriesOption) ([]string, error) {
	var cfg writeSeriesConfig
	for _, o := range opts {
		o(&cfg)
	}

	vol, err := src.resolve()
	if err != nil {
		return nil, err
	}
	if vol.NDim() != 3 {
		return nil, fmt.Errorf("%w: DICOM export needs a 3-D volume, got %d-D", medimg.ErrUnsupportedDimensionality, vol.NDim())
	}
	if fi, err := os.Stat(outputDir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: output directory %s", medimg.ErrNotFound, outputDir)
	}

	meta := syntheticMeta(vol, outputDir)
	if cfg.seriesDescription != "" {
		meta.SeriesDescription = cfg.seriesDescription
	}
	if cfg.referenceDir != "" {
		ref, err := referenceMeta(cfg.referenceDir)
		if err != nil {
			return nil, err
		}
		inheritIdentity(meta, ref)
	}

	// Stored values are unsigned 16-bit; shift negative data into range and
	// record the shift as the rescale intercept.
	lo, _ := vol.MinMax()
	intercept := 0.0
	if lo < 0 {
		intercept = math.Floor(lo)
	}

	nz := vol.Dim(2)
	paths := make([]string, 0, nz)
	for z := 0; z < nz; z++ {
		path := filepath.Join(outputDir, fmt.Sprintf("IMG%04d.dcm", z+1))
		ds := sliceDataset(vol, meta, z, intercept)
		f, err := os.Create(path)
		if err != nil {
			return nil, pfx.Err(err)
		}
		if err := dicom.Write(f, ds); err != nil {
			f.Close()
			return nil, pfx.Err(err)
		}
		if err := f.Close(); err != nil {
			return nil, pfx.Err(err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// syntheticMeta invents a consistent identity for a volume written without a
// reference series. UIDs hash the output directory and shape, so rewriting
// the same volume to the same place yields the same series.
func syntheticMeta(v *volume.Volume, outputDir string) *SeriesMeta {
	seed := fmt.Sprintf("%s|%v", outputDir, v.Shape)
	now := time.Now()
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed + "|patient"))
	m := &SeriesMeta{
		PatientName: "ANONYMOUS",
		PatientID:   fmt.Sprintf("ANON%08d", h.Sum64()%100000000),
		PatientSex:  "O",
		StudyUID:    deterministicUID(seed + "|study"),
		SeriesUID:   deterministicUID(seed + "|series"),
		StudyID:     "1",
		StudyDate:   now.Format("20060102"),
		StudyTime:   now.Format("150405"),
		Modality:    "MR",
	}
	m.SeriesNumber = "1"
	fillGeometry(m, v)
	return m
}

func fillGeometry(m *SeriesMeta, v *volume.Volume) {
	m.Cols, m.Rows = v.Dim(0), v.Dim(1)
	sp := v.Spatial
	m.PixelSpacing = [2]float64{sp.Spacing[1], sp.Spacing[0]}
	m.SliceSpacing = sp.Spacing[2]
	d := sp.Direction
	m.Orientation = [6]float64{d[0], d[3], d[6], d[1], d[4], d[7]}
	m.Origin = sp.Origin
}

// referenceMeta reads identity from the first parseable slice of dir.
func referenceMeta(dir string) (*SeriesMeta, error) {
	_, meta, err := ReadSeries(dir)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// inheritIdentity copies patient and study fields from ref onto m, leaving
// m's series identity and geometry alone.
func inheritIdentity(m, ref *SeriesMeta) {
	m.PatientName = ref.PatientName
	m.PatientID = ref.PatientID
	m.PatientBirthDate = ref.PatientBirthDate
	m.PatientSex = ref.PatientSex
	m.StudyUID = ref.StudyUID
	m.StudyID = ref.StudyID
	m.StudyDate = ref.StudyDate
	m.StudyTime = ref.StudyTime
	m.AccessionNumber = ref.AccessionNumber
	if ref.Modality != "" {
		m.Modality = ref.Modality
	}
}

func sliceDataset(v *volume.Volume, m *SeriesMeta, z int, intercept float64) dicom.Dataset {
	nx, ny := m.Cols, m.Rows
	nativeFrame := frame.NativeFrame{
		BitsPerSample: 16,
		Rows:          ny,
		Cols:          nx,
		Data:          make([][]int, nx*ny),
	}
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			val := math.Round(v.At(x, y, z) - intercept)
			if val < 0 {
				val = 0
			}
			if val > math.MaxUint16 {
				val = math.MaxUint16
			}
			nativeFrame.Data[y*nx+x] = []int{int(uint16(val))}
		}
	}
	pixelDataInfo := dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeFrame,
			},
		},
	}

	// Each slice sits sliceSpacing further along the normal.
	n := normalOf(m.Orientation)
	pos := [3]float64{
		m.Origin[0] + float64(z)*m.SliceSpacing*n[0],
		m.Origin[1] + float64(z)*m.SliceSpacing*n[1],
		m.Origin[2] + float64(z)*m.SliceSpacing*n[2],
	}
	sliceLocation := pos[0]*n[0] + pos[1]*n[1] + pos[2]*n[2]

	elements := []*dicom.Element{
		mustNewElement(tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustNewElement(tag.SOPClassUID, []string{mrImageStorage}),
		mustNewElement(tag.SOPInstanceUID, []string{deterministicUID(fmt.Sprintf("%s|slice%d", m.SeriesUID, z))}),
		mustNewElement(tag.PatientName, []string{m.PatientName}),
		mustNewElement(tag.PatientID, []string{m.PatientID}),
		mustNewElement(tag.PatientBirthDate, []string{m.PatientBirthDate}),
		mustNewElement(tag.PatientSex, []string{m.PatientSex}),
		mustNewElement(tag.StudyInstanceUID, []string{m.StudyUID}),
		mustNewElement(tag.StudyID, []string{m.StudyID}),
		mustNewElement(tag.StudyDate, []string{m.StudyDate}),
		mustNewElement(tag.StudyTime, []string{m.StudyTime}),
		mustNewElement(tag.AccessionNumber, []string{m.AccessionNumber}),
		mustNewElement(tag.SeriesInstanceUID, []string{m.SeriesUID}),
		mustNewElement(tag.SeriesNumber, []string{m.SeriesNumber}),
		mustNewElement(tag.SeriesDescription, []string{m.SeriesDescription}),
		mustNewElement(tag.Modality, []string{m.Modality}),
		mustNewElement(tag.InstanceNumber, []string{fmt.Sprintf("%d", z+1)}),
		mustNewElement(tag.ImagePositionPatient, []string{
			floatToDS(pos[0]), floatToDS(pos[1]), floatToDS(pos[2]),
		}),
		mustNewElement(tag.ImageOrientationPatient, []string{
			floatToDS(m.Orientation[0]), floatToDS(m.Orientation[1]), floatToDS(m.Orientation[2]),
			floatToDS(m.Orientation[3]), floatToDS(m.Orientation[4]), floatToDS(m.Orientation[5]),
		}),
		mustNewElement(tag.SliceLocation, []string{floatToDS(sliceLocation)}),
		mustNewElement(tag.PixelSpacing, []string{
			floatToDS(m.PixelSpacing[0]), floatToDS(m.PixelSpacing[1]),
		}),
		mustNewElement(tag.SliceThickness, []string{floatToDS(m.SliceSpacing)}),
		mustNewElement(tag.SpacingBetweenSlices, []string{floatToDS(m.SliceSpacing)}),
		mustNewElement(tag.Rows, []int{ny}),
		mustNewElement(tag.Columns, []int{nx}),
		mustNewElement(tag.BitsAllocated, []int{16}),
		mustNewElement(tag.BitsStored, []int{16}),
		mustNewElement(tag.HighBit, []int{15}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustNewElement(tag.RescaleSlope, []string{floatToDS(1)}),
		mustNewElement(tag.RescaleIntercept, []string{floatToDS(intercept)}),
		mustNewElement(tag.PixelData, pixelDataInfo),
	}
	return dicom.Dataset{Elements: elements}
}

func mustNewElement(t tag.Tag, data interface{}) *dicom.Element {
	el, err := dicom.NewElement(t, data)
	if err != nil {
		panic(fmt.Sprintf("building element %v: %v", t, err))
	}
	return el
}

func floatToDS(f float64) string {
	return fmt.Sprintf("%.6f", f)
}

// deterministicUID derives a UID in the 2.25 (UUID-derived) root from a seed
// string. The same seed always maps to the same UID.
func deterministicUID(seed string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed)) // hash.Write never returns an error
	return fmt.Sprintf("2.25.%d", h.Sum64())
}
