// Package convert assembles DICOM series into NIfTI volumes and back. The
// native path uses the dicom library directly; Dcm2niix shells out to the
// external converter instead.
package convert

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"medimg"
	"medimg/tiffio"
	"medimg/volume"
)

// SeriesMeta is the identity and geometry shared by the slices of one
// series.
type SeriesMeta struct {
	PatientName      string
	PatientID        string
	PatientBirthDate string
	PatientSex       string

	StudyUID        string
	StudyID         string
	StudyDate       string
	StudyTime       string
	AccessionNumber string
	SeriesUID         string
	SeriesNumber      string
	SeriesDescription string
	Modality          string

	Rows, Cols   int
	PixelSpacing [2]float64 // row spacing, column spacing (mm)
	SliceSpacing float64
	Orientation  [6]float64 // row direction, column direction
	Origin       [3]float64 // position of the first slice
}

type sliceRecord struct {
	path     string
	ds       dicom.Dataset
	position [3]float64
	hasPos   bool
	instance int
	hasInst  bool
	// projection of position onto the slice normal, the sort key
	along float64
}

// ReadSeries reads every .dcm file directly under dir as one series, orders
// the slices along the series axis, and assembles them into a volume. All
// slices must agree on rows, columns, pixel spacing and orientation.
func ReadSeries(dir string) (*volume.Volume, *SeriesMeta, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", medimg.ErrNotFound, dir)
		}
		return nil, nil, err
	}

	var slices []*sliceRecord
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".dcm") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		ds, err := dicom.ParseFile(path, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", medimg.ErrFileFormat, path, err)
		}
		rec := &sliceRecord{path: path, ds: ds}
		if pos, ok := tagFloats(ds, tag.ImagePositionPatient, 3); ok {
			copy(rec.position[:], pos)
			rec.hasPos = true
		}
		if s, ok := tagString(ds, tag.InstanceNumber); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				rec.instance = n
				rec.hasInst = true
			}
		}
		slices = append(slices, rec)
	}

	if len(slices) == 0 {
		return nil, nil, fmt.Errorf("%w: no .dcm files under %s", medimg.ErrEmptySeries, dir)
	}

	meta, err := seriesMetaFrom(slices[0].ds)
	if err != nil {
		return nil, nil, err
	}

	if err := checkHomogeneous(slices, meta); err != nil {
		return nil, nil, err
	}
	if err := orderSlices(slices, meta); err != nil {
		return nil, nil, err
	}

	meta.SliceSpacing = sliceSpacing(slices, slices[0].ds)
	meta.Origin = slices[0].position

	vol, err := assembleVolume(slices, meta)
	if err != nil {
		return nil, nil, err
	}
	return vol, meta, nil
}

func seriesMetaFrom(ds dicom.Dataset) (*SeriesMeta, error) {
	m := &SeriesMeta{}
	m.PatientName, _ = tagString(ds, tag.PatientName)
	m.PatientID, _ = tagString(ds, tag.PatientID)
	m.PatientBirthDate, _ = tagString(ds, tag.PatientBirthDate)
	m.PatientSex, _ = tagString(ds, tag.PatientSex)
	m.StudyUID, _ = tagString(ds, tag.StudyInstanceUID)
	m.StudyID, _ = tagString(ds, tag.StudyID)
	m.StudyDate, _ = tagString(ds, tag.StudyDate)
	m.StudyTime, _ = tagString(ds, tag.StudyTime)
	m.AccessionNumber, _ = tagString(ds, tag.AccessionNumber)
	m.SeriesUID, _ = tagString(ds, tag.SeriesInstanceUID)
	m.SeriesNumber, _ = tagString(ds, tag.SeriesNumber)
	m.SeriesDescription, _ = tagString(ds, tag.SeriesDescription)
	m.Modality, _ = tagString(ds, tag.Modality)

	rows, okR := tagInt(ds, tag.Rows)
	cols, okC := tagInt(ds, tag.Columns)
	if !okR || !okC || rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: slice without Rows/Columns", medimg.ErrFileFormat)
	}
	m.Rows, m.Cols = rows, cols

	if ps, ok := tagFloats(ds, tag.PixelSpacing, 2); ok {
		m.PixelSpacing = [2]float64{ps[0], ps[1]}
	} else {
		m.PixelSpacing = [2]float64{1, 1}
	}
	if iop, ok := tagFloats(ds, tag.ImageOrientationPatient, 6); ok {
		copy(m.Orientation[:], iop)
	} else {
		m.Orientation = [6]float64{1, 0, 0, 0, 1, 0}
	}
	return m, nil
}

func checkHomogeneous(slices []*sliceRecord, meta *SeriesMeta) error {
	const tol = 1e-4
	for _, s := range slices {
		rows, _ := tagInt(s.ds, tag.Rows)
		cols, _ := tagInt(s.ds, tag.Columns)
		if rows != meta.Rows || cols != meta.Cols {
			return fmt.Errorf("%w: %s is %dx%d, series is %dx%d", medimg.ErrHeterogeneousSeries, s.path, rows, cols, meta.Rows, meta.Cols)
		}
		if ps, ok := tagFloats(s.ds, tag.PixelSpacing, 2); ok {
			if math.Abs(ps[0]-meta.PixelSpacing[0]) > tol || math.Abs(ps[1]-meta.PixelSpacing[1]) > tol {
				return fmt.Errorf("%w: %s pixel spacing %v differs from %v", medimg.ErrHeterogeneousSeries, s.path, ps, meta.PixelSpacing)
			}
		}
		if iop, ok := tagFloats(s.ds, tag.ImageOrientationPatient, 6); ok {
			for i := range iop {
				if math.Abs(iop[i]-meta.Orientation[i]) > tol {
					return fmt.Errorf("%w: %s orientation differs", medimg.ErrHeterogeneousSeries, s.path)
				}
			}
		}
		if s.hasPos != slices[0].hasPos {
			return fmt.Errorf("%w: mixed availability of ImagePositionPatient", medimg.ErrHeterogeneousSeries)
		}
	}
	return nil
}

// orderSlices sorts along the series axis: by the projection of
// ImagePositionPatient onto the slice normal when every slice carries a
// position, otherwise by InstanceNumber.
func orderSlices(slices []*sliceRecord, meta *SeriesMeta) error {
	if slices[0].hasPos {
		n := normalOf(meta.Orientation)
		for _, s := range slices {
			s.along = s.position[0]*n[0] + s.position[1]*n[1] + s.position[2]*n[2]
		}
		sort.SliceStable(slices, func(i, j int) bool { return slices[i].along < slices[j].along })
		return nil
	}
	for _, s := range slices {
		if !s.hasInst {
			return fmt.Errorf("%w: no ImagePositionPatient and no InstanceNumber on %s", medimg.ErrHeterogeneousSeries, s.path)
		}
	}
	sort.SliceStable(slices, func(i, j int) bool { return slices[i].instance < slices[j].instance })
	return nil
}

// normalOf is the cross product of the row and column direction cosines.
func normalOf(o [6]float64) [3]float64 {
	return [3]float64{
		o[1]*o[5] - o[2]*o[4],
		o[2]*o[3] - o[0]*o[5],
		o[0]*o[4] - o[1]*o[3],
	}
}

// sliceSpacing derives the physical gap between consecutive slices,
// preferring measured positions over the declared tags.
func sliceSpacing(slices []*sliceRecord, first dicom.Dataset) float64 {
	if len(slices) > 1 && slices[0].hasPos {
		if d := math.Abs(slices[1].along - slices[0].along); d > 1e-9 {
			return d
		}
	}
	if v, ok := tagFloats(first, tag.SpacingBetweenSlices, 1); ok && v[0] > 0 {
		return v[0]
	}
	if v, ok := tagFloats(first, tag.SliceThickness, 1); ok && v[0] > 0 {
		return v[0]
	}
	return 1
}

func assembleVolume(slices []*sliceRecord, meta *SeriesMeta) (*volume.Volume, error) {
	vol, err := volume.New(meta.Cols, meta.Rows, len(slices))
	if err != nil {
		return nil, err
	}

	slope, intercept := 1.0, 0.0
	if v, ok := tagFloats(slices[0].ds, tag.RescaleSlope, 1); ok {
		slope = v[0]
	}
	if v, ok := tagFloats(slices[0].ds, tag.RescaleIntercept, 1); ok {
		intercept = v[0]
	}

	for z, s := range slices {
		plane, err := slicePixels(s.ds)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", medimg.ErrFileFormat, s.path, err)
		}
		if plane.Dim(0) != meta.Cols || plane.Dim(1) != meta.Rows {
			return nil, fmt.Errorf("%w: %s pixel data is %dx%d", medimg.ErrHeterogeneousSeries, s.path, plane.Dim(0), plane.Dim(1))
		}
		base := z * meta.Cols * meta.Rows
		for i, raw := range plane.Data {
			vol.Data[base+i] = slope*raw + intercept
		}
	}

	n := normalOf(meta.Orientation)
	vol.Spatial = volume.Spatial{
		Origin: meta.Origin,
		// PixelSpacing is (row, column): the x axis advances by the column
		// spacing.
		Spacing: [3]float64{meta.PixelSpacing[1], meta.PixelSpacing[0], meta.SliceSpacing},
		Direction: [9]float64{
			meta.Orientation[0], meta.Orientation[3], n[0],
			meta.Orientation[1], meta.Orientation[4], n[1],
			meta.Orientation[2], meta.Orientation[5], n[2],
		},
	}
	return vol, nil
}

// slicePixels decodes the first frame of a dataset as a 2-D plane of stored
// values.
func slicePixels(ds dicom.Dataset) (*volume.Volume, error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("no pixel data: %v", err)
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) == 0 {
		return nil, fmt.Errorf("pixel data holds no frames")
	}
	img, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, err
	}
	return tiffio.FromImage(img)
}

// tagString returns the first string value of t, if present.
func tagString(ds dicom.Dataset, t tag.Tag) (string, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return "", false
	}
	vals := dicom.MustGetStrings(el.Value)
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// tagInt returns the first integer value of t, if present.
func tagInt(ds dicom.Dataset, t tag.Tag) (int, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return 0, false
	}
	vals := dicom.MustGetInts(el.Value)
	if len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// tagFloats parses n decimal-string values of t (the DS representation).
func tagFloats(ds dicom.Dataset, t tag.Tag, n int) ([]float64, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return nil, false
	}
	vals := dicom.MustGetStrings(el.Value)
	if len(vals) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(vals[i]), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
