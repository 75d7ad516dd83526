package convert

import (
	"fmt"

	"medimg"
	"medimg/imgio"
	"medimg/volume"
)

type sourceKind int

const (
	sourceNone sourceKind = iota
	sourcePath
	sourceVolume
)

// Source names the input of NIfTIToDicom: either a file on disk or an
// in-memory volume.
type Source struct {
	kind sourceKind
	path string
	vol  *volume.Volume
}

// FromPath reads the source volume from an image file.
func FromPath(path string) Source {
	return Source{kind: sourcePath, path: path}
}

// FromVolume uses an in-memory volume as the source.
func FromVolume(v *volume.Volume) Source {
	return Source{kind: sourceVolume, vol: v}
}

// FromArray wraps a flat buffer with the given shape as the source. The
// buffer is indexed x-fastest, like volume.FromData.
func FromArray(data []float64, shape ...int) (Source, error) {
	v, err := volume.FromData(data, shape...)
	if err != nil {
		return Source{}, err
	}
	return FromVolume(v), nil
}

func (s Source) resolve() (*volume.Volume, error) {
	switch s.kind {
	case sourcePath:
		return imgio.ReadImage(s.path)
	case sourceVolume:
		if s.vol == nil {
			return nil, fmt.Errorf("%w: nil source volume", medimg.ErrConfiguration)
		}
		return s.vol, nil
	default:
		return nil, fmt.Errorf("%w: empty source", medimg.ErrConfiguration)
	}
}
