// Package pathutil wraps filesystem paths with the handful of accessors the
// imaging tools need over and over: compound-suffix handling (".nii.gz"),
// stem extraction, and existence checks.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// compoundSuffixes are multi-part extensions that must be treated as a unit.
var compoundSuffixes = []string{".nii.gz", ".tar.gz"}

// Path is a filesystem path value. It carries no open handles; every method
// is pure except Exists.
type Path string

// New cleans p and returns it as a Path.
func New(p string) Path {
	return Path(filepath.Clean(p))
}

// Join appends elements to the path.
func (p Path) Join(elem ...string) Path {
	parts := append([]string{string(p)}, elem...)
	return Path(filepath.Join(parts...))
}

// Parent returns the containing directory.
func (p Path) Parent() Path {
	return Path(filepath.Dir(string(p)))
}

// Base returns the final path element.
func (p Path) Base() string {
	return filepath.Base(string(p))
}

// Ext returns the extension, treating compound suffixes like ".nii.gz" as a
// single extension.
func (p Path) Ext() string {
	base := strings.ToLower(p.Base())
	for _, s := range compoundSuffixes {
		if strings.HasSuffix(base, s) {
			return s
		}
	}
	return filepath.Ext(base)
}

// Stem returns the final path element with its (possibly compound) extension
// removed.
func (p Path) Stem() string {
	base := p.Base()
	return base[:len(base)-len(p.Ext())]
}

// WithSuffix replaces the path's extension with suffix, which should include
// its leading dot.
func (p Path) WithSuffix(suffix string) Path {
	return p.Parent().Join(p.Stem() + suffix)
}

// Exists reports whether the path exists on disk.
func (p Path) Exists() bool {
	_, err := os.Stat(string(p))
	return err == nil
}

// String returns the path as a plain string.
func (p Path) String() string {
	return string(p)
}
