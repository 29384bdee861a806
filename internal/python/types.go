package python

import "errors"

// Sentinel errors for interpreter discovery and environment inspection
var (
	ErrInterpreterNotFound = errors.New("no usable python interpreter found")
	ErrVenvMissing         = errors.New("virtual environment does not exist")
	ErrVenvCorrupt         = errors.New("virtual environment is corrupt")
)

// Interpreter describes a python binary usable for creating environments
type Interpreter struct {
	Path    string `json:"path"`    // absolute path to the binary
	Version string `json:"version"` // e.g. "3.12.4"
	Major   int    `json:"major"`
	Minor   int    `json:"minor"`
}

// AtLeast reports whether the interpreter version is >= major.minor
func (i *Interpreter) AtLeast(major, minor int) bool {
	if i.Major != major {
		return i.Major > major
	}
	return i.Minor >= minor
}
