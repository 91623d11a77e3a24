package sink

import (
	"os"
	"path/filepath"
)

// Host is the template's handle on the transform that runs it.
type Host struct {
	sourcePath    string
	propertyCount int
}

// NewHost creates a host for the template at sourcePath.
func NewHost(sourcePath string, propertyCount int) *Host {
	return &Host{sourcePath: sourcePath, propertyCount: propertyCount}
}

// SourcePath returns the path of the template being run.
func (h *Host) SourcePath() string {
	return h.sourcePath
}

// Directory returns the directory of the template, or the working
// directory when the template has no local path.
func (h *Host) Directory() string {
	if h.sourcePath == "" {
		dir, err := os.Getwd()
		if err != nil {
			return "."
		}
		return dir
	}
	return filepath.Dir(h.sourcePath)
}

// ResolvePath resolves name against the template directory.
func (h *Host) ResolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(h.Directory(), name)
}

// ReadRelativeFile reads a file next to the template.
func (h *Host) ReadRelativeFile(name string) (string, error) {
	data, err := os.ReadFile(h.ResolvePath(name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PropertyCount returns how many properties were bound.
func (h *Host) PropertyCount() int {
	return h.propertyCount
}
