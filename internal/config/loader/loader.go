// Package loader reads configuration layers from files and the
// environment.
package loader

import (
	"os"
)

// Loader produces the data of one configuration layer. A missing source is
// not an error: Load returns a nil map.
type Loader interface {
	Load() (map[string]any, error)
}

// FileSystem reads whole files. Tests substitute an in-memory version.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFS reads from the operating system.
type OSFS struct{}

// ReadFile implements FileSystem.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
