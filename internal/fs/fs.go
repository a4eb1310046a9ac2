package fs

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrUnsupportedOS is returned when the operating system is not supported.
var ErrUnsupportedOS = errors.New("unsupported operating system for disk space check")

// Available returns the bytes available to the user on the filesystem holding path.
// The path need not exist yet; its nearest existing ancestor is measured.
func Available(path string) (uint64, error) {
	dir, err := existingAncestor(path)
	if err != nil {
		return 0, err
	}
	return available(dir)
}

func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return abs, nil
		}
		abs = parent
	}
}
