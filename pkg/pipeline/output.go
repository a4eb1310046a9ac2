package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	quake "github.com/perpetuallyhorni/quakefilter/internal"
)

// writeAtomic writes posts as JSON lines to a temporary file next to path and renames
// it into place, so readers never observe a partial output.
func writeAtomic(path string, posts []*quake.Post) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = quake.WriteJSONLines(w, posts); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0640); err != nil { // #nosec G302
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
