//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !windows

package fs

// available is not implemented on this platform.
func available(_ string) (uint64, error) {
	return 0, ErrUnsupportedOS
}
