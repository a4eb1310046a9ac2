//go:build linux || darwin || freebsd || openbsd || netbsd

package fs

import "golang.org/x/sys/unix"

// available reports the free blocks usable by non-root users, in bytes.
func available(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil // #nosec G115
}
