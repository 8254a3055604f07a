//go:build linux

package comprez

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes for a table file and sets its length, so
// a full disk fails here instead of as SIGBUS on a later mmap write.
func fallocateFile(file *os.File, size int64) error {
	fd := int(file.Fd())
	// Filesystems without fallocate (NFS, some FUSE mounts) still get a sized file.
	_ = unix.Fallocate(fd, 0, 0, size)
	return unix.Ftruncate(fd, size)
}
