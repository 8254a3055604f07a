//go:build linux

package comprez

import "golang.org/x/sys/unix"

// fadviseSequential hints to the kernel that [offset, offset+length) will be
// read once, front to back. VerifyTableFile uses it before streaming the data
// region. Best-effort: errors are silently ignored.
func fadviseSequential(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_SEQUENTIAL)
}
