//go:build !linux && !darwin

package comprez

import "os"

// fallocateFile sizes a table file. Without a native preallocation call the
// blocks are not reserved, so a full disk can still surface during writes.
func fallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}
