//go:build darwin

package comprez

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes for a table file with F_PREALLOCATE and
// sets its length. F_PREALLOCATE only reserves; Ftruncate sizes the file.
func fallocateFile(file *os.File, size int64) error {
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	// Best-effort reservation: a sized file is still usable without it.
	_ = unix.FcntlFstore(file.Fd(), unix.F_PREALLOCATE, &fst)
	return unix.Ftruncate(int(file.Fd()), size)
}
