package comprez

import (
	"fmt"
	"io"
	"os"

	comperrors "github.com/tamirms/comprez/errors"
)

// VerifyTableFile checks a table file's integrity without a codec and
// without mapping it: the header is validated and the data region is
// streamed once, batch by batch, against the footer hash.
func VerifyTableFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open table file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat table file: %w", err)
	}
	size := stat.Size()
	if size < tableHeaderSize+tableFooterSize {
		return comperrors.ErrTruncatedFile
	}

	var hbuf [tableHeaderSize]byte
	if _, err := f.ReadAt(hbuf[:], 0); err != nil {
		return fmt.Errorf("read table header: %w", err)
	}
	hdr, err := decodeTableHeader(hbuf[:])
	if err != nil {
		return err
	}
	switch want := hdr.fileSize(); {
	case uint64(size) < want:
		return comperrors.ErrTruncatedFile
	case uint64(size) > want:
		return comperrors.ErrCorruptedTable
	}

	var fbuf [tableFooterSize]byte
	if _, err := f.ReadAt(fbuf[:], size-tableFooterSize); err != nil {
		return fmt.Errorf("read table footer: %w", err)
	}
	ft, err := decodeTableFooter(fbuf[:])
	if err != nil {
		return err
	}

	fadviseSequential(int(f.Fd()), tableHeaderSize, int64(hdr.dataBytes()))

	// Every batch but the last has the same byte length, so one buffer serves.
	first, last := hdr.batchBytes(0)
	buf := make([]byte, last-first)
	r := io.NewSectionReader(f, tableHeaderSize, int64(hdr.dataBytes()))
	got, err := hashDataRegion(hdr, func(start, end uint64) ([]byte, error) {
		region := buf[:end-start]
		if _, err := io.ReadFull(r, region); err != nil {
			return nil, fmt.Errorf("read table data: %w", err)
		}
		return region, nil
	})
	if err != nil {
		return err
	}
	if got != ft.DataHash {
		return comperrors.ErrChecksumFailed
	}
	return nil
}
