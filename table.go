package comprez

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"os"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	comperrors "github.com/tamirms/comprez/errors"
)

// Table is a read-only, random-access view of a table file.
//
// Thread Safety:
// - Get, All, Verify and other read methods are safe for concurrent use
// - Close is NOT safe to call concurrently with reads
// - Close must only be called after all reads have completed
type Table[T any] struct {
	// Memory map (no file handle needed after mmap)
	mmap mmap.MMap
	data []byte

	header *tableHeader
	codec  Codec[T]
	region []byte // data region, header and footer excluded

	closed atomic.Bool // Atomic for lock-free close check
}

// TableStats holds table statistics.
type TableStats struct {
	Records       uint64
	RecordBits    int
	Batches       uint64
	DataBytes     uint64
	FileSize      int64
	BitsPerRecord float64 // file bits per record, header and footer included
}

// OpenTable opens a table file for reading with codec, which must describe
// the same schema the table was written with.
// It opens the file, memory-maps it, and closes the file descriptor.
func OpenTable[T any](path string, codec Codec[T]) (*Table[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table file: %w", err)
	}
	defer file.Close()
	return OpenTableFile(file, codec)
}

// OpenTableFile opens a table by memory-mapping the given file.
// The caller is responsible for closing f. Per POSIX mmap(2), f may be
// closed immediately after OpenTableFile returns.
func OpenTableFile[T any](f *os.File, codec Codec[T]) (*Table[T], error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat table file: %w", err)
	}
	if stat.Size() < tableHeaderSize+tableFooterSize {
		return nil, comperrors.ErrTruncatedFile
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap table file: %w", err)
	}

	t := &Table[T]{
		mmap:  mm,
		data:  []byte(mm),
		codec: codec,
	}
	if err := t.initFromData(); err != nil {
		return nil, errors.Join(err, t.Close())
	}
	return t, nil
}

// OpenTableBytes reads a table from an in-memory byte slice.
// No file is opened or memory-mapped; Close only marks the table closed.
// The caller must ensure data is not modified while the Table is in use.
func OpenTableBytes[T any](data []byte, codec Codec[T]) (*Table[T], error) {
	if len(data) < tableHeaderSize+tableFooterSize {
		return nil, comperrors.ErrTruncatedFile
	}
	t := &Table[T]{
		data:  data,
		codec: codec,
	}
	if err := t.initFromData(); err != nil {
		return nil, err
	}
	return t, nil
}

// initFromData parses the header and checks it against the codec.
// Footer decoding is deferred to Verify.
func (t *Table[T]) initFromData() error {
	if t.codec == nil {
		return fmt.Errorf("%w: nil codec", comperrors.ErrUnsupportedType)
	}

	hdr, err := decodeTableHeader(t.data[:tableHeaderSize])
	if err != nil {
		return err
	}

	schema := t.codec.MaxBinaries(NoBound)
	w, ok := schema.Width()
	if !ok {
		return fmt.Errorf("%w: %s", comperrors.ErrDynamicSchema, schema)
	}
	if uint64(w) != uint64(hdr.RecordBits) || schema.Fingerprint() != hdr.SchemaHash {
		return fmt.Errorf("%w: table has %d-bit records, codec schema %s is %d bits",
			comperrors.ErrSchemaMismatch, hdr.RecordBits, schema, w)
	}

	size := uint64(len(t.data))
	switch want := hdr.fileSize(); {
	case size < want:
		return comperrors.ErrTruncatedFile
	case size > want:
		return comperrors.ErrCorruptedTable
	}

	t.header = hdr
	t.region = t.data[tableHeaderSize : tableHeaderSize+hdr.dataBytes()]
	return nil
}

// Close releases the table's resources. Idempotent.
func (t *Table[T]) Close() error {
	if t.closed.Swap(true) {
		return nil // Already closed
	}

	if t.mmap != nil {
		return t.mmap.Unmap()
	}
	return nil
}

// Len returns the number of records.
func (t *Table[T]) Len() uint64 {
	return t.header.RecordCount
}

// RecordBits returns the packed width of one record.
func (t *Table[T]) RecordBits() int {
	return int(t.header.RecordBits)
}

// Get decodes record i.
func (t *Table[T]) Get(i uint64) (T, error) {
	var zero T
	if t.closed.Load() {
		return zero, comperrors.ErrTableClosed
	}
	if i >= t.header.RecordCount {
		return zero, fmt.Errorf("%w: %d of %d", comperrors.ErrIndexOutOfRange, i, t.header.RecordCount)
	}
	return t.get(i)
}

func (t *Table[T]) get(i uint64) (T, error) {
	w := int(t.header.RecordBits)
	start := int(i) * w
	view := &BitBuffer{buf: t.region, pos: start, end: start + w, shared: true}
	v, err := t.codec.DecompressFromBinaries(view, NoBound)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: record %d: %w", comperrors.ErrCorruptedTable, i, err)
	}
	return v, nil
}

// All iterates over the records in order. Iteration stops after the first
// error, which is yielded with a zero value.
func (t *Table[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if t.closed.Load() {
			var zero T
			yield(zero, comperrors.ErrTableClosed)
			return
		}
		for i := range t.header.RecordCount {
			v, err := t.get(i)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// Stats returns statistics for the table.
func (t *Table[T]) Stats() *TableStats {
	fileSize := int64(len(t.data))
	return &TableStats{
		Records:       t.header.RecordCount,
		RecordBits:    int(t.header.RecordBits),
		Batches:       t.header.numBatches(),
		DataBytes:     t.header.dataBytes(),
		FileSize:      fileSize,
		BitsPerRecord: float64(fileSize*8) / float64(t.header.RecordCount),
	}
}

// Verify checks the data region against the footer's hash-of-hashes:
// H(H(batch 0) || H(batch 1) || ...), folded the same way as at build time.
func (t *Table[T]) Verify() error {
	if t.closed.Load() {
		return comperrors.ErrTableClosed
	}

	// Lazy footer decode: only touched by Verify, not Open.
	ft, err := decodeTableFooter(t.data[len(t.data)-tableFooterSize:])
	if err != nil {
		return err
	}

	got, err := hashDataRegion(t.header, func(start, end uint64) ([]byte, error) {
		return t.region[start:end], nil
	})
	if err != nil {
		return err
	}
	if got != ft.DataHash {
		return comperrors.ErrChecksumFailed
	}
	return nil
}

// hashDataRegion recomputes the footer DataHash. batch returns the bytes of
// the data region in [start, end); it is called once per batch, in order.
func hashDataRegion(h *tableHeader, batch func(start, end uint64) ([]byte, error)) (uint64, error) {
	d := xxhash.New()
	var buf [8]byte
	for id := range h.numBatches() {
		region, err := batch(h.batchBytes(id))
		if err != nil {
			return 0, err
		}
		binary.LittleEndian.PutUint64(buf[:], xxhash.Sum64(region))
		if _, err := d.Write(buf[:]); err != nil {
			panic("hash.Hash.Write returned unexpected error: " + err.Error())
		}
	}
	return d.Sum64(), nil
}
