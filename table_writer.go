package comprez

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	comperrors "github.com/tamirms/comprez/errors"
	"golang.org/x/sync/errgroup"
)

const (
	// contextCheckInterval is how often to check for context cancellation during Add.
	contextCheckInterval = 10000
)

// TableWriter builds a table file of records of one static schema.
//
// Usage:
//
//	w, err := comprez.NewTableWriter(ctx, "readings.cmpz", codec, n, comprez.WithWorkers(8))
//	if err != nil { return err }
//	defer w.Close() // Removes the partial file on error
//
//	for _, r := range readings {
//	    if err := w.Add(r); err != nil { return err }
//	}
//	return w.Finish()
//
// Records are buffered into batches. With WithWorkers(n), up to n batches
// are compressed concurrently, each straight into its own byte range of
// the memory-mapped file.
//
// A TableWriter is NOT safe for concurrent use.
type TableWriter[T any] struct {
	ctx   context.Context
	cfg   *tableConfig
	codec Codec[T]
	tf    *tableFile
	path  string

	pending    []T
	nextBatch  uint64
	added      uint64
	keyCounter int
	hashes     []uint64 // per-batch data hashes, indexed by batch
	err        error    // first failed batch; the writer accepts nothing after it

	// Parallel mode (workers > 1)
	group    *errgroup.Group
	groupCtx context.Context

	closed bool
}

// NewTableWriter creates path and prepares it to hold exactly totalRecords
// records compressed with codec. The codec's schema must have a static
// width.
func NewTableWriter[T any](ctx context.Context, path string, codec Codec[T], totalRecords uint64, opts ...TableOption) (*TableWriter[T], error) {
	if totalRecords == 0 {
		return nil, comperrors.ErrEmptyTable
	}
	if codec == nil {
		return nil, fmt.Errorf("%w: nil codec", comperrors.ErrUnsupportedType)
	}

	cfg := defaultTableConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	schema := codec.MaxBinaries(NoBound)
	hdr, ok := schemaHeader(schema, totalRecords, cfg.batchRecords)
	if !ok {
		return nil, fmt.Errorf("%w: %s", comperrors.ErrDynamicSchema, schema)
	}
	if hdr.RecordBits > 0 && totalRecords > maxTableBits/uint64(hdr.RecordBits) {
		return nil, comperrors.ErrTooManyRecords
	}

	tf, err := createTableFile(path, hdr)
	if err != nil {
		return nil, fmt.Errorf("create table file: %w", err)
	}

	numBatches := hdr.numBatches()
	workers := cfg.workers
	if workers <= 0 {
		workers = 1 // Default to single-threaded
	}
	if uint64(workers) > numBatches {
		workers = int(numBatches)
	}

	w := &TableWriter[T]{
		ctx:     ctx,
		cfg:     cfg,
		codec:   codec,
		tf:      tf,
		path:    path,
		pending: make([]T, 0, cfg.batchRecords),
		hashes:  make([]uint64, numBatches),
	}
	if workers > 1 {
		w.group, w.groupCtx = errgroup.WithContext(ctx)
		w.group.SetLimit(workers)
	}
	return w, nil
}

// Add appends one record.
func (w *TableWriter[T]) Add(v T) error {
	if w.closed {
		return comperrors.ErrWriterClosed
	}
	if w.err != nil {
		return w.err
	}
	if w.added >= w.tf.header.RecordCount {
		return comperrors.ErrTooManyRecords
	}

	w.keyCounter++
	if w.keyCounter >= contextCheckInterval {
		w.keyCounter = 0
		if err := w.ctx.Err(); err != nil {
			return err
		}
		// A failed worker cancels groupCtx; surface its error.
		if w.group != nil && w.groupCtx.Err() != nil {
			w.err = w.group.Wait()
			return w.err
		}
	}

	w.pending = append(w.pending, v)
	w.added++
	if len(w.pending) == w.cfg.batchRecords {
		return w.flushBatch()
	}
	return nil
}

// flushBatch compresses the pending records, inline or on a worker.
// errgroup's limit blocks here while all workers are busy.
func (w *TableWriter[T]) flushBatch() error {
	batch := w.pending
	id := w.nextBatch
	w.nextBatch++
	w.pending = make([]T, 0, w.cfg.batchRecords)

	if w.group == nil {
		if err := w.writeBatch(id, batch); err != nil {
			w.err = err
			return err
		}
		return nil
	}
	w.group.Go(func() error {
		if err := w.groupCtx.Err(); err != nil {
			return err
		}
		return w.writeBatch(id, batch)
	})
	return nil
}

// writeBatch compresses batch id into its byte range of the data region
// and records the range's hash. Batches touch disjoint ranges, so workers
// never share bytes.
func (w *TableWriter[T]) writeBatch(id uint64, batch []T) error {
	first, _ := w.tf.header.batchRecords(id)
	recordBits := int(w.tf.header.RecordBits)

	out := newBitBufferCap(len(batch) * recordBits)
	for i, v := range batch {
		c, err := w.codec.CompressToBinaries(v, NoBound)
		if err != nil {
			return fmt.Errorf("record %d: %w", first+uint64(i), err)
		}
		if c.BitLen() != recordBits {
			return fmt.Errorf("%w: record %d packed to %d bits, schema width is %d",
				comperrors.ErrDynamicSchema, first+uint64(i), c.BitLen(), recordBits)
		}
		c.appendTo(out)
	}

	region := w.tf.batchRegion(id)
	copy(region, out.Bytes())
	w.hashes[id] = xxhash.Sum64(region)
	return nil
}

// Finish flushes the last batch, waits for the workers and completes the
// file. The number of records added must equal the declared total.
func (w *TableWriter[T]) Finish() error {
	if w.closed {
		return comperrors.ErrWriterClosed
	}
	w.closed = true

	if w.err != nil {
		return errors.Join(w.err, w.cleanup())
	}
	if len(w.pending) > 0 {
		if err := w.flushBatch(); err != nil {
			return errors.Join(err, w.cleanup())
		}
	}
	if w.group != nil {
		if err := w.group.Wait(); err != nil {
			return errors.Join(err, w.cleanup())
		}
	}
	if err := w.ctx.Err(); err != nil {
		return errors.Join(err, w.cleanup())
	}
	if w.added != w.tf.header.RecordCount {
		primaryErr := fmt.Errorf("%w: declared %d, added %d",
			comperrors.ErrRecordCountMismatch, w.tf.header.RecordCount, w.added)
		return errors.Join(primaryErr, w.cleanup())
	}

	if err := w.tf.finalize(foldBatchHashes(w.hashes)); err != nil {
		return errors.Join(err, removeFile(w.path))
	}
	return nil
}

// Close aborts an unfinished build and removes the partial file.
// It is a no-op after Finish. Idempotent.
func (w *TableWriter[T]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.cleanup()
}

// cleanup stops the workers, releases the file and deletes it.
func (w *TableWriter[T]) cleanup() error {
	if w.group != nil {
		_ = w.group.Wait() // Only waiting for workers to exit; their error is reported elsewhere
	}
	return errors.Join(w.tf.close(), removeFile(w.path))
}

// removeFile removes path, ignoring a file that is already gone.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// foldBatchHashes folds per-batch data hashes into the footer DataHash.
// hashes must be in batch order.
func foldBatchHashes(hashes []uint64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, h := range hashes {
		binary.LittleEndian.PutUint64(buf[:], h)
		if _, err := d.Write(buf[:]); err != nil {
			panic("hash.Hash.Write returned unexpected error: " + err.Error())
		}
	}
	return d.Sum64()
}

// tableFile writes a table file using mmap-based zero-copy writes.
// File layout: [Header 32B][Data region][Footer 16B]
type tableFile struct {
	file *os.File
	mmap mmap.MMap // Memory-mapped region
	data []byte    // View into mmap for direct writes

	header tableHeader
	size   uint64
}

// createTableFile creates, pre-allocates and maps a file sized for h.
func createTableFile(path string, h tableHeader) (*tableFile, error) {
	size := h.fileSize()

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create table file: %w", err)
	}

	// Pre-allocate disk blocks to prevent SIGBUS on disk full
	if err := fallocateFile(file, int64(size)); err != nil {
		primaryErr := fmt.Errorf("failed to allocate disk space: %w", err)
		return nil, errors.Join(primaryErr, file.Close())
	}

	mm, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("failed to mmap file: %w", err)
		return nil, errors.Join(primaryErr, file.Close())
	}

	tf := &tableFile{
		file:   file,
		mmap:   mm,
		data:   []byte(mm),
		header: h,
		size:   size,
	}

	// On Linux 5.14+, uses MADV_POPULATE_WRITE. No-op on other platforms.
	prefaultRegion(tf.data[tableHeaderSize : tableHeaderSize+h.dataBytes()])

	return tf, nil
}

// batchRegion returns the mmap slice backing batch id.
func (tf *tableFile) batchRegion(id uint64) []byte {
	start, end := tf.header.batchBytes(id)
	return tf.data[tableHeaderSize+start : tableHeaderSize+end]
}

// finalize writes header and footer and closes the file.
// On error, delegates to close() for idempotent cleanup.
func (tf *tableFile) finalize(dataHash uint64) error {
	tf.header.encodeTo(tf.data[:tableHeaderSize])
	ftr := tableFooter{DataHash: dataHash}
	ftr.encodeTo(tf.data[tf.size-tableFooterSize:])

	// Flush dirty pages to file (ensures writes visible before unmap)
	if err := tf.mmap.Flush(); err != nil {
		primaryErr := fmt.Errorf("mmap flush failed: %w", err)
		return errors.Join(primaryErr, tf.close())
	}

	unmapErr := tf.mmap.Unmap()
	tf.mmap = nil
	if unmapErr != nil {
		primaryErr := fmt.Errorf("mmap unmap failed: %w", unmapErr)
		return errors.Join(primaryErr, tf.close())
	}

	closeErr := tf.file.Close()
	tf.file = nil
	return closeErr
}

// close closes the file without finalizing (for error cleanup).
// Idempotent: safe to call multiple times.
func (tf *tableFile) close() error {
	var unmapErr error
	if tf.mmap != nil {
		unmapErr = tf.mmap.Unmap()
		tf.mmap = nil
	}
	var closeErr error
	if tf.file != nil {
		closeErr = tf.file.Close()
		tf.file = nil
	}
	return errors.Join(unmapErr, closeErr)
}
