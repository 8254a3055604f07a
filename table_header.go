package comprez

import (
	"encoding/binary"
	"math"

	comperrors "github.com/tamirms/comprez/errors"
)

const (
	// tableMagic is "CMPZ" in little-endian.
	tableMagic = uint32(0x5A504D43)

	// tableVersion is the current table format version.
	tableVersion = uint16(0x0001)

	// tableHeaderSize is the exact size of the serialized header (32 bytes).
	tableHeaderSize = 32

	// tableFooterSize is the exact size of the serialized footer (16 bytes).
	tableFooterSize = 16

	// maxTableBits caps the data region so bit offsets fit in an int.
	maxTableBits = uint64(1) << 62
)

// tableHeader is the 32-byte table file header.
//
// Layout:
//
//	Offset  Size  Field         Type
//	0       4     Magic         0x5A504D43 ("CMPZ")
//	4       2     Version       0x0001
//	6       2     Reserved      uint16 (zero)
//	8       8     RecordCount   uint64_le
//	16      4     RecordBits    uint32_le (static schema width)
//	20      4     BatchRecords  uint32_le (multiple of 8)
//	24      8     SchemaHash    uint64_le (BinaryChunk.Fingerprint)
//
// The data region follows the header: record i occupies bits
// [i*RecordBits, (i+1)*RecordBits), most significant bit first, and the
// region is zero-padded to a whole byte.
type tableHeader struct {
	Magic        uint32 // 4 bytes: magic number
	Version      uint16 // 2 bytes: format version
	Reserved     uint16 // 2 bytes: reserved (zero)
	RecordCount  uint64 // 8 bytes: number of records
	RecordBits   uint32 // 4 bytes: bits per record
	BatchRecords uint32 // 4 bytes: records per checksum batch
	SchemaHash   uint64 // 8 bytes: schema fingerprint
}

// encodeTo serializes the header to an existing buffer.
func (h *tableHeader) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.RecordCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.RecordBits)
	binary.LittleEndian.PutUint32(buf[20:24], h.BatchRecords)
	binary.LittleEndian.PutUint64(buf[24:32], h.SchemaHash)
}

// decodeTableHeader parses a 32-byte header.
func decodeTableHeader(buf []byte) (*tableHeader, error) {
	if len(buf) < tableHeaderSize {
		return nil, comperrors.ErrTruncatedFile
	}

	h := &tableHeader{
		Magic:        binary.LittleEndian.Uint32(buf[0:4]),
		Version:      binary.LittleEndian.Uint16(buf[4:6]),
		Reserved:     binary.LittleEndian.Uint16(buf[6:8]),
		RecordCount:  binary.LittleEndian.Uint64(buf[8:16]),
		RecordBits:   binary.LittleEndian.Uint32(buf[16:20]),
		BatchRecords: binary.LittleEndian.Uint32(buf[20:24]),
		SchemaHash:   binary.LittleEndian.Uint64(buf[24:32]),
	}

	if h.Magic != tableMagic {
		return nil, comperrors.ErrInvalidMagic
	}
	if h.Version != tableVersion {
		return nil, comperrors.ErrInvalidVersion
	}
	if h.RecordCount == 0 || h.BatchRecords == 0 || h.BatchRecords%8 != 0 {
		return nil, comperrors.ErrCorruptedTable
	}
	if h.RecordBits > 0 && h.RecordCount > maxTableBits/uint64(h.RecordBits) {
		return nil, comperrors.ErrCorruptedTable
	}

	return h, nil
}

// dataBits returns the number of meaningful bits in the data region.
func (h *tableHeader) dataBits() uint64 {
	return h.RecordCount * uint64(h.RecordBits)
}

// dataBytes returns the size of the data region.
func (h *tableHeader) dataBytes() uint64 {
	return (h.dataBits() + 7) / 8
}

// fileSize returns the exact size of a complete table file.
func (h *tableHeader) fileSize() uint64 {
	return tableHeaderSize + h.dataBytes() + tableFooterSize
}

// numBatches returns the number of checksum batches.
func (h *tableHeader) numBatches() uint64 {
	b := uint64(h.BatchRecords)
	return (h.RecordCount + b - 1) / b
}

// batchRecords returns the first record of batch id and how many records
// it holds.
func (h *tableHeader) batchRecords(id uint64) (first, n uint64) {
	first = id * uint64(h.BatchRecords)
	n = min(uint64(h.BatchRecords), h.RecordCount-first)
	return first, n
}

// batchBytes returns the byte range of batch id within the data region.
// Batches hold a multiple of 8 records, so every batch starts on a byte
// boundary and only the last one can end inside a byte.
func (h *tableHeader) batchBytes(id uint64) (start, end uint64) {
	first, n := h.batchRecords(id)
	start = first * uint64(h.RecordBits) / 8
	end = ((first+n)*uint64(h.RecordBits) + 7) / 8
	return start, end
}

// tableFooter is the 16-byte table file footer.
//
// Layout:
//
//	Offset  Size  Field     Type
//	0       8     DataHash  uint64_le (xxHash64 hash-of-hashes over batches)
//	8       8     Reserved  uint64_le (zero)
type tableFooter struct {
	DataHash uint64 // 8 bytes: hash-of-hashes of the data region
	Reserved uint64 // 8 bytes: reserved for future use
}

// encodeTo serializes the footer into an existing buffer.
func (f *tableFooter) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.DataHash)
	binary.LittleEndian.PutUint64(buf[8:16], f.Reserved)
}

// decodeTableFooter parses a 16-byte footer.
func decodeTableFooter(buf []byte) (*tableFooter, error) {
	if len(buf) < tableFooterSize {
		return nil, comperrors.ErrTruncatedFile
	}
	return &tableFooter{
		DataHash: binary.LittleEndian.Uint64(buf[0:8]),
		Reserved: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// schemaHeader builds the header for a table of records described by
// schema. The schema must have a static width.
func schemaHeader(schema BinaryChunk, records uint64, batchRecords int) (tableHeader, bool) {
	w, ok := schema.Width()
	if !ok || w > math.MaxUint32 {
		return tableHeader{}, false
	}
	return tableHeader{
		Magic:        tableMagic,
		Version:      tableVersion,
		RecordCount:  records,
		RecordBits:   uint32(w),
		BatchRecords: uint32(batchRecords),
		SchemaHash:   schema.Fingerprint(),
	}, true
}
