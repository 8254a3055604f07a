// Package errors defines all exported error sentinels for the comprez library.
//
// This is the single source of truth for error values. The top-level comprez
// package and its internal packages import from here, so errors.Is checks
// work across package boundaries.
package errors

import "errors"

// Schema errors. Returned once, when a codec is constructed or derived.
var (
	ErrMissingBound    = errors.New("comprez: integer field has no declared bound")
	ErrDuplicateBound  = errors.New("comprez: field declares more than one bound")
	ErrMalformedBound  = errors.New("comprez: malformed bound")
	ErrMissingLength   = errors.New("comprez: slice field has no declared maximum length")
	ErrUnsupportedType = errors.New("comprez: unsupported type")
	ErrDuplicateField  = errors.New("comprez: duplicate or empty field name")
	ErrNoCases         = errors.New("comprez: variant declares no cases")
	ErrDuplicateCase   = errors.New("comprez: duplicate or empty case name")
	ErrTooManyCases    = errors.New("comprez: variant has more cases than its tag width can address")
	ErrUnsizedElement  = errors.New("comprez: fixed-slot slice element has no static width")
)

// Compress errors
var (
	ErrValueExceedsMax = errors.New("comprez: value exceeds declared maximum")
)

// Decompress errors
var (
	ErrWrongBytesLength = errors.New("comprez: input shorter than schema requires")
	ErrUnknownVariant   = errors.New("comprez: unknown variant")
	ErrInsufficientBits = errors.New("comprez: insufficient bits in buffer")
	ErrInvalidLength    = errors.New("comprez: length prefix exceeds declared maximum")
	ErrInvalidWidth     = errors.New("comprez: bit width out of range [0, 64]")
)

// Table build errors
var (
	ErrDynamicSchema       = errors.New("comprez: schema has no static width")
	ErrEmptyTable          = errors.New("comprez: cannot build table with zero records")
	ErrTooManyRecords      = errors.New("comprez: more records added than declared")
	ErrRecordCountMismatch = errors.New("comprez: record count mismatch")
	ErrWriterClosed        = errors.New("comprez: table writer is closed")
)

// Table read errors
var (
	ErrInvalidMagic    = errors.New("comprez: invalid magic number")
	ErrInvalidVersion  = errors.New("comprez: unsupported version")
	ErrTruncatedFile   = errors.New("comprez: table file is truncated")
	ErrCorruptedTable  = errors.New("comprez: table data is corrupted")
	ErrChecksumFailed  = errors.New("comprez: table checksum verification failed")
	ErrSchemaMismatch  = errors.New("comprez: table schema does not match codec")
	ErrIndexOutOfRange = errors.New("comprez: record index out of range")
	ErrTableClosed     = errors.New("comprez: table is closed")
)
