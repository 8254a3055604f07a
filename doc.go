// Package comprez packs values of bounded integer types into the minimum
// number of bits their declared bounds allow, with no per-value metadata on
// the wire.
//
// An integer declared with maximum M occupies max(1, ceil(log2(M+1))) bits.
// Records concatenate their fields' bits in declaration order, tagged
// variants prefix the active case's payload with a compact discriminant, and
// slices prefix their elements with a length. Only the final value is padded
// to a whole byte. Decoding is driven entirely by the schema, which is a pure
// function of the type and its bounds (see BinaryChunk).
//
// # Basic Usage
//
// Hand-written codec:
//
//	type Pair struct{ A, B uint16 }
//
//	var pairCodec = comprez.MustRecord(
//	    comprez.Field("a", comprez.Integer[uint16](), comprez.Max(5),
//	        func(p *Pair) *uint16 { return &p.A }),
//	    comprez.Field("b", comprez.Integer[uint16](), comprez.Max(300),
//	        func(p *Pair) *uint16 { return &p.B }),
//	)
//
//	data, err := comprez.CompressBytes(pairCodec, Pair{A: 5, B: 300}) // 0xB2 0xC0
//
// Derived codec, from struct tags:
//
//	type Pair struct {
//	    A uint16 `comprez:"max=5"`
//	    B uint16 `comprez:"max=300"`
//	}
//
//	codec, err := comprez.Derive[Pair]()
//
// # Struct Tags
//
// Derive reads the `comprez` tag of every exported field:
//
//	comprez:"max=M"               integer bound (decimal, 0x or 0b)
//	comprez:"max=M,len=N"         slice of at most N elements, each <= M
//	comprez:"max=M,len=N,slots"   same, padded to N slots for a static width
//	comprez:"-"                   field is not encoded
//
// Integer and slice-of-integer fields must declare max; slices must declare
// len. Bools, arrays and nested structs need no tag. Fields of any type with
// a codec passed to Register, typically a variant, use that codec.
//
// # Tables
//
// A schema with a static width can be stored in a table file: N records
// packed back to back, readable at random through a memory map. See
// NewTableWriter and OpenTable.
//
// # Package Structure
//
//   - Bit storage: bitbuffer.go (BitBuffer), compressed.go (Compressed)
//   - Schema: chunk.go (BinaryChunk), codec.go (Codec, Bound, Compress)
//   - Codecs: integer.go, record.go, variant.go, slice.go
//   - Derivation: derive.go (Derive, Register), tag.go (tag parsing)
//   - Tables: table_header.go, table_writer.go, table.go, table_verify.go
//   - Configuration: options.go (TableOption, With* functions)
//   - Platform: fallocate_*.go, fadvise_*.go, prefault_*.go
package comprez
