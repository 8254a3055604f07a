package comprez

import (
	"fmt"
	"unsafe"

	comperrors "github.com/tamirms/comprez/errors"
	intbits "github.com/tamirms/comprez/internal/bits"
	"golang.org/x/exp/constraints"
)

// IntegerCodec packs a Go integer against a declared maximum M into
// max(1, ceil(log2(M+1))) bits.
//
// Without a bound the codec falls back to the full width of T in two's
// complement. That fallback exists only for standalone top-level use:
// every schema layer (records, variant payloads, slice elements, derived
// structs) rejects an integer field without a bound via CheckBound.
type IntegerCodec[T constraints.Integer] struct{}

// Integer returns the bounded-integer codec for T.
func Integer[T constraints.Integer]() IntegerCodec[T] {
	return IntegerCodec[T]{}
}

// typeBits returns the size of T in bits.
func (IntegerCodec[T]) typeBits() int {
	var zero T
	return int(unsafe.Sizeof(zero)) * 8
}

// typeMax returns the largest non-negative value T can hold.
func (c IntegerCodec[T]) typeMax() uint64 {
	var zero T
	if ^zero < 0 {
		return intbits.Mask(c.typeBits() - 1)
	}
	return intbits.Mask(c.typeBits())
}

func (c IntegerCodec[T]) width(b Bound) int {
	if !b.Set {
		return c.typeBits()
	}
	return intbits.Width(b.Max)
}

// CheckBound requires a bound that T can hold.
func (c IntegerCodec[T]) CheckBound(b Bound) error {
	if !b.Set {
		return comperrors.ErrMissingBound
	}
	if b.Max > c.typeMax() {
		return fmt.Errorf("%w: max %d exceeds %d-bit type limit %d",
			comperrors.ErrMalformedBound, b.Max, c.typeBits(), c.typeMax())
	}
	return nil
}

// MaxBinaries returns Single(w) where w is the minimal width for b.
func (c IntegerCodec[T]) MaxBinaries(b Bound) BinaryChunk {
	return Single(c.width(b))
}

// CompressToBinaries fails with ErrValueExceedsMax when v is negative or
// larger than the bound.
func (c IntegerCodec[T]) CompressToBinaries(v T, b Bound) (Compressed, error) {
	w := c.width(b)
	if b.Set {
		if v < 0 {
			return Compressed{}, fmt.Errorf("%w: %d is negative", comperrors.ErrValueExceedsMax, v)
		}
		if uint64(v) > b.Max {
			return Compressed{}, fmt.Errorf("%w: %d > %d", comperrors.ErrValueExceedsMax, v, b.Max)
		}
	}
	out := newBitBufferCap(w)
	out.AppendBits(uint64(v), w)
	return Binaries(out), nil
}

// DecompressFromBinaries reads the field width and converts to T.
func (c IntegerCodec[T]) DecompressFromBinaries(bits *BitBuffer, b Bound) (T, error) {
	u, err := bits.ReadBits(c.width(b))
	if err != nil {
		return 0, underrun(err)
	}
	return T(u), nil
}

// BoolCodec packs a bool into one bit.
type BoolCodec struct{}

// Bool returns the one-bit bool codec. It needs no bound.
func Bool() BoolCodec {
	return BoolCodec{}
}

// MaxBinaries returns Single(1).
func (BoolCodec) MaxBinaries(Bound) BinaryChunk {
	return Single(1)
}

// CompressToBinaries writes 1 for true and 0 for false.
func (BoolCodec) CompressToBinaries(v bool, _ Bound) (Compressed, error) {
	out := newBitBufferCap(1)
	if v {
		out.AppendBit(1)
	} else {
		out.AppendBit(0)
	}
	return Binaries(out), nil
}

// DecompressFromBinaries reads one bit.
func (BoolCodec) DecompressFromBinaries(bits *BitBuffer, _ Bound) (bool, error) {
	bit, err := bits.ReadBit()
	if err != nil {
		return false, underrun(err)
	}
	return bit == 1, nil
}
