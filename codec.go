package comprez

import (
	"errors"
	"fmt"
	"strconv"

	comperrors "github.com/tamirms/comprez/errors"
)

// Bound is an optional inclusive upper limit declared on a field.
// The zero value is NoBound.
type Bound struct {
	Max uint64
	Set bool
}

// NoBound is the absent bound.
var NoBound = Bound{}

// Max declares an inclusive upper bound m.
func Max(m uint64) Bound {
	return Bound{Max: m, Set: true}
}

// String returns "max=M" or "none".
func (b Bound) String() string {
	if !b.Set {
		return "none"
	}
	return "max=" + strconv.FormatUint(b.Max, 10)
}

// Codec is the compression capability of a type T.
//
// The three methods must agree: for any bound b, CompressToBinaries writes
// exactly the layout described by MaxBinaries(b), and DecompressFromBinaries
// consumes exactly what CompressToBinaries wrote. MaxBinaries must be a pure
// function of the codec and b.
//
// Implementations must be safe for concurrent use.
type Codec[T any] interface {
	// MaxBinaries returns the schema tree of T under bound b.
	MaxBinaries(b Bound) BinaryChunk

	// CompressToBinaries packs v into an unaligned bit sequence.
	CompressToBinaries(v T, b Bound) (Compressed, error)

	// DecompressFromBinaries consumes one value of T from bits.
	DecompressFromBinaries(bits *BitBuffer, b Bound) (T, error)
}

// BoundChecker is implemented by codecs that restrict the bounds a schema
// may declare for them. Record, variant, slice and derived schemas call
// CheckBound once at construction.
type BoundChecker interface {
	CheckBound(b Bound) error
}

// checkBound runs c's BoundChecker, if it has one.
func checkBound(c any, b Bound) error {
	if bc, ok := c.(BoundChecker); ok {
		return bc.CheckBound(b)
	}
	return nil
}

// Compress packs v with c and finalizes the result to bytes.
func Compress[T any](c Codec[T], v T) (Compressed, error) {
	bin, err := c.CompressToBinaries(v, NoBound)
	if err != nil {
		return Compressed{}, err
	}
	return Bytes(bin.ToBytes()), nil
}

// Decompress reconstructs a value of T from data. Trailing padding bits
// are ignored.
func Decompress[T any](c Codec[T], data Compressed) (T, error) {
	return c.DecompressFromBinaries(data.ToBinaries(), NoBound)
}

// CompressBytes is Compress returning the finalized bytes directly.
func CompressBytes[T any](c Codec[T], v T) ([]byte, error) {
	out, err := Compress(c, v)
	if err != nil {
		return nil, err
	}
	return out.ToBytes(), nil
}

// DecompressBytes is Decompress over a byte slice.
func DecompressBytes[T any](c Codec[T], data []byte) (T, error) {
	return Decompress(c, Bytes(data))
}

// underrun converts a buffer underrun into the decode error reported at
// codec boundaries. The result matches both ErrWrongBytesLength and
// ErrInsufficientBits.
func underrun(err error) error {
	if errors.Is(err, comperrors.ErrInsufficientBits) && !errors.Is(err, comperrors.ErrWrongBytesLength) {
		return fmt.Errorf("%w: %w", comperrors.ErrWrongBytesLength, err)
	}
	return err
}

// decodeRegion decodes one child of a composite value. A child whose chunk
// has a static width is decoded from a region of exactly that many bits and
// must consume all of it; any other child decodes straight from bits.
func decodeRegion(bits *BitBuffer, chunk BinaryChunk, name string, decode func(*BitBuffer) error) error {
	w, ok := chunk.Width()
	if !ok {
		return decode(bits)
	}
	region, err := bits.Take(w)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := decode(region); err != nil {
		return err
	}
	if region.Len() != 0 {
		return fmt.Errorf("%w: %s left %d of %d bits unread",
			comperrors.ErrWrongBytesLength, name, region.Len(), w)
	}
	return nil
}
