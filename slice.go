package comprez

import (
	"fmt"

	comperrors "github.com/tamirms/comprez/errors"
	intbits "github.com/tamirms/comprez/internal/bits"
)

// SliceOption configures a slice codec.
type SliceOption func(*sliceConfig)

type sliceConfig struct {
	fixedSlots bool
}

// WithFixedSlots pads every slice to maxLen element slots, trading space
// for a static width. The element codec must have a static width.
func WithFixedSlots() SliceOption {
	return func(c *sliceConfig) {
		c.fixedSlots = true
	}
}

// SliceCodec encodes a slice whose elements share one declared bound. The
// bound passed to the slice is forwarded unchanged to every element; it
// constrains element values, never the length.
//
// Wire layout (v1):
//
//	[len: Width(maxLen) bits][elem 0]...[elem len-1]
//
// With WithFixedSlots the elements are followed by maxLen-len zero-filled
// slots of the element's static width, so the slice always occupies
// Width(maxLen) + maxLen*elemWidth bits.
type SliceCodec[E any] struct {
	elem     Codec[E]
	maxLen   int
	lenWidth int
	fixed    bool
}

// Slice returns a codec for []E holding at most maxLen elements.
func Slice[E any](elem Codec[E], maxLen int, opts ...SliceOption) (*SliceCodec[E], error) {
	cfg := &sliceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if elem == nil {
		return nil, fmt.Errorf("%w: slice has no element codec", comperrors.ErrUnsupportedType)
	}
	if maxLen < 0 {
		return nil, fmt.Errorf("%w: negative maximum length %d", comperrors.ErrMissingLength, maxLen)
	}
	return &SliceCodec[E]{
		elem:     elem,
		maxLen:   maxLen,
		lenWidth: intbits.Width(uint64(maxLen)),
		fixed:    cfg.fixedSlots,
	}, nil
}

// MustSlice is like Slice but panics on a schema error.
func MustSlice[E any](elem Codec[E], maxLen int, opts ...SliceOption) *SliceCodec[E] {
	sc, err := Slice(elem, maxLen, opts...)
	if err != nil {
		panic(err)
	}
	return sc
}

// MaxLen returns the declared maximum length.
func (sc *SliceCodec[E]) MaxLen() int {
	return sc.maxLen
}

// CheckBound forwards b to the element codec. Fixed-slot slices also
// require the element to have a static width under b.
func (sc *SliceCodec[E]) CheckBound(b Bound) error {
	if err := checkBound(sc.elem, b); err != nil {
		return fmt.Errorf("slice element: %w", err)
	}
	if sc.fixed && !sc.elem.MaxBinaries(b).Static() {
		return comperrors.ErrUnsizedElement
	}
	return nil
}

// MaxBinaries returns Delimiter for length-prefixed slices, and
// Nested(Single(lenWidth), elem x maxLen) for fixed-slot slices.
func (sc *SliceCodec[E]) MaxBinaries(b Bound) BinaryChunk {
	if !sc.fixed {
		return Delimiter()
	}
	children := make([]BinaryChunk, 0, sc.maxLen+1)
	children = append(children, Single(sc.lenWidth))
	for range sc.maxLen {
		children = append(children, sc.elem.MaxBinaries(b))
	}
	return Nested(children...)
}

// slotWidth returns the static element width for fixed-slot padding.
func (sc *SliceCodec[E]) slotWidth(b Bound) (int, error) {
	w, ok := sc.elem.MaxBinaries(b).Width()
	if !ok {
		return 0, comperrors.ErrUnsizedElement
	}
	return w, nil
}

// CompressToBinaries writes the length prefix and each element under b.
// A slice longer than maxLen fails with ErrValueExceedsMax.
func (sc *SliceCodec[E]) CompressToBinaries(vs []E, b Bound) (Compressed, error) {
	if len(vs) > sc.maxLen {
		return Compressed{}, fmt.Errorf("%w: slice length %d > %d", comperrors.ErrValueExceedsMax, len(vs), sc.maxLen)
	}
	out := NewBitBuffer()
	out.AppendBits(uint64(len(vs)), sc.lenWidth)
	for i, v := range vs {
		ev, err := sc.elem.CompressToBinaries(v, b)
		if err != nil {
			return Compressed{}, fmt.Errorf("element %d: %w", i, err)
		}
		ev.appendTo(out)
	}
	if sc.fixed {
		w, err := sc.slotWidth(b)
		if err != nil {
			return Compressed{}, err
		}
		appendZeros(out, (sc.maxLen-len(vs))*w)
	}
	return Binaries(out), nil
}

// DecompressFromBinaries reads the length prefix and that many elements.
// A prefix larger than maxLen fails with ErrInvalidLength.
func (sc *SliceCodec[E]) DecompressFromBinaries(bits *BitBuffer, b Bound) ([]E, error) {
	n, err := bits.ReadBits(sc.lenWidth)
	if err != nil {
		return nil, underrun(err)
	}
	if n > uint64(sc.maxLen) {
		return nil, fmt.Errorf("%w: %d > %d", comperrors.ErrInvalidLength, n, sc.maxLen)
	}
	vs := make([]E, n)
	for i := range vs {
		v, err := sc.elem.DecompressFromBinaries(bits, b)
		if err != nil {
			return nil, underrun(fmt.Errorf("element %d: %w", i, err))
		}
		vs[i] = v
	}
	if sc.fixed {
		w, err := sc.slotWidth(b)
		if err != nil {
			return nil, err
		}
		if err := bits.Skip((sc.maxLen - int(n)) * w); err != nil {
			return nil, underrun(err)
		}
	}
	return vs, nil
}

// appendZeros appends n zero bits to dst.
func appendZeros(dst *BitBuffer, n int) {
	for n > 0 {
		w := min(64, n)
		dst.AppendBits(0, w)
		n -= w
	}
}
