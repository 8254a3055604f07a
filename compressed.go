package comprez

import (
	"io"
)

// Compressed is the output of a codec: either a finalized, byte-aligned
// sequence (Bytes) that is safe to persist, or an unaligned bit sequence
// (Binaries) used while composing nested values.
//
// The zero value is an empty Binaries.
type Compressed struct {
	bytes []byte
	bits  *BitBuffer
	final bool
}

// Bytes wraps a finalized byte sequence. data is not copied.
func Bytes(data []byte) Compressed {
	return Compressed{bytes: data, final: true}
}

// Binaries wraps an unaligned bit sequence. bits is not copied.
func Binaries(bits *BitBuffer) Compressed {
	return Compressed{bits: bits}
}

// IsBytes reports whether c is finalized.
func (c Compressed) IsBytes() bool {
	return c.final
}

// BitLen returns the number of bits held. For Bytes this includes padding.
func (c Compressed) BitLen() int {
	if c.final {
		return len(c.bytes) * 8
	}
	if c.bits == nil {
		return 0
	}
	return c.bits.Len()
}

// Combine returns a new Binaries holding c's bits followed by other's bits.
// Neither operand is modified. A Bytes operand contributes all of its bits,
// padding included.
func (c Compressed) Combine(other Compressed) Compressed {
	out := newBitBufferCap(c.BitLen() + other.BitLen())
	c.appendTo(out)
	other.appendTo(out)
	return Binaries(out)
}

// ToBytes finalizes c. Binaries are padded with zero bits to the next byte
// boundary; Bytes are returned as is.
func (c Compressed) ToBytes() []byte {
	if c.final {
		return c.bytes
	}
	if c.bits == nil {
		return []byte{}
	}
	return c.bits.Bytes()
}

// ToBinaries returns a fresh read view over c's bits. Reading from the view
// does not consume c.
func (c Compressed) ToBinaries() *BitBuffer {
	if c.final {
		return NewBitView(c.bytes, len(c.bytes)*8)
	}
	if c.bits == nil {
		return NewBitBuffer()
	}
	return &BitBuffer{buf: c.bits.buf, pos: c.bits.pos, end: c.bits.end, shared: true}
}

// WriteTo writes the finalized form of c to w.
func (c Compressed) WriteTo(w io.Writer) (int64, error) {
	if c.final {
		n, err := w.Write(c.bytes)
		return int64(n), err
	}
	if c.bits == nil {
		return 0, nil
	}
	return c.bits.WriteTo(w)
}

// appendTo appends c's bits to dst.
func (c Compressed) appendTo(dst *BitBuffer) {
	if c.final {
		dst.AppendBuffer(NewBitView(c.bytes, len(c.bytes)*8))
		return
	}
	dst.AppendBuffer(c.bits)
}
