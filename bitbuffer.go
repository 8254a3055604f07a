package comprez

import (
	"fmt"
	"io"
	"strings"

	"github.com/icza/bitio"
	comperrors "github.com/tamirms/comprez/errors"
	intbits "github.com/tamirms/comprez/internal/bits"
)

// BitBuffer is an ordered, growable sequence of bits with bit-level append
// and consuming reads.
//
// Bits are packed most-significant-bit first: bit 0 of the sequence is the
// high bit of the first byte. Appends go to the end of the sequence and reads
// consume from the front, so a BitBuffer is a FIFO of bits. Len reports the
// unread bits.
//
// A BitBuffer returned by Take, or built over external storage with
// NewBitView, shares memory with its source. Reads never modify storage;
// the first append to a shared buffer copies the unread bits into storage
// owned by the buffer.
//
// A BitBuffer is NOT safe for concurrent use.
type BitBuffer struct {
	buf    []byte
	end    int // bit index one past the last bit
	pos    int // bit index of the next bit to read
	shared bool
}

// NewBitBuffer returns an empty buffer.
func NewBitBuffer() *BitBuffer {
	return &BitBuffer{}
}

// newBitBufferCap returns an empty buffer with room for nbits bits.
func newBitBufferCap(nbits int) *BitBuffer {
	return &BitBuffer{buf: make([]byte, 0, (nbits+7)/8)}
}

// NewBitView returns a read view of the first nbits bits of data.
// data must hold at least nbits bits and must not be modified while the
// view is in use.
func NewBitView(data []byte, nbits int) *BitBuffer {
	if nbits < 0 || nbits > len(data)*8 {
		panic("comprez: NewBitView: nbits out of range")
	}
	return &BitBuffer{buf: data, end: nbits, shared: true}
}

// Len returns the number of unread bits.
func (b *BitBuffer) Len() int {
	return b.end - b.pos
}

// AppendBit appends a single bit. Any non-zero value appends a one.
func (b *BitBuffer) AppendBit(bit uint8) {
	b.own()
	if b.end&7 == 0 {
		b.buf = append(b.buf, 0)
	}
	if bit != 0 {
		b.buf[b.end>>3] |= 0x80 >> (b.end & 7)
	}
	b.end++
}

// AppendBits appends the width low-order bits of v, most significant first.
// Bits of v above width are ignored. width must be in [0, 64].
func (b *BitBuffer) AppendBits(v uint64, width int) {
	if width < 0 || width > 64 {
		panic("comprez: AppendBits: width out of range")
	}
	if width == 0 {
		return
	}
	b.own()
	v &= intbits.Mask(width)
	for width > 0 {
		off := b.end & 7
		if off == 0 {
			b.buf = append(b.buf, 0)
		}
		free := 8 - off
		take := min(free, width)
		chunk := byte((v >> (width - take)) & intbits.Mask(take))
		b.buf[b.end>>3] |= chunk << (free - take)
		b.end += take
		width -= take
	}
}

// AppendBuffer appends the unread bits of other. other is not consumed.
func (b *BitBuffer) AppendBuffer(other *BitBuffer) {
	if other == nil || other.Len() == 0 {
		return
	}
	if other == b {
		other = b.Clone()
	}
	b.own()
	// Fast path: both sides byte-aligned.
	if b.end&7 == 0 && other.pos&7 == 0 {
		n := other.Len()
		full := n / 8
		start := other.pos >> 3
		b.buf = append(b.buf, other.buf[start:start+full]...)
		b.end += full * 8
		if rem := n & 7; rem > 0 {
			b.AppendBits(other.peek(other.pos+full*8, rem), rem)
		}
		return
	}
	pos := other.pos
	for pos < other.end {
		w := min(64, other.end-pos)
		b.AppendBits(other.peek(pos, w), w)
		pos += w
	}
}

// ReadBit consumes and returns the next bit.
func (b *BitBuffer) ReadBit() (uint8, error) {
	if b.pos >= b.end {
		return 0, comperrors.ErrInsufficientBits
	}
	bit := (b.buf[b.pos>>3] >> (7 - b.pos&7)) & 1
	b.pos++
	return bit, nil
}

// ReadBits consumes the next width bits and returns them as an unsigned
// integer, first bit most significant. It fails with ErrInsufficientBits,
// without consuming anything, if fewer than width bits remain.
func (b *BitBuffer) ReadBits(width int) (uint64, error) {
	if width < 0 || width > 64 {
		return 0, fmt.Errorf("%w: %d", comperrors.ErrInvalidWidth, width)
	}
	if b.Len() < width {
		return 0, fmt.Errorf("%w: need %d, have %d", comperrors.ErrInsufficientBits, width, b.Len())
	}
	v := b.peek(b.pos, width)
	b.pos += width
	return v, nil
}

// Skip discards the next n bits.
func (b *BitBuffer) Skip(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: skip %d", comperrors.ErrInvalidWidth, n)
	}
	if b.Len() < n {
		return fmt.Errorf("%w: skip %d, have %d", comperrors.ErrInsufficientBits, n, b.Len())
	}
	b.pos += n
	return nil
}

// Take consumes the next n bits and returns them as an independent read view.
// Reads on the returned buffer do not affect b.
func (b *BitBuffer) Take(n int) (*BitBuffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: take %d", comperrors.ErrInvalidWidth, n)
	}
	if b.Len() < n {
		return nil, fmt.Errorf("%w: take %d, have %d", comperrors.ErrInsufficientBits, n, b.Len())
	}
	view := &BitBuffer{buf: b.buf, pos: b.pos, end: b.pos + n, shared: true}
	b.pos += n
	return view, nil
}

// Clone returns a buffer owning a copy of the unread bits.
func (b *BitBuffer) Clone() *BitBuffer {
	c := newBitBufferCap(b.Len())
	c.AppendBuffer(b)
	return c
}

// Bytes finalizes the unread bits into a byte slice, padding the last byte
// with zero bits. The returned slice is a copy.
func (b *BitBuffer) Bytes() []byte {
	n := b.Len()
	out := make([]byte, (n+7)/8)
	if n == 0 {
		return out
	}
	if b.pos&7 == 0 {
		copy(out, b.buf[b.pos>>3:])
	} else {
		pos := b.pos
		for i := 0; i < n/8; i++ {
			out[i] = byte(b.peek(pos, 8))
			pos += 8
		}
		if rem := n & 7; rem > 0 {
			out[n/8] = byte(b.peek(pos, rem) << (8 - rem))
		}
		return out
	}
	if rem := n & 7; rem > 0 {
		out[len(out)-1] &^= byte(intbits.Mask(8 - rem))
	}
	return out
}

// WriteTo writes the unread bits to w, most significant first, padded with
// zero bits to a byte boundary. The buffer is not consumed.
func (b *BitBuffer) WriteTo(w io.Writer) (int64, error) {
	bw := bitio.NewWriter(w)
	for pos := b.pos; pos < b.end; {
		n := min(64, b.end-pos)
		if err := bw.WriteBits(b.peek(pos, n), uint8(n)); err != nil {
			return 0, err
		}
		pos += n
	}
	if err := bw.Close(); err != nil {
		return 0, err
	}
	return int64((b.Len() + 7) / 8), nil
}

// String renders the unread bits as a string of '0' and '1'.
func (b *BitBuffer) String() string {
	var sb strings.Builder
	sb.Grow(b.Len())
	for pos := b.pos; pos < b.end; pos++ {
		if b.peek(pos, 1) == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// peek returns width bits starting at absolute bit index pos without
// consuming them. The caller guarantees pos+width <= end and width <= 64.
func (b *BitBuffer) peek(pos, width int) uint64 {
	var v uint64
	for width > 0 {
		off := pos & 7
		avail := 8 - off
		take := min(avail, width)
		chunk := (uint64(b.buf[pos>>3]) >> (avail - take)) & intbits.Mask(take)
		v = v<<take | chunk
		pos += take
		width -= take
	}
	return v
}

// own makes the buffer the sole owner of its storage before a write.
func (b *BitBuffer) own() {
	if !b.shared {
		return
	}
	old := *b
	b.buf = make([]byte, 0, (old.Len()+7)/8+8)
	b.pos, b.end, b.shared = 0, 0, false
	for pos := old.pos; pos < old.end; {
		w := min(64, old.end-pos)
		b.AppendBits(old.peek(pos, w), w)
		pos += w
	}
}
