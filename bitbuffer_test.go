package comprez

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/icza/bitio"
	comperrors "github.com/tamirms/comprez/errors"
)

func TestBitBufferAppendRead(t *testing.T) {
	rng := newTestRNG(t)
	type item struct {
		v uint64
		w int
	}
	var items []item
	b := NewBitBuffer()
	total := 0
	for range 2000 {
		w := rng.IntN(65)
		v := rng.Uint64()
		if w < 64 {
			v &= (uint64(1) << w) - 1
		}
		items = append(items, item{v, w})
		b.AppendBits(v, w)
		total += w
	}
	if b.Len() != total {
		t.Fatalf("Len = %d, want %d", b.Len(), total)
	}
	for i, it := range items {
		got, err := b.ReadBits(it.w)
		if err != nil {
			t.Fatalf("item %d: ReadBits(%d): %v", i, it.w, err)
		}
		if got != it.v {
			t.Fatalf("item %d: ReadBits(%d) = %#x, want %#x", i, it.w, got, it.v)
		}
	}
	if b.Len() != 0 {
		t.Errorf("Len after reading everything = %d", b.Len())
	}
}

func TestBitBufferMSBFirst(t *testing.T) {
	b := NewBitBuffer()
	b.AppendBits(5, 3)
	b.AppendBits(300, 9)
	if got := b.String(); got != "101100101100" {
		t.Errorf("String = %q", got)
	}
	if got := b.Bytes(); !bytes.Equal(got, []byte{0xB2, 0xC0}) {
		t.Errorf("Bytes = %x, want b2c0", got)
	}
}

func TestBitBufferIgnoresHighBits(t *testing.T) {
	b := NewBitBuffer()
	b.AppendBits(0xFF, 3)
	if got := b.String(); got != "111" {
		t.Errorf("String = %q, want 111", got)
	}
	b.AppendBits(0xFFFF_FFFF_FFFF_FFF0, 4)
	if got := b.String(); got != "1110000" {
		t.Errorf("String = %q, want 1110000", got)
	}
}

func TestBitBufferAppendBit(t *testing.T) {
	b := NewBitBuffer()
	for _, bit := range []uint8{1, 0, 1, 1, 0, 0, 0, 0, 1} {
		b.AppendBit(bit)
	}
	if got := b.String(); got != "101100001" {
		t.Errorf("String = %q", got)
	}
	for i, want := range []uint8{1, 0, 1} {
		got, err := b.ReadBit()
		if err != nil || got != want {
			t.Fatalf("ReadBit %d = %d, %v; want %d", i, got, err, want)
		}
	}
}

func TestBitBufferUnderrun(t *testing.T) {
	b := NewBitBuffer()
	b.AppendBits(3, 2)

	if _, err := b.ReadBits(3); !errors.Is(err, comperrors.ErrInsufficientBits) {
		t.Fatalf("ReadBits(3) err = %v, want ErrInsufficientBits", err)
	}
	if b.Len() != 2 {
		t.Errorf("failed read consumed bits: Len = %d", b.Len())
	}
	if _, err := b.Take(3); !errors.Is(err, comperrors.ErrInsufficientBits) {
		t.Errorf("Take(3) err = %v", err)
	}
	if err := b.Skip(3); !errors.Is(err, comperrors.ErrInsufficientBits) {
		t.Errorf("Skip(3) err = %v", err)
	}
	if _, err := b.ReadBits(65); !errors.Is(err, comperrors.ErrInvalidWidth) {
		t.Errorf("ReadBits(65) err = %v, want ErrInvalidWidth", err)
	}

	empty := NewBitBuffer()
	if _, err := empty.ReadBit(); !errors.Is(err, comperrors.ErrInsufficientBits) {
		t.Errorf("ReadBit on empty err = %v", err)
	}
	if v, err := empty.ReadBits(0); err != nil || v != 0 {
		t.Errorf("ReadBits(0) = %d, %v", v, err)
	}
}

func TestBitBufferAppendBitsPanicsOnWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AppendBits(_, 65) did not panic")
		}
	}()
	NewBitBuffer().AppendBits(0, 65)
}

func TestBitBufferTakeAndViews(t *testing.T) {
	data := []byte{0xB2, 0xC0}
	orig := bytes.Clone(data)
	b := NewBitView(data, 12)

	head, err := b.Take(3)
	if err != nil {
		t.Fatal(err)
	}
	if got := head.String(); got != "101" {
		t.Errorf("head = %q", got)
	}
	if got := b.String(); got != "100101100" {
		t.Errorf("rest = %q", got)
	}

	// Reading the view does not advance b.
	if _, err := head.ReadBits(3); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 9 {
		t.Errorf("b.Len = %d after reading view", b.Len())
	}

	// Appending to a view copies before writing.
	b.AppendBits(0xF, 4)
	if !bytes.Equal(data, orig) {
		t.Errorf("append through view modified source: %x", data)
	}
	if got := b.String(); got != "1001011001111" {
		t.Errorf("after append = %q", got)
	}
}

func TestBitBufferBytesUnaligned(t *testing.T) {
	b := NewBitView([]byte{0xB2, 0xC0}, 12)
	if err := b.Skip(3); err != nil {
		t.Fatal(err)
	}
	// Remaining bits 100101100.
	if diff := cmp.Diff([]byte{0x96, 0x00}, b.Bytes()); diff != "" {
		t.Errorf("Bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestBitBufferAppendBuffer(t *testing.T) {
	rng := newTestRNG(t)
	for trial := range 200 {
		a := NewBitBuffer()
		other := NewBitBuffer()
		a.AppendBits(rng.Uint64(), rng.IntN(20))
		for range rng.IntN(10) {
			other.AppendBits(rng.Uint64(), rng.IntN(65))
		}
		if err := other.Skip(min(other.Len(), rng.IntN(9))); err != nil {
			t.Fatal(err)
		}
		want := a.String() + other.String()
		a.AppendBuffer(other)
		if got := a.String(); got != want {
			t.Fatalf("trial %d: got %q, want %q", trial, got, want)
		}
	}
}

func TestBitBufferAppendSelf(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*BitBuffer)
		want  string
	}{
		{"unaligned", func(b *BitBuffer) { b.AppendBits(0b101, 3) }, "101101"},
		{"aligned", func(b *BitBuffer) { b.AppendBits(0xAB, 8) }, "1010101110101011"},
		{"partly read", func(b *BitBuffer) {
			b.AppendBits(0b1101, 4)
			if _, err := b.ReadBit(); err != nil {
				t.Fatal(err)
			}
		}, "101101"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBitBuffer()
			tc.setup(b)
			b.AppendBuffer(b)
			if got := b.String(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBitBufferClone(t *testing.T) {
	b := NewBitBuffer()
	b.AppendBits(0b1011, 4)
	c := b.Clone()
	c.AppendBit(1)
	if b.String() != "1011" || c.String() != "10111" {
		t.Errorf("b = %q, c = %q", b.String(), c.String())
	}
}

func TestBitBufferWriteTo(t *testing.T) {
	rng := newTestRNG(t)
	b := NewBitBuffer()
	for range 100 {
		b.AppendBits(rng.Uint64(), rng.IntN(65))
	}
	if err := b.Skip(5); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	n, err := b.WriteTo(&out)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(out.Len()) {
		t.Errorf("WriteTo returned %d, wrote %d bytes", n, out.Len())
	}
	if diff := cmp.Diff(b.Bytes(), out.Bytes()); diff != "" {
		t.Errorf("WriteTo differs from Bytes (-want +got):\n%s", diff)
	}
}

// TestBitBufferMatchesBitio reads a buffer's bytes back with an independent
// MSB-first bit reader.
func TestBitBufferMatchesBitio(t *testing.T) {
	rng := newTestRNG(t)
	b := NewBitBuffer()
	type item struct {
		v uint64
		w int
	}
	var items []item
	for range 500 {
		w := 1 + rng.IntN(64)
		v := rng.Uint64() >> (64 - w)
		items = append(items, item{v, w})
		b.AppendBits(v, w)
	}

	r := bitio.NewReader(bytes.NewReader(b.Bytes()))
	for i, it := range items {
		got, err := r.ReadBits(uint8(it.w))
		if err != nil {
			t.Fatalf("item %d: %v", i, err)
		}
		if got != it.v {
			t.Fatalf("item %d: bitio read %#x, want %#x", i, got, it.v)
		}
	}
}
