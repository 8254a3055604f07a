package comprez

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompressedForms(t *testing.T) {
	bits := NewBitBuffer()
	bits.AppendBits(0b101, 3)
	bin := Binaries(bits)

	if bin.IsBytes() || bin.BitLen() != 3 {
		t.Errorf("Binaries: IsBytes=%v BitLen=%d", bin.IsBytes(), bin.BitLen())
	}
	if diff := cmp.Diff([]byte{0xA0}, bin.ToBytes()); diff != "" {
		t.Errorf("ToBytes (-want +got):\n%s", diff)
	}

	by := Bytes([]byte{0xA0})
	if !by.IsBytes() || by.BitLen() != 8 {
		t.Errorf("Bytes: IsBytes=%v BitLen=%d", by.IsBytes(), by.BitLen())
	}

	var zero Compressed
	if zero.IsBytes() || zero.BitLen() != 0 || len(zero.ToBytes()) != 0 {
		t.Errorf("zero value is not an empty Binaries")
	}
	if zero.ToBinaries().Len() != 0 {
		t.Errorf("zero value ToBinaries not empty")
	}
}

func TestCompressedCombine(t *testing.T) {
	a := NewBitBuffer()
	a.AppendBits(0b101, 3)
	b := NewBitBuffer()
	b.AppendBits(0b100101100, 9)

	got := Binaries(a).Combine(Binaries(b))
	if s := got.ToBinaries().String(); s != "101100101100" {
		t.Errorf("Combine = %q", s)
	}
	// Operands are untouched.
	if a.String() != "101" || b.String() != "100101100" {
		t.Errorf("operands modified: %q %q", a.String(), b.String())
	}

	// A Bytes operand contributes its padding too.
	withBytes := Binaries(a).Combine(Bytes([]byte{0xFF}))
	if s := withBytes.ToBinaries().String(); s != "10111111111" {
		t.Errorf("Combine with Bytes = %q", s)
	}
}

func TestCompressedToBinariesDoesNotConsume(t *testing.T) {
	c := Bytes([]byte{0xB2, 0xC0})
	v := c.ToBinaries()
	if _, err := v.ReadBits(12); err != nil {
		t.Fatal(err)
	}
	if again := c.ToBinaries(); again.Len() != 16 {
		t.Errorf("second view Len = %d, want 16", again.Len())
	}

	bits := NewBitBuffer()
	bits.AppendBits(0b11, 2)
	bin := Binaries(bits)
	if _, err := bin.ToBinaries().ReadBits(2); err != nil {
		t.Fatal(err)
	}
	if bin.BitLen() != 2 {
		t.Errorf("reading a view consumed the Binaries")
	}
}

func TestCompressedWriteTo(t *testing.T) {
	rc := pairCodec(t)
	out, err := rc.CompressToBinaries(pair{A: 5, B: 300}, NoBound)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0xB2, 0xC0}, buf.Bytes()); diff != "" {
		t.Errorf("WriteTo (-want +got):\n%s", diff)
	}

	buf.Reset()
	if _, err := Bytes([]byte{1, 2}).WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{1, 2}) {
		t.Errorf("Bytes WriteTo = %x", buf.Bytes())
	}
}
