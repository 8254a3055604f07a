package comprez

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

// newTestRNG returns a PCG generator seeded from the test name, so every
// test draws its own reproducible sequence.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// pair is the two-field record used throughout the tests: a <= 5, b <= 300.
type pair struct {
	A uint8
	B uint16
}

func pairCodec(t testing.TB) *RecordCodec[pair] {
	t.Helper()
	rc, err := NewRecord(
		Field("a", Integer[uint8](), Max(5), func(p *pair) *uint8 { return &p.A }),
		Field("b", Integer[uint16](), Max(300), func(p *pair) *uint16 { return &p.B }),
	)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return rc
}

// shape is a three-case variant: none, small (<= 15) and big (<= 1000).
type shape interface{ isShape() }

type none struct{}
type small struct{ V uint8 }
type big struct{ V uint16 }

func (none) isShape()  {}
func (small) isShape() {}
func (big) isShape()   {}

func shapeCases() []VariantCase[shape] {
	return []VariantCase[shape]{
		Unit[shape]("none", none{}, func(s shape) bool { _, ok := s.(none); return ok }),
		Case("small", Integer[uint8](), Max(15),
			func(v uint8) shape { return small{V: v} },
			func(s shape) (uint8, bool) { v, ok := s.(small); return v.V, ok }),
		Case("big", Integer[uint16](), Max(1000),
			func(v uint16) shape { return big{V: v} },
			func(s shape) (uint16, bool) { v, ok := s.(big); return v.V, ok }),
	}
}

func shapeCodec(t testing.TB, opts ...VariantOption) *VariantCodec[shape] {
	t.Helper()
	vc, err := NewVariant(shapeCases(), opts...)
	if err != nil {
		t.Fatalf("NewVariant: %v", err)
	}
	return vc
}

// randomShape draws a shape with every case equally likely.
func randomShape(rng *rand.Rand) shape {
	switch rng.IntN(3) {
	case 0:
		return none{}
	case 1:
		return small{V: uint8(rng.IntN(16))}
	default:
		return big{V: uint16(rng.IntN(1001))}
	}
}

// mustCompress compresses v and returns the finalized bytes.
func mustCompress[T any](t testing.TB, c Codec[T], v T) []byte {
	t.Helper()
	data, err := CompressBytes(c, v)
	if err != nil {
		t.Fatalf("CompressBytes(%v): %v", v, err)
	}
	return data
}

// bitsOf returns the bit string of a compressed value before padding.
func bitsOf[T any](t testing.TB, c Codec[T], v T, b Bound) string {
	t.Helper()
	out, err := c.CompressToBinaries(v, b)
	if err != nil {
		t.Fatalf("CompressToBinaries(%v): %v", v, err)
	}
	return out.ToBinaries().String()
}
