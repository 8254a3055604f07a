package comprez

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	comperrors "github.com/tamirms/comprez/errors"
)

type taggedPair struct {
	A uint8  `comprez:"max=5"`
	B uint16 `comprez:"max=300"`
}

func TestDeriveMatchesHandWritten(t *testing.T) {
	dc, err := Derive[taggedPair]()
	if err != nil {
		t.Fatal(err)
	}
	hand := pairCodec(t)
	if !dc.MaxBinaries(NoBound).Equal(hand.MaxBinaries(NoBound)) {
		t.Errorf("schemas differ: %s vs %s", dc.MaxBinaries(NoBound), hand.MaxBinaries(NoBound))
	}

	rng := newTestRNG(t)
	for range 500 {
		a, b := uint8(rng.IntN(6)), uint16(rng.IntN(301))
		derived := mustCompress(t, dc, taggedPair{A: a, B: b})
		written := mustCompress(t, hand, pair{A: a, B: b})
		if diff := cmp.Diff(written, derived); diff != "" {
			t.Fatalf("bytes differ (-hand +derived):\n%s", diff)
		}
		got, err := DecompressBytes(dc, derived)
		if err != nil || got != (taggedPair{A: a, B: b}) {
			t.Fatalf("round trip = %+v, %v", got, err)
		}
	}
	if diff := cmp.Diff([]byte{0xB2, 0xC0}, mustCompress(t, dc, taggedPair{A: 5, B: 300})); diff != "" {
		t.Errorf("example bytes (-want +got):\n%s", diff)
	}
}

type inner struct {
	X int16 `comprez:"max=1000"`
	Y bool
}

type outer struct {
	ID       uint32   `comprez:"max=99999"`
	Grid     [3]uint8 `comprez:"max=7"`
	Inner    inner
	Pairs    [2]inner
	Tags     []uint8 `comprez:"max=63,len=5"`
	Slots    []uint8 `comprez:"max=3,len=4,slots"`
	Skipped  string  `comprez:"-"`
	internal int
}

func TestDeriveNested(t *testing.T) {
	dc := MustDerive[outer]()
	want := "{17,{3,3,3},{10,1},{{10,1},{10,1}},~,{3,2,2,2,2}}"
	if got := dc.MaxBinaries(NoBound).String(); got != want {
		t.Errorf("schema = %s, want %s", got, want)
	}

	rng := newTestRNG(t)
	for range 500 {
		v := outer{
			ID:    uint32(rng.IntN(100000)),
			Grid:  [3]uint8{uint8(rng.IntN(8)), uint8(rng.IntN(8)), uint8(rng.IntN(8))},
			Inner: inner{X: int16(rng.IntN(1001)), Y: rng.IntN(2) == 0},
			Pairs: [2]inner{{X: int16(rng.IntN(1001))}, {X: 1000, Y: true}},
			Tags:  make([]uint8, rng.IntN(6)),
			Slots: make([]uint8, rng.IntN(5)),
		}
		for i := range v.Tags {
			v.Tags[i] = uint8(rng.IntN(64))
		}
		for i := range v.Slots {
			v.Slots[i] = uint8(rng.IntN(4))
		}
		got, err := DecompressBytes(dc, mustCompress(t, dc, v))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(v, got, cmp.AllowUnexported(outer{})); diff != "" {
			t.Fatalf("round trip (-want +got):\n%s", diff)
		}
	}
}

func TestDeriveSkipsFields(t *testing.T) {
	dc := MustDerive[outer]()
	v := outer{Skipped: "not encoded", internal: 42}
	got, err := DecompressBytes(dc, mustCompress(t, dc, v))
	if err != nil {
		t.Fatal(err)
	}
	if got.Skipped != "" || got.internal != 0 {
		t.Errorf("skipped fields decoded as %q, %d", got.Skipped, got.internal)
	}
}

func TestDeriveValueErrors(t *testing.T) {
	dc := MustDerive[outer]()
	if _, err := dc.CompressToBinaries(outer{ID: 100000}, NoBound); !errors.Is(err, comperrors.ErrValueExceedsMax) {
		t.Errorf("ID over max: %v", err)
	}
	if _, err := dc.CompressToBinaries(outer{Inner: inner{X: -1}}, NoBound); !errors.Is(err, comperrors.ErrValueExceedsMax) {
		t.Errorf("negative X: %v", err)
	}
	if _, err := dc.CompressToBinaries(outer{Tags: make([]uint8, 6)}, NoBound); !errors.Is(err, comperrors.ErrValueExceedsMax) {
		t.Errorf("too many tags: %v", err)
	}
	if _, err := DecompressBytes(dc, []byte{0xFF}); !errors.Is(err, comperrors.ErrWrongBytesLength) {
		t.Errorf("short input: %v", err)
	}
}

type (
	noBound struct{ A uint8 }
	tooWide struct {
		A uint8 `comprez:"max=256"`
	}
	twoBounds struct {
		A uint8 `comprez:"max=1,max=2"`
	}
	noLength struct {
		A []uint8 `comprez:"max=3"`
	}
	lenOnInt struct {
		A uint8 `comprez:"max=3,len=2"`
	}
	withString   struct{ A string }
	withPointer  struct{ A *uint8 }
	withMap      struct{ A map[uint8]uint8 }
	withFloat    struct{ A float64 }
	unsizedSlots struct {
		A []shape `comprez:"len=2,slots"`
	}
	boundedBool struct {
		A bool `comprez:"max=1"`
	}
	boundedStruct struct {
		P taggedPair `comprez:"max=7"`
	}
	boundedStructs struct {
		P [2]taggedPair `comprez:"max=7"`
	}
	recursive struct {
		Kids []recursive `comprez:"len=2"`
	}
)

func TestDeriveSchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		derive func() error
		want   error
	}{
		{"missing bound", func() error { _, err := Derive[noBound](); return err }, comperrors.ErrMissingBound},
		{"bound wider than type", func() error { _, err := Derive[tooWide](); return err }, comperrors.ErrMalformedBound},
		{"duplicate bound", func() error { _, err := Derive[twoBounds](); return err }, comperrors.ErrDuplicateBound},
		{"missing length", func() error { _, err := Derive[noLength](); return err }, comperrors.ErrMissingLength},
		{"len on integer", func() error { _, err := Derive[lenOnInt](); return err }, comperrors.ErrMalformedBound},
		{"string", func() error { _, err := Derive[withString](); return err }, comperrors.ErrUnsupportedType},
		{"pointer", func() error { _, err := Derive[withPointer](); return err }, comperrors.ErrUnsupportedType},
		{"map", func() error { _, err := Derive[withMap](); return err }, comperrors.ErrUnsupportedType},
		{"float", func() error { _, err := Derive[withFloat](); return err }, comperrors.ErrUnsupportedType},
		{"recursive", func() error { _, err := Derive[recursive](); return err }, comperrors.ErrUnsupportedType},
		{"top-level slice", func() error { _, err := Derive[[]uint8](); return err }, comperrors.ErrMissingLength},
		{"bound on bool", func() error { _, err := Derive[boundedBool](); return err }, comperrors.ErrMalformedBound},
		{"bound on struct", func() error { _, err := Derive[boundedStruct](); return err }, comperrors.ErrMalformedBound},
		{"bound on struct array", func() error { _, err := Derive[boundedStructs](); return err }, comperrors.ErrMalformedBound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.derive(); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestMustDerivePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustDerive did not panic")
		}
	}()
	MustDerive[noBound]()
}

type event struct {
	Seq   uint16 `comprez:"max=4095"`
	Shape shape
	Trail []shape `comprez:"len=3"`
}

func TestDeriveRegisteredVariant(t *testing.T) {
	Register[shape](shapeCodec(t))

	dc, err := Derive[event]()
	if err != nil {
		t.Fatal(err)
	}
	if got := dc.MaxBinaries(NoBound).String(); got != "{12,~,~}" {
		t.Errorf("schema = %s", got)
	}

	v := event{Seq: 7, Shape: small{V: 9}, Trail: []shape{big{V: 1}, none{}}}
	// 12-bit seq, compact tag 01 + 1001, then length 2 in 2 bits and two shapes.
	want := "000000000111" + "01" + "1001" + "10" + "10" + "0000000001" + "00"
	if got := bitsOf(t, dc, v, NoBound); got != want {
		t.Errorf("bits = %s, want %s", got, want)
	}
	got, err := DecompressBytes(dc, mustCompress(t, dc, v))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(v, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}

	if _, err := dc.CompressToBinaries(event{}, NoBound); !errors.Is(err, comperrors.ErrUnknownVariant) {
		t.Errorf("nil shape: %v", err)
	}
	if _, err := Derive[unsizedSlots](); !errors.Is(err, comperrors.ErrUnsizedElement) {
		t.Errorf("fixed slots of variants: %v", err)
	}
}

func TestDeriveTopLevel(t *testing.T) {
	ic := MustDerive[int8]()
	got, err := DecompressBytes(ic, mustCompress(t, ic, int8(-5)))
	if err != nil || got != -5 {
		t.Errorf("int8 round trip = %d, %v", got, err)
	}

	type level uint8
	lc := MustDerive[[4]level]()
	if err := lc.CheckBound(NoBound); !errors.Is(err, comperrors.ErrMissingBound) {
		t.Errorf("array of named integers without bound: %v", err)
	}
	out, err := lc.CompressToBinaries([4]level{1, 2, 3, 0}, Max(3))
	if err != nil {
		t.Fatal(err)
	}
	if s := out.ToBinaries().String(); s != "01101100" {
		t.Errorf("bits = %s", s)
	}
	back, err := lc.DecompressFromBinaries(out.ToBinaries(), Max(3))
	if err != nil || back != [4]level{1, 2, 3, 0} {
		t.Errorf("round trip = %v, %v", back, err)
	}
}

// TestDeriveAsRecordField uses a derived codec inside a hand-written record.
func TestDeriveAsRecordField(t *testing.T) {
	type wrapper struct {
		P    taggedPair
		Note uint8
	}
	rc, err := NewRecord(
		Field("p", MustDerive[taggedPair](), NoBound, func(w *wrapper) *taggedPair { return &w.P }),
		Field("note", Integer[uint8](), Max(9), func(w *wrapper) *uint8 { return &w.Note }),
	)
	if err != nil {
		t.Fatal(err)
	}
	v := wrapper{P: taggedPair{A: 5, B: 300}, Note: 9}
	if got := bitsOf(t, rc, v, NoBound); got != "101100101100"+"1001" {
		t.Errorf("bits = %s", got)
	}
}
