package comprez

import (
	"fmt"
	"reflect"
	"sync"

	comperrors "github.com/tamirms/comprez/errors"
	intbits "github.com/tamirms/comprez/internal/bits"
)

// valueCodec is a codec over reflect.Value, built once per Go type.
// dst passed to decompress is always settable.
type valueCodec interface {
	check(b Bound) error
	maxBinaries(b Bound) BinaryChunk
	compress(v reflect.Value, b Bound, dst *BitBuffer) error
	decompress(bits *BitBuffer, b Bound, dst reflect.Value) error
}

var (
	registry sync.Map // reflect.Type -> valueCodec
	derived  sync.Map // reflect.Type -> *structCodec
)

// Register makes c the codec Derive uses for every field of type T.
// Registration is how variants, and any type with a hand-written codec,
// take part in derived structs:
//
//	comprez.Register[Shape](shapeCodec)
//
// Register is meant to be called from init or before the first Derive that
// needs it. Registering T again replaces the previous codec.
func Register[T any](c Codec[T]) {
	if c == nil {
		panic("comprez: Register: nil codec")
	}
	registry.Store(reflect.TypeFor[T](), registeredCodec[T]{c: c})
	derived.Clear()
}

// DerivedCodec is a Codec[T] built from T's Go type and struct tags.
type DerivedCodec[T any] struct {
	vc valueCodec
}

// Derive builds the codec for T from its type. Exported struct fields are
// encoded in declaration order; integer fields take their bound from a
// `comprez:"max=M"` tag and slices their capacity from `len=N`. See the
// package documentation for the full tag syntax.
//
// Derived struct codecs are cached, so Derive is cheap to call repeatedly.
func Derive[T any]() (*DerivedCodec[T], error) {
	typ := reflect.TypeFor[T]()
	vc, err := buildCodec(typ, fieldTag{}, make(map[reflect.Type]bool))
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", typ, err)
	}
	return &DerivedCodec[T]{vc: vc}, nil
}

// MustDerive is like Derive but panics on a schema error.
func MustDerive[T any]() *DerivedCodec[T] {
	dc, err := Derive[T]()
	if err != nil {
		panic(err)
	}
	return dc
}

// CheckBound reports whether b is acceptable for T.
func (dc *DerivedCodec[T]) CheckBound(b Bound) error {
	return dc.vc.check(b)
}

// MaxBinaries returns the schema tree of T under b.
func (dc *DerivedCodec[T]) MaxBinaries(b Bound) BinaryChunk {
	return dc.vc.maxBinaries(b)
}

// CompressToBinaries packs v under b.
func (dc *DerivedCodec[T]) CompressToBinaries(v T, b Bound) (Compressed, error) {
	out := NewBitBuffer()
	if err := dc.vc.compress(reflect.ValueOf(&v).Elem(), b, out); err != nil {
		return Compressed{}, err
	}
	return Binaries(out), nil
}

// DecompressFromBinaries consumes one T from bits.
func (dc *DerivedCodec[T]) DecompressFromBinaries(bits *BitBuffer, b Bound) (T, error) {
	var v T
	if err := dc.vc.decompress(bits, b, reflect.ValueOf(&v).Elem()); err != nil {
		var zero T
		return zero, underrun(err)
	}
	return v, nil
}

// buildCodec returns the codec for typ. tag carries the declaration of the
// enclosing field; arrays pass it on to their elements, slices consume len
// and slots and pass on the bound.
func buildCodec(typ reflect.Type, tag fieldTag, visiting map[reflect.Type]bool) (valueCodec, error) {
	if c, ok := registry.Load(typ); ok {
		return c.(valueCodec), nil
	}
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intValueCodec{bits: typ.Bits(), signed: true}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return intValueCodec{bits: typ.Bits()}, nil
	case reflect.Bool:
		return boolValueCodec{}, nil
	case reflect.Struct:
		return buildStruct(typ, visiting)
	case reflect.Array:
		elem, err := buildCodec(typ.Elem(), tag, visiting)
		if err != nil {
			return nil, err
		}
		return arrayCodec{elem: elem, n: typ.Len()}, nil
	case reflect.Slice:
		if !tag.hasLen {
			return nil, fmt.Errorf("%w: %s needs len=N", comperrors.ErrMissingLength, typ)
		}
		elem, err := buildCodec(typ.Elem(), fieldTag{bound: tag.bound}, visiting)
		if err != nil {
			return nil, err
		}
		return &sliceValueCodec{
			typ:      typ,
			elem:     elem,
			maxLen:   tag.maxLen,
			lenWidth: intbits.Width(uint64(tag.maxLen)),
			fixed:    tag.slots,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s (%s)", comperrors.ErrUnsupportedType, typ, typ.Kind())
	}
}

// buildStruct derives a struct codec, consulting and filling the cache.
// visiting holds the structs being derived on the current path and turns
// a self-referencing type into an error.
func buildStruct(typ reflect.Type, visiting map[reflect.Type]bool) (valueCodec, error) {
	if c, ok := derived.Load(typ); ok {
		return c.(*structCodec), nil
	}
	if visiting[typ] {
		return nil, fmt.Errorf("%w: recursive type %s", comperrors.ErrUnsupportedType, typ)
	}
	visiting[typ] = true
	defer delete(visiting, typ)

	sc := &structCodec{typ: typ}
	children := make([]BinaryChunk, 0, typ.NumField())
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, err := parseTag(sf.Tag.Get(tagKey))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typ.Name(), sf.Name, err)
		}
		if tag.skip {
			continue
		}
		if (tag.hasLen || tag.slots) && !hasSlice(sf.Type) {
			return nil, fmt.Errorf("%w: %s.%s: len and slots apply to slices only",
				comperrors.ErrMalformedBound, typ.Name(), sf.Name)
		}
		fc, err := buildCodec(sf.Type, tag, visiting)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typ.Name(), sf.Name, err)
		}
		if err := fc.check(tag.bound); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typ.Name(), sf.Name, err)
		}
		chunk := fc.maxBinaries(tag.bound)
		sc.fields = append(sc.fields, structField{
			index: i,
			name:  sf.Name,
			codec: fc,
			bound: tag.bound,
			chunk: chunk,
		})
		children = append(children, chunk)
	}
	sc.schema = Nested(children...)
	sc.width, sc.static = sc.schema.Width()

	actual, _ := derived.LoadOrStore(typ, sc)
	return actual.(*structCodec), nil
}

// hasSlice reports whether typ is a slice, possibly inside arrays.
func hasSlice(typ reflect.Type) bool {
	for typ.Kind() == reflect.Array {
		typ = typ.Elem()
	}
	return typ.Kind() == reflect.Slice
}

type registeredCodec[T any] struct {
	c Codec[T]
}

func (r registeredCodec[T]) check(b Bound) error {
	return checkBound(r.c, b)
}

func (r registeredCodec[T]) maxBinaries(b Bound) BinaryChunk {
	return r.c.MaxBinaries(b)
}

func (r registeredCodec[T]) compress(v reflect.Value, b Bound, dst *BitBuffer) error {
	x, _ := v.Interface().(T)
	out, err := r.c.CompressToBinaries(x, b)
	if err != nil {
		return err
	}
	out.appendTo(dst)
	return nil
}

func (r registeredCodec[T]) decompress(bits *BitBuffer, b Bound, dst reflect.Value) error {
	x, err := r.c.DecompressFromBinaries(bits, b)
	if err != nil {
		return err
	}
	dst.Set(reflect.ValueOf(&x).Elem())
	return nil
}

// intValueCodec mirrors IntegerCodec for any integer kind, named or not.
type intValueCodec struct {
	bits   int
	signed bool
}

func (c intValueCodec) typeMax() uint64 {
	if c.signed {
		return intbits.Mask(c.bits - 1)
	}
	return intbits.Mask(c.bits)
}

func (c intValueCodec) width(b Bound) int {
	if !b.Set {
		return c.bits
	}
	return intbits.Width(b.Max)
}

func (c intValueCodec) check(b Bound) error {
	if !b.Set {
		return comperrors.ErrMissingBound
	}
	if b.Max > c.typeMax() {
		return fmt.Errorf("%w: max %d exceeds %d-bit type limit %d",
			comperrors.ErrMalformedBound, b.Max, c.bits, c.typeMax())
	}
	return nil
}

func (c intValueCodec) maxBinaries(b Bound) BinaryChunk {
	return Single(c.width(b))
}

func (c intValueCodec) compress(v reflect.Value, b Bound, dst *BitBuffer) error {
	var u uint64
	if c.signed {
		i := v.Int()
		if b.Set && i < 0 {
			return fmt.Errorf("%w: %d is negative", comperrors.ErrValueExceedsMax, i)
		}
		u = uint64(i)
	} else {
		u = v.Uint()
	}
	if b.Set && u > b.Max {
		return fmt.Errorf("%w: %d > %d", comperrors.ErrValueExceedsMax, u, b.Max)
	}
	dst.AppendBits(u, c.width(b))
	return nil
}

func (c intValueCodec) decompress(bits *BitBuffer, b Bound, dst reflect.Value) error {
	u, err := bits.ReadBits(c.width(b))
	if err != nil {
		return err
	}
	if c.signed {
		dst.SetInt(int64(u))
	} else {
		dst.SetUint(u)
	}
	return nil
}

type boolValueCodec struct{}

func (boolValueCodec) check(b Bound) error {
	if b.Set {
		return fmt.Errorf("%w: bool takes no bound", comperrors.ErrMalformedBound)
	}
	return nil
}

func (boolValueCodec) maxBinaries(Bound) BinaryChunk { return Single(1) }

func (boolValueCodec) compress(v reflect.Value, _ Bound, dst *BitBuffer) error {
	if v.Bool() {
		dst.AppendBit(1)
	} else {
		dst.AppendBit(0)
	}
	return nil
}

func (boolValueCodec) decompress(bits *BitBuffer, _ Bound, dst reflect.Value) error {
	bit, err := bits.ReadBit()
	if err != nil {
		return err
	}
	dst.SetBool(bit == 1)
	return nil
}

type structField struct {
	index int
	name  string
	codec valueCodec
	bound Bound
	chunk BinaryChunk
}

// structCodec is the derived counterpart of RecordCodec.
type structCodec struct {
	typ    reflect.Type
	fields []structField
	schema BinaryChunk
	width  int
	static bool
}

// check rejects a bound: a nested struct carries its own field bounds.
func (sc *structCodec) check(b Bound) error {
	if b.Set {
		return fmt.Errorf("%w: %s takes no bound", comperrors.ErrMalformedBound, sc.typ)
	}
	return nil
}

func (sc *structCodec) maxBinaries(Bound) BinaryChunk {
	return sc.schema.clone()
}

func (sc *structCodec) compress(v reflect.Value, _ Bound, dst *BitBuffer) error {
	for _, f := range sc.fields {
		if err := f.codec.compress(v.Field(f.index), f.bound, dst); err != nil {
			return fmt.Errorf("field %q: %w", f.name, err)
		}
	}
	return nil
}

func (sc *structCodec) decompress(bits *BitBuffer, _ Bound, dst reflect.Value) error {
	if sc.static && bits.Len() < sc.width {
		return fmt.Errorf("%w: %s needs %d bits, have %d",
			comperrors.ErrWrongBytesLength, sc.typ, sc.width, bits.Len())
	}
	for _, f := range sc.fields {
		name := fmt.Sprintf("field %q", f.name)
		err := decodeRegion(bits, f.chunk, name, func(src *BitBuffer) error {
			if err := f.codec.decompress(src, f.bound, dst.Field(f.index)); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// arrayCodec encodes [N]E as N elements under one shared bound.
type arrayCodec struct {
	elem valueCodec
	n    int
}

func (ac arrayCodec) check(b Bound) error {
	if err := ac.elem.check(b); err != nil {
		return fmt.Errorf("array element: %w", err)
	}
	return nil
}

func (ac arrayCodec) maxBinaries(b Bound) BinaryChunk {
	children := make([]BinaryChunk, ac.n)
	for i := range children {
		children[i] = ac.elem.maxBinaries(b)
	}
	return Nested(children...)
}

func (ac arrayCodec) compress(v reflect.Value, b Bound, dst *BitBuffer) error {
	for i := range ac.n {
		if err := ac.elem.compress(v.Index(i), b, dst); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (ac arrayCodec) decompress(bits *BitBuffer, b Bound, dst reflect.Value) error {
	for i := range ac.n {
		if err := ac.elem.decompress(bits, b, dst.Index(i)); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// sliceValueCodec is the derived counterpart of SliceCodec and shares its
// wire layout.
type sliceValueCodec struct {
	typ      reflect.Type
	elem     valueCodec
	maxLen   int
	lenWidth int
	fixed    bool
}

func (sc *sliceValueCodec) check(b Bound) error {
	if err := sc.elem.check(b); err != nil {
		return fmt.Errorf("slice element: %w", err)
	}
	if sc.fixed && !sc.elem.maxBinaries(b).Static() {
		return comperrors.ErrUnsizedElement
	}
	return nil
}

func (sc *sliceValueCodec) maxBinaries(b Bound) BinaryChunk {
	if !sc.fixed {
		return Delimiter()
	}
	children := make([]BinaryChunk, 0, sc.maxLen+1)
	children = append(children, Single(sc.lenWidth))
	for range sc.maxLen {
		children = append(children, sc.elem.maxBinaries(b))
	}
	return Nested(children...)
}

// slotWidth is only called for fixed-slot slices, whose element width was
// checked to be static at derive time.
func (sc *sliceValueCodec) slotWidth(b Bound) int {
	w, _ := sc.elem.maxBinaries(b).Width()
	return w
}

func (sc *sliceValueCodec) compress(v reflect.Value, b Bound, dst *BitBuffer) error {
	n := v.Len()
	if n > sc.maxLen {
		return fmt.Errorf("%w: slice length %d > %d", comperrors.ErrValueExceedsMax, n, sc.maxLen)
	}
	dst.AppendBits(uint64(n), sc.lenWidth)
	for i := range n {
		if err := sc.elem.compress(v.Index(i), b, dst); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	if sc.fixed {
		appendZeros(dst, (sc.maxLen-n)*sc.slotWidth(b))
	}
	return nil
}

func (sc *sliceValueCodec) decompress(bits *BitBuffer, b Bound, dst reflect.Value) error {
	u, err := bits.ReadBits(sc.lenWidth)
	if err != nil {
		return err
	}
	if u > uint64(sc.maxLen) {
		return fmt.Errorf("%w: %d > %d", comperrors.ErrInvalidLength, u, sc.maxLen)
	}
	n := int(u)
	s := reflect.MakeSlice(sc.typ, n, n)
	for i := range n {
		if err := sc.elem.decompress(bits, b, s.Index(i)); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	dst.Set(s)
	if sc.fixed {
		return bits.Skip((sc.maxLen - n) * sc.slotWidth(b))
	}
	return nil
}
