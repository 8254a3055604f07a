package comprez

import (
	"fmt"

	comperrors "github.com/tamirms/comprez/errors"
)

// RecordField is one field of a record schema. Create fields with Field.
type RecordField[T any] interface {
	// Name returns the field name used in error messages.
	Name() string

	check() error
	maxBinaries() BinaryChunk
	compress(v *T, dst *BitBuffer) error
	decompress(bits *BitBuffer, v *T) error
}

type field[T, F any] struct {
	name  string
	codec Codec[F]
	b     Bound
	ref   func(*T) *F
}

// Field declares a record field named name, encoded with codec under bound
// b. ref returns a pointer to the field inside a record value and is used
// both to read the field on compress and to set it on decompress:
//
//	comprez.Field("a", comprez.Integer[uint8](), comprez.Max(5),
//	    func(p *Pair) *uint8 { return &p.A })
func Field[T, F any](name string, codec Codec[F], b Bound, ref func(*T) *F) RecordField[T] {
	return &field[T, F]{name: name, codec: codec, b: b, ref: ref}
}

func (f *field[T, F]) Name() string { return f.name }

func (f *field[T, F]) check() error {
	if f.codec == nil || f.ref == nil {
		return fmt.Errorf("%w: field %q has no codec or accessor", comperrors.ErrUnsupportedType, f.name)
	}
	if err := checkBound(f.codec, f.b); err != nil {
		return fmt.Errorf("field %q: %w", f.name, err)
	}
	return nil
}

func (f *field[T, F]) maxBinaries() BinaryChunk {
	return f.codec.MaxBinaries(f.b)
}

func (f *field[T, F]) compress(v *T, dst *BitBuffer) error {
	out, err := f.codec.CompressToBinaries(*f.ref(v), f.b)
	if err != nil {
		return fmt.Errorf("field %q: %w", f.name, err)
	}
	out.appendTo(dst)
	return nil
}

func (f *field[T, F]) decompress(bits *BitBuffer, v *T) error {
	fv, err := f.codec.DecompressFromBinaries(bits, f.b)
	if err != nil {
		return fmt.Errorf("field %q: %w", f.name, err)
	}
	*f.ref(v) = fv
	return nil
}

// RecordCodec composes per-field codecs in declaration order.
//
// Wire layout: the fields' bit sequences concatenated in declaration order
// with no separators or alignment.
type RecordCodec[T any] struct {
	fields []RecordField[T]
	schema BinaryChunk
	width  int
	static bool
}

// NewRecord builds a record codec from fields, in the order given. It
// validates every field's bound against its codec and rejects empty or
// duplicate field names.
func NewRecord[T any](fields ...RecordField[T]) (*RecordCodec[T], error) {
	seen := make(map[string]struct{}, len(fields))
	children := make([]BinaryChunk, len(fields))
	for i, f := range fields {
		if f == nil {
			return nil, fmt.Errorf("%w: field %d is nil", comperrors.ErrUnsupportedType, i)
		}
		name := f.Name()
		if name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", comperrors.ErrDuplicateField, i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", comperrors.ErrDuplicateField, name)
		}
		seen[name] = struct{}{}
		if err := f.check(); err != nil {
			return nil, err
		}
		children[i] = f.maxBinaries()
	}
	schema := Nested(children...)
	width, static := schema.Width()
	return &RecordCodec[T]{
		fields: fields,
		schema: schema,
		width:  width,
		static: static,
	}, nil
}

// MustRecord is like NewRecord but panics on a schema error. It is meant
// for package-level codec variables.
func MustRecord[T any](fields ...RecordField[T]) *RecordCodec[T] {
	rc, err := NewRecord(fields...)
	if err != nil {
		panic(err)
	}
	return rc
}

// Fields returns the field names in declaration order.
func (rc *RecordCodec[T]) Fields() []string {
	names := make([]string, len(rc.fields))
	for i, f := range rc.fields {
		names[i] = f.Name()
	}
	return names
}

// MaxBinaries returns Nested(per-field chunks). The bound is ignored.
func (rc *RecordCodec[T]) MaxBinaries(Bound) BinaryChunk {
	return rc.schema.clone()
}

// CompressToBinaries compresses each field in order into one bit sequence.
func (rc *RecordCodec[T]) CompressToBinaries(v T, _ Bound) (Compressed, error) {
	out := newBitBufferCap(rc.width)
	for _, f := range rc.fields {
		if err := f.compress(&v, out); err != nil {
			return Compressed{}, err
		}
	}
	return Binaries(out), nil
}

// DecompressFromBinaries reads the fields in declaration order. Fields with
// a static width are decoded from their own region of exactly that many
// bits; dynamically sized fields decode straight from bits.
func (rc *RecordCodec[T]) DecompressFromBinaries(bits *BitBuffer, _ Bound) (T, error) {
	var v T
	if rc.static && bits.Len() < rc.width {
		return v, fmt.Errorf("%w: record needs %d bits, have %d",
			comperrors.ErrWrongBytesLength, rc.width, bits.Len())
	}
	for i, f := range rc.fields {
		name := fmt.Sprintf("field %q", f.Name())
		err := decodeRegion(bits, rc.schema.Children[i], name, func(src *BitBuffer) error {
			return f.decompress(src, &v)
		})
		if err != nil {
			var zero T
			return zero, underrun(err)
		}
	}
	return v, nil
}
