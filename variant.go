package comprez

import (
	"fmt"

	comperrors "github.com/tamirms/comprez/errors"
	intbits "github.com/tamirms/comprez/internal/bits"
)

// LegacyTagWidth is the fixed 4-bit discriminant width of the v0 layout.
// Pass it to WithTagWidth to stay wire compatible with data written that
// way; such variants are limited to 16 cases.
const LegacyTagWidth = 4

// VariantCase is one case of a tagged variant. Create cases with Unit or Case.
type VariantCase[T any] interface {
	// Name returns the case name.
	Name() string

	check() error
	matches(v T) bool
	compress(v T, dst *BitBuffer) error
	decompress(bits *BitBuffer) (T, error)
}

type unitCase[T any] struct {
	name  string
	value T
	is    func(T) bool
}

// Unit declares a case without a payload. is reports whether a value is this
// case; value is what decoding the case produces.
func Unit[T any](name string, value T, is func(T) bool) VariantCase[T] {
	return &unitCase[T]{name: name, value: value, is: is}
}

func (c *unitCase[T]) Name() string { return c.name }

func (c *unitCase[T]) check() error {
	if c.is == nil {
		return fmt.Errorf("%w: case %q has no matcher", comperrors.ErrUnsupportedType, c.name)
	}
	return nil
}

func (c *unitCase[T]) matches(v T) bool                 { return c.is(v) }
func (c *unitCase[T]) compress(T, *BitBuffer) error     { return nil }
func (c *unitCase[T]) decompress(*BitBuffer) (T, error) { return c.value, nil }

type payloadCase[T, P any] struct {
	name   string
	codec  Codec[P]
	b      Bound
	wrap   func(P) T
	unwrap func(T) (P, bool)
}

// Case declares a case carrying one payload of type P, encoded with codec
// under bound b. unwrap extracts the payload and reports whether a value is
// this case; wrap builds the variant value from a decoded payload.
func Case[T, P any](name string, codec Codec[P], b Bound, wrap func(P) T, unwrap func(T) (P, bool)) VariantCase[T] {
	return &payloadCase[T, P]{name: name, codec: codec, b: b, wrap: wrap, unwrap: unwrap}
}

func (c *payloadCase[T, P]) Name() string { return c.name }

func (c *payloadCase[T, P]) check() error {
	if c.codec == nil || c.wrap == nil || c.unwrap == nil {
		return fmt.Errorf("%w: case %q has no codec, wrap or unwrap", comperrors.ErrUnsupportedType, c.name)
	}
	if err := checkBound(c.codec, c.b); err != nil {
		return fmt.Errorf("case %q: %w", c.name, err)
	}
	return nil
}

func (c *payloadCase[T, P]) matches(v T) bool {
	_, ok := c.unwrap(v)
	return ok
}

func (c *payloadCase[T, P]) compress(v T, dst *BitBuffer) error {
	p, _ := c.unwrap(v)
	out, err := c.codec.CompressToBinaries(p, c.b)
	if err != nil {
		return fmt.Errorf("case %q: %w", c.name, err)
	}
	out.appendTo(dst)
	return nil
}

func (c *payloadCase[T, P]) decompress(bits *BitBuffer) (T, error) {
	var p P
	name := fmt.Sprintf("case %q", c.name)
	err := decodeRegion(bits, c.codec.MaxBinaries(c.b), name, func(src *BitBuffer) error {
		var err error
		p, err = c.codec.DecompressFromBinaries(src, c.b)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return c.wrap(p), nil
}

// VariantOption configures a variant codec.
type VariantOption func(*variantConfig)

type variantConfig struct {
	tagWidth int // 0 = smallest width that addresses every case
}

// WithTagWidth pins the discriminant to n bits instead of the smallest
// width that addresses every case.
func WithTagWidth(n int) VariantOption {
	return func(c *variantConfig) {
		c.tagWidth = n
	}
}

// VariantCodec encodes a closed set of cases as a discriminant followed by
// the active case's payload, if any.
//
// Wire layout: the 0-based case index in TagWidth() bits, then the payload
// bits. By default TagWidth is max(1, ceil(log2(cases))).
type VariantCodec[T any] struct {
	cases    []VariantCase[T]
	tagWidth int
}

// NewVariant builds a variant codec. Case indexes follow the order of cases.
func NewVariant[T any](cases []VariantCase[T], opts ...VariantOption) (*VariantCodec[T], error) {
	cfg := &variantConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cases) == 0 {
		return nil, comperrors.ErrNoCases
	}

	tagWidth := intbits.Width(uint64(len(cases) - 1))
	if cfg.tagWidth != 0 {
		if cfg.tagWidth < 0 || cfg.tagWidth > 64 {
			return nil, fmt.Errorf("%w: tag width %d", comperrors.ErrInvalidWidth, cfg.tagWidth)
		}
		if cfg.tagWidth < tagWidth {
			return nil, fmt.Errorf("%w: %d cases need %d tag bits, have %d",
				comperrors.ErrTooManyCases, len(cases), tagWidth, cfg.tagWidth)
		}
		tagWidth = cfg.tagWidth
	}

	seen := make(map[string]struct{}, len(cases))
	for i, c := range cases {
		if c == nil {
			return nil, fmt.Errorf("%w: case %d is nil", comperrors.ErrUnsupportedType, i)
		}
		name := c.Name()
		if name == "" {
			return nil, fmt.Errorf("%w: case %d has no name", comperrors.ErrDuplicateCase, i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", comperrors.ErrDuplicateCase, name)
		}
		seen[name] = struct{}{}
		if err := c.check(); err != nil {
			return nil, err
		}
	}

	return &VariantCodec[T]{
		cases:    cases,
		tagWidth: tagWidth,
	}, nil
}

// MustVariant is like NewVariant but panics on a schema error.
func MustVariant[T any](cases []VariantCase[T], opts ...VariantOption) *VariantCodec[T] {
	vc, err := NewVariant(cases, opts...)
	if err != nil {
		panic(err)
	}
	return vc
}

// TagWidth returns the discriminant width in bits.
func (vc *VariantCodec[T]) TagWidth() int {
	return vc.tagWidth
}

// Cases returns the case names in index order.
func (vc *VariantCodec[T]) Cases() []string {
	names := make([]string, len(vc.cases))
	for i, c := range vc.cases {
		names[i] = c.Name()
	}
	return names
}

// CaseOf returns the index and name of the first case v matches.
func (vc *VariantCodec[T]) CaseOf(v T) (int, string, bool) {
	for i, c := range vc.cases {
		if c.matches(v) {
			return i, c.Name(), true
		}
	}
	return -1, "", false
}

// CaseName returns the name of the case v matches, or "" if none does.
func (vc *VariantCodec[T]) CaseName(v T) string {
	_, name, _ := vc.CaseOf(v)
	return name
}

// MaxBinaries returns Delimiter: the width depends on the active case.
func (vc *VariantCodec[T]) MaxBinaries(Bound) BinaryChunk {
	return Delimiter()
}

// CompressToBinaries writes the tag of the first matching case and its
// payload. A value matching no case fails with ErrUnknownVariant.
func (vc *VariantCodec[T]) CompressToBinaries(v T, _ Bound) (Compressed, error) {
	idx, _, ok := vc.CaseOf(v)
	if !ok {
		return Compressed{}, fmt.Errorf("%w: value %v matches no declared case", comperrors.ErrUnknownVariant, v)
	}
	out := newBitBufferCap(vc.tagWidth)
	out.AppendBits(uint64(idx), vc.tagWidth)
	if err := vc.cases[idx].compress(v, out); err != nil {
		return Compressed{}, err
	}
	return Binaries(out), nil
}

// DecompressFromBinaries reads the tag and dispatches to its case. A tag
// outside the declared range fails with ErrUnknownVariant.
func (vc *VariantCodec[T]) DecompressFromBinaries(bits *BitBuffer, _ Bound) (T, error) {
	var zero T
	tag, err := bits.ReadBits(vc.tagWidth)
	if err != nil {
		return zero, underrun(err)
	}
	if tag >= uint64(len(vc.cases)) {
		return zero, fmt.Errorf("%w: tag %d, %d cases declared", comperrors.ErrUnknownVariant, tag, len(vc.cases))
	}
	v, err := vc.cases[tag].decompress(bits)
	if err != nil {
		return zero, underrun(err)
	}
	return v, nil
}
