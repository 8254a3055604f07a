package comprez

import (
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// ChunkKind identifies the shape of a BinaryChunk node.
type ChunkKind uint8

const (
	// KindSingle is a leaf occupying a fixed number of bits.
	KindSingle ChunkKind = iota

	// KindNested is a composite whose width is the sum of its children.
	KindNested

	// KindDelimiter marks a value whose width is only known after reading
	// from the stream (a variant tag or a length prefix).
	KindDelimiter
)

// String returns the kind name.
func (k ChunkKind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindNested:
		return "nested"
	case KindDelimiter:
		return "delimiter"
	default:
		return "unknown"
	}
}

// BinaryChunk is a node of a schema tree describing how many bits a type
// occupies. It is computed from a type and its declared bound alone and
// never depends on a value, which is what lets a decoder recover structure
// without any metadata on the wire.
type BinaryChunk struct {
	Kind     ChunkKind
	Bits     int           // KindSingle only
	Children []BinaryChunk // KindNested only
}

// Single returns a leaf chunk of w bits.
func Single(w int) BinaryChunk {
	return BinaryChunk{Kind: KindSingle, Bits: w}
}

// Nested returns a composite chunk over children, in declaration order.
func Nested(children ...BinaryChunk) BinaryChunk {
	return BinaryChunk{Kind: KindNested, Children: children}
}

// Delimiter returns a dynamically sized chunk.
func Delimiter() BinaryChunk {
	return BinaryChunk{Kind: KindDelimiter}
}

// Width returns the total static width in bits. ok is false when the tree
// contains a Delimiter anywhere.
func (c BinaryChunk) Width() (w int, ok bool) {
	switch c.Kind {
	case KindSingle:
		return c.Bits, true
	case KindNested:
		for _, child := range c.Children {
			cw, ok := child.Width()
			if !ok {
				return 0, false
			}
			w += cw
		}
		return w, true
	default:
		return 0, false
	}
}

// Static reports whether the chunk has a width known without reading data.
func (c BinaryChunk) Static() bool {
	_, ok := c.Width()
	return ok
}

// Equal reports whether two trees are identical.
func (c BinaryChunk) Equal(o BinaryChunk) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case KindSingle:
		return c.Bits == o.Bits
	case KindNested:
		if len(c.Children) != len(o.Children) {
			return false
		}
		for i := range c.Children {
			if !c.Children[i].Equal(o.Children[i]) {
				return false
			}
		}
	}
	return true
}

// clone returns a deep copy so callers cannot mutate a cached tree.
func (c BinaryChunk) clone() BinaryChunk {
	if c.Kind != KindNested {
		return c
	}
	children := make([]BinaryChunk, len(c.Children))
	for i, child := range c.Children {
		children[i] = child.clone()
	}
	return BinaryChunk{Kind: KindNested, Children: children}
}

// String returns the canonical form of the tree: a Single is its width,
// a Nested is its children in braces, a Delimiter is "~".
//
//	Nested(Single(3), Single(9), Delimiter()) => "{3,9,~}"
func (c BinaryChunk) String() string {
	var sb strings.Builder
	c.format(&sb)
	return sb.String()
}

func (c BinaryChunk) format(sb *strings.Builder) {
	switch c.Kind {
	case KindSingle:
		sb.WriteString(strconv.Itoa(c.Bits))
	case KindNested:
		sb.WriteByte('{')
		for i, child := range c.Children {
			if i > 0 {
				sb.WriteByte(',')
			}
			child.format(sb)
		}
		sb.WriteByte('}')
	default:
		sb.WriteByte('~')
	}
}

// Fingerprint returns a 64-bit xxHash3 of the canonical form. Two codecs
// with the same fingerprint agree on the layout of every static field;
// Delimiter subtrees are opaque to it.
func (c BinaryChunk) Fingerprint() uint64 {
	return xxh3.HashString(c.String())
}
