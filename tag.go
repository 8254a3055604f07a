package comprez

import (
	"fmt"
	"strconv"
	"strings"

	comperrors "github.com/tamirms/comprez/errors"
)

// tagKey is the struct tag key read by Derive.
const tagKey = "comprez"

// fieldTag is the parsed form of a `comprez:"..."` struct tag.
//
//	comprez:"max=300"          integer bound
//	comprez:"max=15,len=8"     slice of at most 8 elements, each <= 15
//	comprez:"max=15,len=8,slots"
//	comprez:"-"                field is not encoded
type fieldTag struct {
	skip   bool
	bound  Bound
	maxLen int
	hasLen bool
	slots  bool
}

// parseTag parses a tag value. An empty tag is valid and declares nothing.
func parseTag(tag string) (fieldTag, error) {
	var ft fieldTag
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ft, nil
	}
	if tag == "-" {
		ft.skip = true
		return ft, nil
	}
	for _, opt := range strings.Split(tag, ",") {
		key, val, hasVal := strings.Cut(strings.TrimSpace(opt), "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		switch key {
		case "max":
			if ft.bound.Set {
				return fieldTag{}, fmt.Errorf("%w: %q", comperrors.ErrDuplicateBound, tag)
			}
			if !hasVal || val == "" {
				return fieldTag{}, fmt.Errorf("%w: max has no value in %q", comperrors.ErrMalformedBound, tag)
			}
			m, err := strconv.ParseUint(val, 0, 64)
			if err != nil {
				return fieldTag{}, fmt.Errorf("%w: max=%s: %w", comperrors.ErrMalformedBound, val, err)
			}
			ft.bound = Max(m)
		case "len":
			if ft.hasLen {
				return fieldTag{}, fmt.Errorf("%w: duplicate len in %q", comperrors.ErrMalformedBound, tag)
			}
			n, err := strconv.Atoi(val)
			if !hasVal || err != nil || n < 0 {
				return fieldTag{}, fmt.Errorf("%w: len=%s", comperrors.ErrMissingLength, val)
			}
			ft.maxLen, ft.hasLen = n, true
		case "slots":
			if hasVal {
				return fieldTag{}, fmt.Errorf("%w: slots takes no value in %q", comperrors.ErrMalformedBound, tag)
			}
			ft.slots = true
		default:
			return fieldTag{}, fmt.Errorf("%w: unknown option %q in %q", comperrors.ErrMalformedBound, key, tag)
		}
	}
	return ft, nil
}
