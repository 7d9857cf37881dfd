// Package typemap turns native column type names into the short glyphs
// shown next to columns in the catalog and result headers.
package typemap

import "strings"

// Unknown is returned for any type a mapper does not recognize.
const Unknown = "?"

// Mapper maps a native type name to a glyph. Implementations never fail.
type Mapper interface {
	Short(native string) string
}

// MapperFunc adapts a plain function to Mapper.
type MapperFunc func(native string) string

func (f MapperFunc) Short(native string) string { return f(native) }

// Table is a case-sensitive lookup keyed by base type name. Parameters are
// dropped before lookup (DECIMAL(10,2) -> DECIMAL) and array suffixes wrap
// the element glyph (INTEGER[] -> [#]).
type Table map[string]string

func (t Table) Short(native string) string {
	native = strings.TrimSpace(native)
	if elem, ok := arrayElem(native); ok {
		return "[" + t.Short(elem) + "]"
	}
	if g, ok := t[Base(native)]; ok {
		return g
	}
	return Unknown
}

// Base strips type parameters and array suffixes from a native type name.
func Base(native string) string {
	if i := strings.IndexAny(native, "(["); i >= 0 {
		native = native[:i]
	}
	return strings.TrimSpace(native)
}

// arrayElem reports whether native ends in an array suffix ("[]" or
// "[N]") outside of any parentheses, and returns the element type.
func arrayElem(native string) (string, bool) {
	if !strings.HasSuffix(native, "]") {
		return "", false
	}
	open := strings.LastIndexByte(native, '[')
	if open <= 0 {
		return "", false
	}
	for _, r := range native[open+1 : len(native)-1] {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	elem := native[:open]
	if strings.Count(elem, "(") != strings.Count(elem, ")") {
		return "", false
	}
	return elem, true
}

// Must returns m's glyph for native, substituting Unknown for an empty
// result so callers always have something to render.
func Must(m Mapper, native string) string {
	if m == nil {
		return Unknown
	}
	if g := m.Short(native); g != "" {
		return g
	}
	return Unknown
}
