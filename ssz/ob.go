package ssz

import (
	"strings"
	"unicode"
)

// Ob is a (definition, bytes-view) pair: a lens over a byte slice, never an
// owner of it. An Ob with a nil Def is invalid and propagates through
// chained Get/At calls rather than panicking.
type Ob struct {
	Def   *Def
	Bytes []byte
}

// Valid reports whether ob carries a usable definition.
func (ob Ob) Valid() bool {
	return ob.Def != nil
}

// New wraps raw with def without validating it; callers that need wire
// validation should call Validate first.
func New(def *Def, raw []byte) Ob {
	return Ob{Def: def, Bytes: raw}
}

// invalid is the sentinel propagated by chained accessors on failure.
var invalid = Ob{}

// fieldIndex resolves name against a container/union's field list, trying
// an exact match first and then a CamelCase -> snake_case rewrite.
func fieldIndex(fields []Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	snake := toSnakeCase(name)
	for i, f := range fields {
		if f.Name == snake || toSnakeCase(f.Name) == snake {
			return i
		}
	}
	return -1
}

// toSnakeCase rewrites CamelCase / PascalCase identifiers to snake_case,
// e.g. "BlockHash" -> "block_hash", "StateRootA" -> "state_root_a".
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
