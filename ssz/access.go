package ssz

// Get looks up a named field on a Container. On a Union, any name reads the
// current variant (after consuming the 1-byte selector). An invalid ob, a
// non-container/union definition, or an unknown field name all propagate
// the invalid sentinel rather than panicking, matching the "invalid ob has
// a null definition and is propagated through chained reads" contract.
func Get(ob Ob, fieldName string) Ob {
	if !ob.Valid() {
		return invalid
	}
	switch ob.Def.Kind {
	case KindContainer:
		spans, err := containerSpans(ob.Def, ob.Bytes)
		if err != nil {
			return invalid
		}
		idx := fieldIndex(ob.Def.Fields, fieldName)
		if idx < 0 {
			return invalid
		}
		sp := spans[idx]
		return Ob{Def: ob.Def.Fields[idx].Def, Bytes: ob.Bytes[sp.start:sp.end]}
	case KindUnion:
		variant, rest, err := unionSelect(ob.Def, ob.Bytes)
		if err != nil {
			return invalid
		}
		return Ob{Def: variant, Bytes: rest}
	default:
		return invalid
	}
}

// Selector returns the 1-byte variant selector of a Union ob, or -1 if ob is
// invalid or not a Union.
func Selector(ob Ob) int {
	if !ob.Valid() || ob.Def.Kind != KindUnion || len(ob.Bytes) < 1 {
		return -1
	}
	return int(ob.Bytes[0])
}

// At indexes into a Vector or List at position i. Fixed-size elements are
// sliced by offset arithmetic; variable-size elements are located via the
// embedded offset table.
func At(ob Ob, i int) Ob {
	if !ob.Valid() || i < 0 {
		return invalid
	}
	switch ob.Def.Kind {
	case KindVector:
		return atSequence(ob.Def.Elem, ob.Bytes, ob.Def.Length, -1, i)
	case KindList:
		return atSequence(ob.Def.Elem, ob.Bytes, -1, ob.Def.Max, i)
	default:
		return invalid
	}
}

func atSequence(elem *Def, raw []byte, count, maxLen, i int) Ob {
	if !elem.IsVariableSize() {
		size := elem.FixedSize()
		if size == 0 {
			return invalid
		}
		n := len(raw) / size
		if count >= 0 {
			n = count
		}
		if i >= n {
			return invalid
		}
		start := i * size
		if start+size > len(raw) {
			return invalid
		}
		return Ob{Def: elem, Bytes: raw[start : start+size]}
	}
	spans, err := offsetSpans(elem, raw, count, maxLen)
	if err != nil || i >= len(spans) {
		return invalid
	}
	sp := spans[i]
	return Ob{Def: elem, Bytes: raw[sp.start:sp.end]}
}

// Len returns the element count of a List, or the bit count of a BitList
// (derived from the sentinel bit), or zero for anything else.
func Len(ob Ob) uint32 {
	if !ob.Valid() {
		return 0
	}
	switch ob.Def.Kind {
	case KindList:
		if !ob.Def.Elem.IsVariableSize() {
			size := ob.Def.Elem.FixedSize()
			if size == 0 {
				return 0
			}
			return uint32(len(ob.Bytes) / size)
		}
		spans, err := offsetSpans(ob.Def.Elem, ob.Bytes, -1, ob.Def.Max)
		if err != nil {
			return 0
		}
		return uint32(len(spans))
	case KindBitList:
		if len(ob.Bytes) == 0 {
			return 0
		}
		last := ob.Bytes[len(ob.Bytes)-1]
		hi := highestSetBit(last)
		if hi < 0 {
			return 0
		}
		return uint32((len(ob.Bytes)-1)*8 + hi)
	case KindVector:
		return uint32(ob.Def.Length)
	case KindBitVector:
		return uint32(ob.Def.Bits)
	default:
		return 0
	}
}

// Uint64 reads a basic Uint ob (width <= 8) as a little-endian uint64.
func Uint64(ob Ob) (uint64, bool) {
	if !ob.Valid() || ob.Def.Kind != KindUint || ob.Def.Width > 8 || len(ob.Bytes) != ob.Def.Width {
		return 0, false
	}
	var v uint64
	for i, b := range ob.Bytes {
		v |= uint64(b) << (8 * uint(i))
	}
	return v, true
}

// Bool reads a Boolean ob.
func Bool(ob Ob) (bool, bool) {
	if !ob.Valid() || ob.Def.Kind != KindBoolean || len(ob.Bytes) != 1 {
		return false, false
	}
	return ob.Bytes[0] != 0, true
}
