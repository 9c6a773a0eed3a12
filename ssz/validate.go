package ssz

import "encoding/binary"

// fieldSpan is the byte range of one container field or list element inside
// the enclosing wire image.
type fieldSpan struct {
	start, end int
	variable   bool
}

// offsetWidth is the wire size, in bytes, of an SSZ variable-field offset.
const offsetWidth = 4

// fixedPortionSize returns the size of the "fixed part" of a container: the
// sum of each field's fixed width, or offsetWidth for variable fields.
func fixedPortionSize(fields []Field) int {
	size := 0
	for _, f := range fields {
		if f.Def.IsVariableSize() {
			size += offsetWidth
		} else {
			size += f.Def.FixedSize()
		}
	}
	return size
}

// Validate checks raw against def's wire-format invariants: offsets are
// monotonically non-decreasing, the first offset equals the fixed portion's
// length, the last offset does not exceed the total length, list/bitlist
// counts fit their bound, and the bitlist sentinel bit is present and is the
// highest set bit.
func Validate(def *Def, raw []byte) error {
	if def == nil {
		return ErrNilDef
	}
	switch def.Kind {
	case KindUint:
		if len(raw) != def.Width {
			return ErrTruncated
		}
		return nil
	case KindBoolean:
		if len(raw) != 1 {
			return ErrTruncated
		}
		return nil
	case KindBitVector:
		want := (def.Bits + 7) / 8
		if len(raw) != want {
			return ErrTruncated
		}
		return nil
	case KindBitList:
		return validateBitList(def, raw)
	case KindVector:
		return validateVector(def, raw)
	case KindList:
		return validateList(def, raw)
	case KindContainer:
		_, err := containerSpans(def, raw)
		return err
	case KindUnion:
		_, _, err := unionSelect(def, raw)
		return err
	case KindNone:
		return nil
	default:
		return ErrNilDef
	}
}

func validateBitList(def *Def, raw []byte) error {
	if len(raw) == 0 {
		return ErrBitListNoSentinel
	}
	// The sentinel bit is the highest set bit; find it.
	last := raw[len(raw)-1]
	if last == 0 {
		return ErrBitListNoSentinel
	}
	bitLen := (len(raw)-1)*8 + highestSetBit(last)
	maxBits := def.Bits
	if bitLen > maxBits {
		return ErrListTooLong
	}
	return nil
}

// highestSetBit returns the 0-based index of the highest set bit of b.
func highestSetBit(b byte) int {
	idx := -1
	for i := 0; i < 8; i++ {
		if b&(1<<uint(i)) != 0 {
			idx = i
		}
	}
	return idx
}

func validateVector(def *Def, raw []byte) error {
	if !def.Elem.IsVariableSize() {
		want := def.Length * def.Elem.FixedSize()
		if len(raw) != want {
			return ErrTruncated
		}
		return nil
	}
	spans, err := offsetSpans(def.Elem, raw, def.Length, -1)
	if err != nil {
		return err
	}
	for _, sp := range spans {
		if err := Validate(def.Elem, raw[sp.start:sp.end]); err != nil {
			return err
		}
	}
	return nil
}

func validateList(def *Def, raw []byte) error {
	if !def.Elem.IsVariableSize() {
		elemSize := def.Elem.FixedSize()
		if elemSize == 0 {
			if len(raw) != 0 {
				return ErrTruncated
			}
			return nil
		}
		if len(raw)%elemSize != 0 {
			return ErrTruncated
		}
		count := len(raw) / elemSize
		if count > def.Max {
			return ErrListTooLong
		}
		return nil
	}
	spans, err := offsetSpans(def.Elem, raw, -1, def.Max)
	if err != nil {
		return err
	}
	for _, sp := range spans {
		if err := Validate(def.Elem, raw[sp.start:sp.end]); err != nil {
			return err
		}
	}
	return nil
}

// offsetSpans reads a variable-element offset table (used by both Vector
// and List of variable-size elements) and returns the byte span of each
// element. count, when >= 0, fixes the expected element count (Vector);
// otherwise the count is derived from the first offset (List) and checked
// against maxLen.
func offsetSpans(elem *Def, raw []byte, count int, maxLen int) ([]fieldSpan, error) {
	if len(raw) == 0 {
		if count > 0 {
			return nil, ErrTruncated
		}
		return nil, nil
	}
	if count < 0 {
		if len(raw) < offsetWidth {
			return nil, ErrTruncated
		}
		first, err := readOffset(raw, 0)
		if err != nil {
			return nil, err
		}
		if first%offsetWidth != 0 {
			return nil, ErrOffsetMismatch
		}
		count = first / offsetWidth
		if maxLen >= 0 && count > maxLen {
			return nil, ErrListTooLong
		}
	}
	fixedLen := count * offsetWidth
	if len(raw) < fixedLen {
		return nil, ErrTruncated
	}
	offsets := make([]int, count)
	for i := 0; i < count; i++ {
		off, err := readOffset(raw, i*offsetWidth)
		if err != nil {
			return nil, err
		}
		offsets[i] = off
	}
	if count > 0 && offsets[0] != fixedLen {
		return nil, ErrOffsetMismatch
	}
	for i := 1; i < count; i++ {
		if offsets[i] < offsets[i-1] {
			return nil, ErrOffsetNonMono
		}
	}
	if count > 0 && offsets[count-1] > len(raw) {
		return nil, ErrOffsetOverrun
	}
	spans := make([]fieldSpan, count)
	for i := 0; i < count; i++ {
		end := len(raw)
		if i+1 < count {
			end = offsets[i+1]
		}
		if offsets[i] > end {
			return nil, ErrOffsetNonMono
		}
		spans[i] = fieldSpan{start: offsets[i], end: end, variable: true}
	}
	return spans, nil
}

func readOffset(raw []byte, at int) (int, error) {
	if at+offsetWidth > len(raw) {
		return 0, ErrOffsetOutOfRange
	}
	return int(binary.LittleEndian.Uint32(raw[at : at+offsetWidth])), nil
}

// containerSpans validates a container's wire image and returns the byte
// span of each field.
func containerSpans(def *Def, raw []byte) ([]fieldSpan, error) {
	fixedLen := fixedPortionSize(def.Fields)
	if len(raw) < fixedLen {
		return nil, ErrTruncated
	}
	spans := make([]fieldSpan, len(def.Fields))
	cursor := 0
	var offsets []int
	varIdx := []int{}
	for i, f := range def.Fields {
		if f.Def.IsVariableSize() {
			off, err := readOffset(raw, cursor)
			if err != nil {
				return nil, err
			}
			offsets = append(offsets, off)
			varIdx = append(varIdx, i)
			cursor += offsetWidth
		} else {
			size := f.Def.FixedSize()
			spans[i] = fieldSpan{start: cursor, end: cursor + size}
			cursor += size
		}
	}
	if len(offsets) > 0 && offsets[0] != fixedLen {
		return nil, ErrOffsetMismatch
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return nil, ErrOffsetNonMono
		}
	}
	if len(offsets) > 0 && offsets[len(offsets)-1] > len(raw) {
		return nil, ErrOffsetOverrun
	}
	for i, off := range offsets {
		end := len(raw)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		spans[varIdx[i]] = fieldSpan{start: off, end: end, variable: true}
	}
	for i, f := range def.Fields {
		sp := spans[i]
		if sp.end < sp.start || sp.end > len(raw) {
			return nil, ErrOffsetOverrun
		}
		if f.Optional && sp.start == sp.end {
			continue // absent optional field, zero-length span is fine
		}
	}
	return spans, nil
}

// unionSelect reads a union's 1-byte selector and returns the selected
// variant's definition plus the remaining payload bytes.
func unionSelect(def *Def, raw []byte) (*Def, []byte, error) {
	if len(raw) < 1 {
		return nil, nil, ErrTruncated
	}
	sel := int(raw[0])
	if sel >= len(def.Fields) {
		return nil, nil, ErrUnknownSelector
	}
	return def.Fields[sel].Def, raw[1:], nil
}
