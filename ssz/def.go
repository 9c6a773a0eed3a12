// Package ssz implements a definition-driven SSZ codec: a single set of
// algorithms (validate, get, at, len, hash-tree-root, gindex, multi-proof)
// that operate over a runtime-described ssz_def tagged variant rather than
// per-type generated code. Definitions may be constructed at runtime keyed
// by fork id, matching the "avoid any attempt to generate per-type code"
// design note.
package ssz

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "ssz")

// Kind tags the variant a Def describes.
type Kind int

const (
	KindNone Kind = iota
	KindUint
	KindBoolean
	KindContainer
	KindVector
	KindList
	KindBitVector
	KindBitList
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "Uint"
	case KindBoolean:
		return "Boolean"
	case KindContainer:
		return "Container"
	case KindVector:
		return "Vector"
	case KindList:
		return "List"
	case KindBitVector:
		return "BitVector"
	case KindBitList:
		return "BitList"
	case KindUnion:
		return "Union"
	default:
		return "None"
	}
}

// Field is one (name, definition) pair of a Container or Union.
type Field struct {
	Name string
	Def  *Def

	// OptMask marks this field as the OPT_MASK bitfield of its enclosing
	// container: a bitfield in the wire image indicating which other
	// optional sibling fields are present. OptWidth is 4 or 8.
	OptMask  bool
	OptWidth int

	// Optional, when true, means this field may be absent from the wire
	// image entirely (its presence bit lives in the sibling OPT_MASK
	// field); absent fields hash as zero chunks.
	Optional bool
}

// Def is the tagged variant describing one SSZ type. Only the fields
// relevant to Kind are meaningful; the zero value of the others is ignored.
type Def struct {
	Kind Kind

	// Uint
	Width int

	// Container / Union
	Fields []Field

	// Vector / List
	Elem   *Def
	Length int // Vector
	Max    int // List.max_length

	// BitVector / BitList
	Bits int // BitVector.bits or BitList.max_bits
}

// Uint builds a Uint definition of the given byte width (1, 2, 4, 8, or 32).
func Uint(width int) *Def { return &Def{Kind: KindUint, Width: width} }

// Boolean builds a Boolean definition.
func Boolean() *Def { return &Def{Kind: KindBoolean} }

// Container builds a Container definition from an ordered field list.
func Container(fields ...Field) *Def { return &Def{Kind: KindContainer, Fields: fields} }

// Vector builds a fixed-count Vector definition.
func Vector(elem *Def, length int) *Def { return &Def{Kind: KindVector, Elem: elem, Length: length} }

// List builds a variable-count List definition.
func List(elem *Def, maxLength int) *Def { return &Def{Kind: KindList, Elem: elem, Max: maxLength} }

// BitVector builds a fixed-bit-count BitVector definition.
func BitVector(bits int) *Def { return &Def{Kind: KindBitVector, Bits: bits} }

// BitList builds a variable-bit-count BitList definition.
func BitList(maxBits int) *Def { return &Def{Kind: KindBitList, Bits: maxBits} }

// Union builds a tagged-union definition; variant 0 may be KindNone to model
// an optional value.
func Union(variants ...Field) *Def { return &Def{Kind: KindUnion, Fields: variants} }

// None is the unit type.
func None() *Def { return &Def{Kind: KindNone} }

// IsBasic reports whether d is a Uint or Boolean: a type whose values pack
// directly into chunks rather than contributing their own subtree.
func (d *Def) IsBasic() bool {
	return d != nil && (d.Kind == KindUint || d.Kind == KindBoolean)
}

// basicSize returns the wire/packing size in bytes of a basic type.
func (d *Def) basicSize() int {
	if d.Kind == KindBoolean {
		return 1
	}
	return d.Width
}

// IsVariableSize reports whether d's wire encoding has a length that varies
// with content, as opposed to a fixed byte width computable from the
// definition alone.
func (d *Def) IsVariableSize() bool {
	switch d.Kind {
	case KindUint, KindBoolean, KindBitVector:
		return false
	case KindVector:
		return d.Elem.IsVariableSize()
	case KindContainer:
		for _, f := range d.Fields {
			if f.Def.IsVariableSize() {
				return true
			}
		}
		return false
	default: // List, BitList, Union
		return true
	}
}

// FixedSize returns the fixed wire width of d, valid only when
// IsVariableSize is false. Variable fields inside a fixed Vector are
// impossible by construction (Vector.IsVariableSize would be true), so this
// never recurses into an offset table.
func (d *Def) FixedSize() int {
	switch d.Kind {
	case KindUint:
		return d.Width
	case KindBoolean:
		return 1
	case KindBitVector:
		return (d.Bits + 7) / 8
	case KindVector:
		return d.Length * d.Elem.FixedSize()
	case KindContainer:
		size := 0
		for _, f := range d.Fields {
			size += f.Def.FixedSize()
		}
		return size
	default:
		return 0
	}
}
