package ssz

import "math/bits"

// Gindex is a 1-based, heap-style generalized index into an SSZ Merkle
// tree: root = 1, left child of n = 2n, right child = 2n+1.
type Gindex uint64

// Depth returns a gindex's distance from the root (bit-length minus one).
func (g Gindex) Depth() int {
	if g == 0 {
		return 0
	}
	return bits.Len64(uint64(g)) - 1
}

// Sibling returns the other child of g's parent.
func (g Gindex) Sibling() Gindex {
	return g ^ 1
}

// Parent returns g's parent gindex.
func (g Gindex) Parent() Gindex {
	return g / 2
}

// AddGindex composes a sub-tree gindex b into an outer tree at position a:
// add(a, b) = (a << depth(b)) | (b & mask(depth(b))). The identity
// add(1, x) = x holds because 1 << depth(x) is exactly x's own leading bit,
// and the mask keeps every bit of x below it.
func AddGindex(a, b Gindex) Gindex {
	d := b.Depth()
	mask := Gindex((uint64(1) << uint(d)) - 1)
	return (a << uint(d)) | (b & mask)
}

// depthForCount returns ceil(log2(n)) for n >= 1, and 0 for n <= 1.
func depthForCount(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// ContainerFieldGindex returns gindex(C, fieldName) for a container
// definition: 2^depth(C) + (i-1) where i is the field's 1-based position,
// satisfying the quantified invariant `gindex(C, fi) = 2^depth(C) + (i-1)`.
func ContainerFieldGindex(def *Def, fieldName string) (Gindex, error) {
	if def == nil || def.Kind != KindContainer {
		return 0, ErrNotIndexable
	}
	idx := fieldIndex(def.Fields, fieldName)
	if idx < 0 {
		return 0, ErrFieldNotFound
	}
	depth := depthForCount(len(def.Fields))
	return Gindex(uint64(1)<<uint(depth)) + Gindex(idx), nil
}

// PathStep is one step of a field-path gindex query: either a container
// field name or a vector/list element index.
type PathStep struct {
	Field string
	Index int
	// IsIndex distinguishes an element index (zero-valued Field, Index 0 is
	// ambiguous with "field named ''") from a field-name step.
	IsIndex bool
}

// FieldStep builds a container-field path step.
func FieldStep(name string) PathStep { return PathStep{Field: name} }

// IndexStep builds a vector/list element path step.
func IndexStep(i int) PathStep { return PathStep{Index: i, IsIndex: true} }

// GindexOf computes the generalized index of a field/element path starting
// from the root of def, composing each step with AddGindex so that
// AddGindex(AddGindex(1, g1), g2) == AddGindex(g1, g2) continues to hold for
// any prefix of the path.
func GindexOf(def *Def, path ...PathStep) (Gindex, *Def, error) {
	cur := def
	g := Gindex(1)
	for _, step := range path {
		switch {
		case !step.IsIndex && cur.Kind == KindContainer:
			local, err := ContainerFieldGindex(cur, step.Field)
			if err != nil {
				return 0, nil, err
			}
			g = AddGindex(g, local)
			idx := fieldIndex(cur.Fields, step.Field)
			cur = cur.Fields[idx].Def
		case step.IsIndex && cur.Kind == KindVector:
			local, next, err := vectorElemGindex(cur, step.Index)
			if err != nil {
				return 0, nil, err
			}
			g = AddGindex(g, local)
			cur = next
		case step.IsIndex && cur.Kind == KindList:
			local, next, err := listElemGindex(cur, step.Index)
			if err != nil {
				return 0, nil, err
			}
			g = AddGindex(g, local)
			cur = next
		default:
			return 0, nil, ErrNotIndexable
		}
	}
	return g, cur, nil
}

// vectorElemGindex returns the local gindex (relative to the vector's own
// root) of element i, and the definition a further path step should
// continue against (nil for basic elements, whose chunk has no sub-
// structure a path can descend into).
func vectorElemGindex(def *Def, i int) (Gindex, *Def, error) {
	if def.Elem.IsBasic() {
		perChunk := 32 / def.Elem.basicSize()
		if perChunk == 0 {
			perChunk = 1
		}
		limit := (def.Length + perChunk - 1) / perChunk
		depth := depthForCount(limit)
		chunkIdx := i / perChunk
		if chunkIdx >= limit {
			return 0, nil, ErrIndexOutOfRange
		}
		return Gindex(uint64(1)<<uint(depth)) + Gindex(chunkIdx), nil, nil
	}
	if i >= def.Length {
		return 0, nil, ErrIndexOutOfRange
	}
	depth := depthForCount(def.Length)
	return Gindex(uint64(1)<<uint(depth)) + Gindex(i), def.Elem, nil
}

// listElemGindex is vectorElemGindex's List analogue: the data subtree of a
// list lives under local gindex 2 (the left child of the list's own root,
// whose right child 3 holds the length mixin), so every element gindex is
// first composed with 2.
func listElemGindex(def *Def, i int) (Gindex, *Def, error) {
	var local Gindex
	var next *Def
	if def.Elem.IsBasic() {
		perChunk := 32 / def.Elem.basicSize()
		if perChunk == 0 {
			perChunk = 1
		}
		limit := (def.Max + perChunk - 1) / perChunk
		depth := depthForCount(limit)
		chunkIdx := i / perChunk
		if chunkIdx >= limit {
			return 0, nil, ErrIndexOutOfRange
		}
		local = Gindex(uint64(1)<<uint(depth)) + Gindex(chunkIdx)
	} else {
		if i >= def.Max {
			return 0, nil, ErrIndexOutOfRange
		}
		depth := depthForCount(def.Max)
		local = Gindex(uint64(1)<<uint(depth)) + Gindex(i)
		next = def.Elem
	}
	return AddGindex(2, local), next, nil
}

// ListLengthGindex returns the gindex of a list/bitlist's length mixin chunk
// relative to its own root (always 3: the right child of root 1).
func ListLengthGindex() Gindex { return 3 }
