package ssz

import "github.com/pkg/errors"

// Tree materializes every node of ob's SSZ Merkle tree, keyed by the gindex
// relative to ob's own root (gindex 1). It is the shared engine behind
// HashTreeRoot and the multi-proof builder: both need access to interior
// node hashes, not just the final root.
func Tree(ob Ob) (map[Gindex][32]byte, error) {
	if !ob.Valid() {
		return nil, ErrNilDef
	}
	switch ob.Def.Kind {
	case KindUint, KindBoolean:
		return map[Gindex][32]byte{1: packBasic(ob.Bytes)}, nil
	case KindBitVector:
		return merkleTreeNodes(packBits(ob.Bytes), bitChunks(ob.Def.Bits)), nil
	case KindBitList:
		return bitListTree(ob)
	case KindVector:
		return vectorTree(ob)
	case KindList:
		return listTree(ob)
	case KindContainer:
		return containerTree(ob)
	case KindUnion:
		return unionTree(ob)
	case KindNone:
		return map[Gindex][32]byte{1: {}}, nil
	default:
		return nil, ErrNilDef
	}
}

// HashTreeRoot computes the SSZ hash-tree-root of ob.
func HashTreeRoot(ob Ob) ([32]byte, error) {
	nodes, err := Tree(ob)
	if err != nil {
		return [32]byte{}, err
	}
	return nodes[1], nil
}

func packBasic(raw []byte) [32]byte {
	var chunk [32]byte
	copy(chunk[:], raw)
	return chunk
}

// packBits copies raw (already in wire bit-packed form) into 32-byte chunks.
func packBits(raw []byte) [][32]byte {
	n := (len(raw) + 31) / 32
	chunks := make([][32]byte, n)
	for i := 0; i < n; i++ {
		start := i * 32
		end := start + 32
		if end > len(raw) {
			end = len(raw)
		}
		copy(chunks[i][:], raw[start:end])
	}
	return chunks
}

func bitChunks(bits int) int {
	return ((bits + 7) / 8 + 31) / 32
}

// mergeOffset copies every entry of child (keyed relative to the child's own
// root) into dst, composed under base via AddGindex. The child's root entry
// (gindex 1) is intentionally skipped: callers already place that value at
// `base` itself before merging.
func mergeOffset(dst map[Gindex][32]byte, base Gindex, child map[Gindex][32]byte) {
	for g, v := range child {
		if g == 1 {
			continue
		}
		dst[AddGindex(base, g)] = v
	}
}

func packValuesToChunks(elem *Def, raw []byte, count int) [][32]byte {
	size := elem.basicSize()
	if size == 0 {
		return nil
	}
	perChunk := 32 / size
	if perChunk == 0 {
		perChunk = 1
	}
	nChunks := (count + perChunk - 1) / perChunk
	chunks := make([][32]byte, nChunks)
	for i := 0; i < count; i++ {
		start := i * size
		end := start + size
		if end > len(raw) {
			break
		}
		ci := i / perChunk
		off := (i % perChunk) * size
		copy(chunks[ci][off:off+size], raw[start:end])
	}
	return chunks
}

func vectorTree(ob Ob) (map[Gindex][32]byte, error) {
	def := ob.Def
	if def.Elem.IsBasic() {
		chunks := packValuesToChunks(def.Elem, ob.Bytes, def.Length)
		limit := bits32ChunkLimit(def.Elem.basicSize(), def.Length)
		return merkleTreeNodes(chunks, limit), nil
	}
	n := def.Length
	chunks := make([][32]byte, n)
	combined := map[Gindex][32]byte{}
	depth := depthForCount(n)
	for i := 0; i < n; i++ {
		elemOb := At(ob, i)
		childNodes, err := Tree(elemOb)
		if err != nil {
			return nil, errors.Wrapf(err, "ssz: vector element %d", i)
		}
		chunks[i] = childNodes[1]
		localGindex := Gindex(uint64(1)<<uint(depth)) + Gindex(i)
		mergeOffset(combined, localGindex, childNodes)
	}
	top := merkleTreeNodes(chunks, n)
	for g, v := range top {
		combined[g] = v
	}
	return combined, nil
}

func bits32ChunkLimit(elemSize, count int) int {
	perChunk := 32 / elemSize
	if perChunk == 0 {
		perChunk = 1
	}
	return (count + perChunk - 1) / perChunk
}

func listTree(ob Ob) (map[Gindex][32]byte, error) {
	def := ob.Def
	n := int(Len(ob))
	var dataNodes map[Gindex][32]byte
	combined := map[Gindex][32]byte{}
	if def.Elem.IsBasic() {
		chunks := packValuesToChunks(def.Elem, ob.Bytes, n)
		limit := bits32ChunkLimit(def.Elem.basicSize(), def.Max)
		dataNodes = merkleTreeNodes(chunks, limit)
	} else {
		chunks := make([][32]byte, n)
		depth := depthForCount(def.Max)
		for i := 0; i < n; i++ {
			elemOb := At(ob, i)
			childNodes, err := Tree(elemOb)
			if err != nil {
				return nil, errors.Wrapf(err, "ssz: list element %d", i)
			}
			chunks[i] = childNodes[1]
			localGindex := Gindex(uint64(1)<<uint(depth)) + Gindex(i)
			mergeOffset(combined, AddGindex(2, localGindex), childNodes)
		}
		dataNodes = merkleTreeNodes(chunks, def.Max)
	}
	mergeOffset(combined, 2, dataNodes)
	lengthChunk := lengthMixinChunk(uint64(n))
	combined[2] = dataNodes[1]
	combined[3] = lengthChunk
	combined[1] = sha256Pair(combined[2], combined[3])
	return combined, nil
}

func bitListTree(ob Ob) (map[Gindex][32]byte, error) {
	def := ob.Def
	n := Len(ob)
	// Mask off the sentinel bit before hashing, per spec.
	masked := make([]byte, len(ob.Bytes))
	copy(masked, ob.Bytes)
	if len(masked) > 0 {
		last := masked[len(masked)-1]
		hi := highestSetBit(last)
		if hi >= 0 {
			masked[len(masked)-1] = last &^ (1 << uint(hi))
		}
	}
	limit := bitChunks(def.Bits)
	dataNodes := merkleTreeNodes(packBits(masked), limit)
	combined := map[Gindex][32]byte{}
	mergeOffset(combined, 2, dataNodes)
	combined[2] = dataNodes[1]
	combined[3] = lengthMixinChunk(uint64(n))
	combined[1] = sha256Pair(combined[2], combined[3])
	return combined, nil
}

func containerTree(ob Ob) (map[Gindex][32]byte, error) {
	def := ob.Def
	spans, err := containerSpans(def, ob.Bytes)
	if err != nil {
		return nil, err
	}
	combined := map[Gindex][32]byte{}
	chunks := make([][32]byte, len(def.Fields))
	depth := depthForCount(len(def.Fields))
	for i, f := range def.Fields {
		sp := spans[i]
		fieldBytes := ob.Bytes[sp.start:sp.end]
		if f.Def.IsBasic() || f.Def.Kind == KindBitVector || f.OptMask {
			chunks[i] = packBasicPadded(fieldBytes)
			continue
		}
		childOb := Ob{Def: f.Def, Bytes: fieldBytes}
		childNodes, err := Tree(childOb)
		if err != nil {
			return nil, errors.Wrapf(err, "ssz: field %q", f.Name)
		}
		chunks[i] = childNodes[1]
		localGindex := Gindex(uint64(1)<<uint(depth)) + Gindex(i)
		mergeOffset(combined, localGindex, childNodes)
	}
	top := merkleTreeNodes(chunks, len(def.Fields))
	for g, v := range top {
		combined[g] = v
	}
	return combined, nil
}

func packBasicPadded(raw []byte) [32]byte {
	var chunk [32]byte
	n := len(raw)
	if n > 32 {
		n = 32
	}
	copy(chunk[:n], raw[:n])
	return chunk
}

// unionTree hashes a Union as a 2-leaf tree (hash(variant_value),
// u64_le(selector)), mixed in identically to a list length.
func unionTree(ob Ob) (map[Gindex][32]byte, error) {
	variant, rest, err := unionSelect(ob.Def, ob.Bytes)
	if err != nil {
		return nil, err
	}
	combined := map[Gindex][32]byte{}
	var valueRoot [32]byte
	if variant.Kind != KindNone {
		childNodes, err := Tree(Ob{Def: variant, Bytes: rest})
		if err != nil {
			return nil, errors.Wrap(err, "ssz: union variant")
		}
		valueRoot = childNodes[1]
		mergeOffset(combined, 2, childNodes)
	}
	sel := uint64(Selector(ob))
	combined[2] = valueRoot
	combined[3] = lengthMixinChunk(sel)
	combined[1] = sha256Pair(combined[2], combined[3])
	return combined, nil
}

// lengthMixinChunk renders n as the little-endian 8-byte mixin chunk used
// both for SSZ length mixins and union selector mixins.
func lengthMixinChunk(n uint64) [32]byte {
	var chunk [32]byte
	for i := 0; i < 8; i++ {
		chunk[i] = byte(n >> (8 * uint(i)))
	}
	return chunk
}

// merkleTreeNodes builds the full padded binary Merkle tree over chunks,
// zero-padded up to max(len(chunks), limit) rounded to the next power of
// two, and returns every node keyed by its local gindex (root = 1).
func merkleTreeNodes(chunks [][32]byte, limit int) map[Gindex][32]byte {
	size := limit
	if len(chunks) > size {
		size = len(chunks)
	}
	size = nextPow2(size)
	if size == 0 {
		size = 1
	}
	depth := 0
	if size > 1 {
		depth = bits64Len(size) - 1
	}
	nodes := make(map[Gindex][32]byte, 2*size)
	for i := 0; i < size; i++ {
		var c [32]byte
		if i < len(chunks) {
			c = chunks[i]
		}
		nodes[Gindex(uint64(1)<<uint(depth))+Gindex(i)] = c
	}
	for d := depth - 1; d >= 0; d-- {
		levelSize := 1 << uint(d)
		for i := 0; i < levelSize; i++ {
			g := Gindex(uint64(1)<<uint(d)) + Gindex(i)
			left := nodes[2*g]
			right := nodes[2*g+1]
			nodes[g] = sha256Pair(left, right)
		}
	}
	if len(nodes) == 0 {
		nodes[1] = [32]byte{}
	}
	return nodes
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func bits64Len(n int) int {
	l := 0
	for (1 << uint(l)) < n {
		l++
	}
	return l + 1
}
