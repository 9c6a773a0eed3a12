// Package trie implements the Merkle-Patricia trie used to authenticate
// Ethereum's account, storage, transaction, and receipt data: insertion,
// root hashing, and proof construction/verification. Node shapes, compact
// path encoding, and keccak/RLP hashing follow go-ethereum's trie package,
// the engine's execution-layer reference implementation.
package trie

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// kind tags the variant a node value holds.
type kind int

const (
	kindLeaf kind = iota
	kindExtension
	kindBranch
)

// node is the MPT node tagged variant: Leaf{path,value}, Extension{path,child},
// Branch{children[16],value}. Every node caches its RLP encoding (inline)
// and, once computed, its keccak hash, so a parent never re-encodes a child
// just to link to it.
type node struct {
	kind kind

	path  []byte // nibble path (Leaf, Extension); compact-encoded only on the wire
	val   []byte // Leaf: the stored value
	child *node  // Extension: the next node

	children [16]*node // Branch
	value    []byte    // Branch: value stored when a key's nibbles end exactly here

	hash   []byte // 32-byte keccak, cached once computed
	inline []byte // RLP encoding, cached once computed
}

func newLeaf(path, val []byte) *node          { return &node{kind: kindLeaf, path: path, val: val} }
func newExtension(path []byte, c *node) *node { return &node{kind: kindExtension, path: path, child: c} }
func newBranch() *node                        { return &node{kind: kindBranch} }

// invalidateHash clears n's cached encodings so they are recomputed after a
// structural mutation below it.
func (n *node) invalidateHash() {
	if n == nil {
		return
	}
	n.hash = nil
	n.inline = nil
}

// encode returns node n's raw RLP encoding, computing and caching it.
func encode(n *node) []byte {
	if n == nil {
		empty, _ := rlp.EncodeToBytes([]byte{})
		return empty
	}
	if n.inline != nil {
		return n.inline
	}
	var out []byte
	var err error
	switch n.kind {
	case kindLeaf:
		out, err = rlp.EncodeToBytes([][]byte{hexToCompact(n.path), n.val})
	case kindExtension:
		out, err = rlp.EncodeToBytes([]rlp.RawValue{rawBytes(hexToCompact(n.path)), refRLP(n.child)})
	case kindBranch:
		items := make([]rlp.RawValue, 17)
		for i, c := range n.children {
			items[i] = refRLP(c)
		}
		items[16] = rawBytes(n.value)
		out, err = rlp.EncodeToBytes(items)
	}
	if err != nil {
		out = nil
	}
	n.inline = out
	return out
}

// hashOf returns node n's 32-byte keccak of its RLP encoding.
func hashOf(n *node) []byte {
	if n == nil {
		h := crypto.Keccak256(encode(nil))
		return h
	}
	if n.hash != nil {
		return n.hash
	}
	h := crypto.Keccak256(encode(n))
	n.hash = h
	return h
}

// rawBytes RLP-string-encodes b, returning the result as a RawValue so it
// can sit alongside already-encoded child references in a manually built
// list.
func rawBytes(b []byte) rlp.RawValue {
	enc, _ := rlp.EncodeToBytes(b)
	return enc
}

// refRLP returns the RLP item used to reference child n inside its parent's
// encoding: the 32-byte keccak, string-encoded, once n's own encoding
// reaches 32 bytes; below that, n's own encoding is embedded verbatim
// (already a valid RLP item), the "short node inlining" optimization.
func refRLP(n *node) rlp.RawValue {
	if n == nil {
		return rawBytes(nil)
	}
	if n.hash != nil && n.inline == nil {
		return rawBytes(n.hash)
	}
	enc := encode(n)
	if len(enc) >= 32 {
		return rawBytes(hashOf(n))
	}
	return rlp.RawValue(enc)
}

// decodeNode parses one proof entry's RLP encoding into a node one level
// deep: a leaf/extension/branch's own shape is fully decoded, but its
// children are left as reference stubs (hash or inlined bytes) rather than
// recursively decoded, matching how a proof is walked one entry at a time.
func decodeNode(enc []byte) (*node, error) {
	var raw []rlp.RawValue
	if err := rlp.DecodeBytes(enc, &raw); err != nil {
		return nil, errors.Wrap(ErrMalformedNode, err.Error())
	}
	switch len(raw) {
	case 2:
		var path []byte
		if err := rlp.DecodeBytes(raw[0], &path); err != nil {
			return nil, errors.Wrap(ErrMalformedNode, err.Error())
		}
		hexPath := compactToHex(path)
		if hasTerm(hexPath) {
			var val []byte
			if err := rlp.DecodeBytes(raw[1], &val); err != nil {
				return nil, errors.Wrap(ErrMalformedNode, err.Error())
			}
			return &node{kind: kindLeaf, path: hexPath, val: val, inline: enc}, nil
		}
		return &node{kind: kindExtension, path: hexPath, child: refStub(raw[1]), inline: enc}, nil
	case 17:
		n := &node{kind: kindBranch, inline: enc}
		for i := 0; i < 16; i++ {
			n.children[i] = refStub(raw[i])
		}
		var val []byte
		if err := rlp.DecodeBytes(raw[16], &val); err == nil && len(val) > 0 {
			n.value = val
		}
		return n, nil
	default:
		return nil, errors.Wrapf(ErrMalformedNode, "unexpected field count %d", len(raw))
	}
}

// refStub wraps a raw child reference decoded from a parent node - either a
// 32-byte hash string or an inlined nested-list encoding - in a stub node
// whose only valid further use is as the expected reference for the next
// proof entry (via nextRef); it is never itself decoded into a full node
// shape, because recursive decoding one entry at a time is the proof's
// granularity.
func refStub(v rlp.RawValue) *node {
	if len(v) == 0 {
		return nil
	}
	if v[0] >= 0xc0 {
		return &node{kind: kindBranch, inline: []byte(v)}
	}
	var h []byte
	if err := rlp.DecodeBytes(v, &h); err != nil || len(h) == 0 {
		return nil
	}
	return &node{kind: kindBranch, hash: h}
}

// nextRef reports how to obtain the next node in a proof walk from a
// decoded reference stub: either a hash that the next proof entry must
// match, or bytes that are themselves the next node's encoding (an inlined
// child, consuming no additional proof entry).
func nextRef(stub *node) (wantHash []byte, inline []byte) {
	if stub == nil {
		return nil, nil
	}
	if stub.hash != nil {
		return stub.hash, nil
	}
	return nil, stub.inline
}
