package trie

import (
	"bytes"

	"github.com/ethereum/go-ethereum/crypto"
)

// Trie is a Merkle-Patricia trie built in memory from a sequence of
// (path, value) insertions. Paths are arbitrary byte strings: account and
// storage tries use a keccak-256 digest (32 bytes -> 64 nibbles), while
// transaction and receipt tries use the RLP encoding of the index.
type Trie struct {
	root *node
}

// New returns an empty trie.
func New() *Trie { return &Trie{} }

// Update inserts or replaces the value at path.
func (t *Trie) Update(path, value []byte) {
	t.root = insertAt(t.root, keybytesToNibbles(path), value)
}

// Hash returns the trie's root hash: the empty-trie root when no entries
// have been inserted, otherwise the keccak of the root node's RLP encoding.
// Unlike inner node references, the root is always hashed regardless of its
// encoded size.
func (t *Trie) Hash() []byte {
	return hashOf(t.root)
}

// Prove returns the ordered list of node RLP encodings from the root down to
// the leaf or branch holding path's value, suitable for Verify.
func (t *Trie) Prove(path []byte) ([][]byte, error) {
	nibbles := keybytesToNibbles(path)
	var proof [][]byte
	n := t.root
	pos := 0
	for {
		if n == nil {
			return nil, ErrKeyNotFound
		}
		proof = append(proof, encode(n))
		switch n.kind {
		case kindLeaf:
			if pos+len(n.path) != len(nibbles) || !bytes.Equal(n.path, nibbles[pos:]) {
				return nil, ErrKeyNotFound
			}
			return proof, nil
		case kindExtension:
			end := pos + len(n.path)
			if end > len(nibbles) || !bytes.Equal(n.path, nibbles[pos:end]) {
				return nil, ErrKeyNotFound
			}
			pos = end
			n = n.child
		case kindBranch:
			if nibbles[pos] == 16 {
				if n.value == nil {
					return nil, ErrKeyNotFound
				}
				return proof, nil
			}
			nib := nibbles[pos]
			pos++
			n = n.children[nib]
		}
	}
}

// insertAt is the standard MPT insertion recursion: descend matching
// leaf/extension paths, splitting into a branch at the first divergence
// point and re-rooting the displaced node as a shorter leaf/extension.
// key is always nibbles ending in the terminator value 16.
func insertAt(n *node, key []byte, value []byte) *node {
	if n == nil {
		return newLeaf(key, value)
	}
	switch n.kind {
	case kindLeaf:
		match := prefixLen(n.path, key)
		if match == len(n.path) && match == len(key) {
			n.invalidateHash()
			n.val = value
			return n
		}
		branch := newBranch()
		switch {
		case match < len(n.path) && n.path[match] == 16:
			branch.value = n.val
		case match < len(n.path):
			branch.children[n.path[match]] = insertAt(nil, n.path[match+1:], n.val)
		default:
			branch.value = n.val
		}
		switch {
		case match < len(key) && key[match] == 16:
			branch.value = value
		case match < len(key):
			branch.children[key[match]] = insertAt(nil, key[match+1:], value)
		default:
			branch.value = value
		}
		if match == 0 {
			return branch
		}
		return newExtension(cloneNibbles(key[:match]), branch)
	case kindExtension:
		match := prefixLen(n.path, key)
		if match == len(n.path) {
			n.invalidateHash()
			n.child = insertAt(n.child, key[match:], value)
			return n
		}
		branch := newBranch()
		if match == len(n.path)-1 {
			branch.children[n.path[match]] = n.child
		} else {
			branch.children[n.path[match]] = newExtension(cloneNibbles(n.path[match+1:]), n.child)
		}
		switch {
		case match < len(key) && key[match] == 16:
			branch.value = value
		case match < len(key):
			branch.children[key[match]] = insertAt(nil, key[match+1:], value)
		default:
			branch.value = value
		}
		if match == 0 {
			return branch
		}
		return newExtension(cloneNibbles(key[:match]), branch)
	default: // kindBranch
		n.invalidateHash()
		if key[0] == 16 {
			n.value = value
			return n
		}
		n.children[key[0]] = insertAt(n.children[key[0]], key[1:], value)
		return n
	}
}

func cloneNibbles(n []byte) []byte {
	out := make([]byte, len(n))
	copy(out, n)
	return out
}

// Verify decodes proofRLPs in order against root, walking path's nibbles,
// checking each claimed child reference matches the keccak (or inlined
// encoding) of the node it references, and returns the value found at the
// proof's terminus. It fails closed if the key's nibbles are not fully
// consumed by the time the proof is exhausted.
func Verify(root []byte, path []byte, proofRLPs [][]byte) ([]byte, error) {
	if len(proofRLPs) == 0 {
		return nil, ErrEmptyProof
	}
	nibbles := keybytesToNibbles(path)
	pos := 0
	idx := 0
	wantHash := root
	var pendingInline []byte

	for {
		var raw []byte
		if pendingInline != nil {
			raw = pendingInline
			pendingInline = nil
		} else {
			if idx >= len(proofRLPs) {
				return nil, ErrKeyNotConsumed
			}
			raw = proofRLPs[idx]
			idx++
			if got := crypto.Keccak256(raw); !bytes.Equal(got, wantHash) {
				return nil, ErrHashMismatch
			}
		}

		n, err := decodeNode(raw)
		if err != nil {
			return nil, err
		}

		switch n.kind {
		case kindLeaf:
			if pos+len(n.path) != len(nibbles) || !bytes.Equal(n.path, nibbles[pos:]) {
				return nil, ErrKeyNotFound
			}
			return n.val, nil
		case kindExtension:
			end := pos + len(n.path)
			if end > len(nibbles) || !bytes.Equal(n.path, nibbles[pos:end]) {
				return nil, ErrKeyNotFound
			}
			pos = end
			wantHash, pendingInline = nextRef(n.child)
		case kindBranch:
			if nibbles[pos] == 16 {
				if n.value == nil {
					return nil, ErrKeyNotFound
				}
				return n.value, nil
			}
			child := n.children[nibbles[pos]]
			pos++
			if child == nil {
				return nil, ErrKeyNotFound
			}
			wantHash, pendingInline = nextRef(child)
		}
	}
}
