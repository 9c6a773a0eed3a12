package trie

import "github.com/pkg/errors"

// Proof-verification errors, surfaced by the verifier pipeline as
// InvalidMPTProof.
var (
	ErrEmptyProof        = errors.New("trie: empty proof")
	ErrHashMismatch      = errors.New("trie: claimed node hash does not match keccak of its RLP")
	ErrKeyNotConsumed    = errors.New("trie: proof exhausted before key nibbles were consumed")
	ErrMalformedNode     = errors.New("trie: malformed RLP node")
	ErrUnexpectedBranch  = errors.New("trie: branch value present where none expected")
	ErrKeyNotFound       = errors.New("trie: key not present under root")
	ErrExtraProofNode    = errors.New("trie: trailing proof node was never referenced")
)
