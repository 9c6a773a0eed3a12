package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestTrieInsertAndProveSingleEntry(t *testing.T) {
	tr := New()
	key := crypto.Keccak256([]byte("account-a"))
	tr.Update(key, []byte("value-a"))

	proof, err := tr.Prove(key)
	require.NoError(t, err)
	require.NotEmpty(t, proof)

	got, err := Verify(tr.Hash(), key, proof)
	require.NoError(t, err)
	require.Equal(t, []byte("value-a"), got)
}

func TestTrieInsertAndProveManyEntries(t *testing.T) {
	tr := New()
	entries := map[string][]byte{}
	for i := 0; i < 200; i++ {
		k := crypto.Keccak256([]byte{byte(i), byte(i >> 8)})
		v := append([]byte("val-"), byte(i))
		entries[string(k)] = v
		tr.Update(k, v)
	}

	root := tr.Hash()
	for k, v := range entries {
		proof, err := tr.Prove([]byte(k))
		require.NoError(t, err)
		got, err := Verify(root, []byte(k), proof)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestTrieProofFirstNodeHashesToRoot(t *testing.T) {
	tr := New()
	for i := 0; i < 10; i++ {
		k := crypto.Keccak256([]byte{byte(i)})
		tr.Update(k, []byte{byte(i)})
	}
	key := crypto.Keccak256([]byte{3})
	proof, err := tr.Prove(key)
	require.NoError(t, err)
	require.Equal(t, tr.Hash(), crypto.Keccak256(proof[0]))
}

func TestTrieVerifyRejectsWrongRoot(t *testing.T) {
	tr := New()
	key := crypto.Keccak256([]byte("x"))
	tr.Update(key, []byte("y"))
	proof, err := tr.Prove(key)
	require.NoError(t, err)

	badRoot := crypto.Keccak256([]byte("not the root"))
	_, err = Verify(badRoot, key, proof)
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestTrieVerifyRejectsUnknownKey(t *testing.T) {
	tr := New()
	keyA := crypto.Keccak256([]byte("a"))
	keyB := crypto.Keccak256([]byte("b"))
	tr.Update(keyA, []byte("va"))

	root := tr.Hash()
	proof, err := tr.Prove(keyA)
	require.NoError(t, err)

	_, err = Verify(root, keyB, proof)
	require.Error(t, err)
}

func TestTrieUpdateOverwritesValue(t *testing.T) {
	tr := New()
	key := crypto.Keccak256([]byte("k"))
	tr.Update(key, []byte("first"))
	tr.Update(key, []byte("second"))

	proof, err := tr.Prove(key)
	require.NoError(t, err)
	got, err := Verify(tr.Hash(), key, proof)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestEmptyTrieHashIsWellKnownEmptyRoot(t *testing.T) {
	tr := New()
	// keccak256(rlp("")) is Ethereum's canonical empty-trie root, reused
	// across the account, storage, transaction, and receipt tries whenever
	// they hold no entries.
	require.Equal(t, crypto.Keccak256([]byte{0x80}), tr.Hash())
}
