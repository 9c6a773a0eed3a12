package verifier

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethlc/lightproof/trie"
)

func encodeAccount(t *testing.T, acct accountRLP) []byte {
	t.Helper()
	raw, err := rlp.EncodeToBytes(&acct)
	require.NoError(t, err)
	return raw
}

// buildStateTrie returns a state trie holding the given accounts keyed by
// keccak(address), plus its root.
func buildStateTrie(t *testing.T, accounts map[[20]byte]accountRLP) (*trie.Trie, [32]byte) {
	t.Helper()
	tr := trie.New()
	for addr, acct := range accounts {
		tr.Update(crypto.Keccak256(addr[:]), encodeAccount(t, acct))
	}
	var root [32]byte
	copy(root[:], tr.Hash())
	return tr, root
}

func TestVerifyAccountRoundTrip(t *testing.T) {
	var addr [20]byte
	addr[19] = 0x42
	storageRoot := common.HexToHash("0xdeadbeef00000000000000000000000000000000000000000000000000000001")
	codeHash := crypto.Keccak256([]byte{0x60, 0x00})

	tr, root := buildStateTrie(t, map[[20]byte]accountRLP{
		addr: {Nonce: 7, Balance: uint256.NewInt(1_000_000), StorageRoot: storageRoot, CodeHash: codeHash},
	})

	proof, err := tr.Prove(crypto.Keccak256(addr[:]))
	require.NoError(t, err)

	acct, err := VerifyAccount(root, addr, proof)
	require.NoError(t, err)
	require.Equal(t, uint64(7), acct.Nonce)
	require.Equal(t, uint256.NewInt(1_000_000), acct.Balance)
	require.Equal(t, storageRoot, acct.StorageRoot)
	require.Equal(t, common.BytesToHash(codeHash), acct.CodeHash)
}

func TestVerifyAccountAbsentKeyIsEmptyAccount(t *testing.T) {
	var present, absent [20]byte
	present[0] = 1
	absent[0] = 2

	tr, root := buildStateTrie(t, map[[20]byte]accountRLP{
		present: {Nonce: 1, Balance: uint256.NewInt(5), CodeHash: emptyCodeHash[:]},
	})
	proof, err := tr.Prove(crypto.Keccak256(present[:]))
	require.NoError(t, err)

	acct, err := VerifyAccount(root, absent, proof)
	require.NoError(t, err)
	require.Zero(t, acct.Nonce)
	require.True(t, acct.Balance.IsZero())
	require.Equal(t, emptyCodeHash, acct.CodeHash)
}

func TestVerifyAccountRejectsWrongRoot(t *testing.T) {
	var addr [20]byte
	addr[5] = 9
	tr, _ := buildStateTrie(t, map[[20]byte]accountRLP{
		addr: {Nonce: 1, Balance: uint256.NewInt(1), CodeHash: emptyCodeHash[:]},
	})
	proof, err := tr.Prove(crypto.Keccak256(addr[:]))
	require.NoError(t, err)

	var badRoot [32]byte
	badRoot[0] = 0xff
	_, err = VerifyAccount(badRoot, addr, proof)
	require.Error(t, err)
	verr, ok := err.(*VerifyError)
	require.True(t, ok)
	require.Equal(t, CodeInvalidMPTProof, verr.Code)
}

func TestVerifyStorageValue(t *testing.T) {
	var slot [32]byte
	slot[31] = 3
	value := common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000007d0")

	tr := trie.New()
	enc, err := rlp.EncodeToBytes(value.Bytes()[30:]) // leading zeros stripped
	require.NoError(t, err)
	tr.Update(crypto.Keccak256(slot[:]), enc)
	storageRoot := common.BytesToHash(tr.Hash())

	proof, err := tr.Prove(crypto.Keccak256(slot[:]))
	require.NoError(t, err)

	got, err := VerifyStorageValue(storageRoot, slot, proof)
	require.NoError(t, err)
	require.Equal(t, value, got)
}
