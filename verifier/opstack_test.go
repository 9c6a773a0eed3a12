package verifier

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethlc/lightproof/config"
	"github.com/ethlc/lightproof/trie"
)

func TestComputeOutputRoot(t *testing.T) {
	var stateRoot, passerRoot, blockHash [32]byte
	stateRoot[0] = 1
	passerRoot[0] = 2
	blockHash[0] = 3

	got := ComputeOutputRoot(0, stateRoot, passerRoot, blockHash)

	var preimage []byte
	preimage = append(preimage, make([]byte, 32)...) // version 0 as a full word
	preimage = append(preimage, stateRoot[:]...)
	preimage = append(preimage, passerRoot[:]...)
	preimage = append(preimage, blockHash[:]...)
	require.Equal(t, crypto.Keccak256(preimage), got[:])
}

func TestOutputRootSlot(t *testing.T) {
	var mappingSlot [32]byte
	mappingSlot[31] = 3

	slot := OutputRootSlot(7, mappingSlot)

	var idx [32]byte
	idx[31] = 7
	require.Equal(t, crypto.Keccak256(idx[:], mappingSlot[:]), slot[:])
}

// buildOpFixture assembles an L1 state where the output oracle holds the
// output root for index 7, returning the op config, L1 state root, and
// both proofs.
func buildOpFixture(t *testing.T, l2StateRoot, passerRoot, l2BlockHash [32]byte) (*config.OPConfig, [32]byte, [][]byte, [][]byte) {
	t.Helper()
	op := &config.OPConfig{
		L1ChainID:         1,
		L2ChainID:         10,
		OutputRootVersion: 0,
	}
	copy(op.L2OutputOracle[:], common.HexToAddress("0xdfe97868233d1aa22e815a266982f2cf17685a27").Bytes())
	op.OutputMappingSlot[31] = 3

	outputRoot := ComputeOutputRoot(op.OutputRootVersion, l2StateRoot, passerRoot, l2BlockHash)
	slot := OutputRootSlot(7, [32]byte(op.OutputMappingSlot))

	storageTrie := trie.New()
	enc, err := rlp.EncodeToBytes(bytes.TrimLeft(outputRoot[:], "\x00"))
	require.NoError(t, err)
	storageTrie.Update(crypto.Keccak256(slot[:]), enc)

	stateTrie := trie.New()
	acct := accountRLP{
		Nonce:       1,
		Balance:     uint256.NewInt(0),
		StorageRoot: common.BytesToHash(storageTrie.Hash()),
		CodeHash:    crypto.Keccak256([]byte{0x60}),
	}
	rawAcct, err := rlp.EncodeToBytes(&acct)
	require.NoError(t, err)
	stateTrie.Update(crypto.Keccak256(op.L2OutputOracle[:]), rawAcct)

	var l1Root [32]byte
	copy(l1Root[:], stateTrie.Hash())

	accountProof, err := stateTrie.Prove(crypto.Keccak256(op.L2OutputOracle[:]))
	require.NoError(t, err)
	storageProof, err := storageTrie.Prove(crypto.Keccak256(slot[:]))
	require.NoError(t, err)

	return op, l1Root, accountProof, storageProof
}

func TestVerifyOutputRoot(t *testing.T) {
	var l2StateRoot, passerRoot, l2BlockHash [32]byte
	l2StateRoot[0] = 0x11
	passerRoot[0] = 0x22
	l2BlockHash[0] = 0x33

	op, l1Root, accountProof, storageProof := buildOpFixture(t, l2StateRoot, passerRoot, l2BlockHash)

	err := VerifyOutputRoot(op, l1Root, 7, l2StateRoot, passerRoot, l2BlockHash, accountProof, storageProof)
	require.NoError(t, err)
}

func TestVerifyOutputRootRejectsTamperedPreimage(t *testing.T) {
	var l2StateRoot, passerRoot, l2BlockHash [32]byte
	l2StateRoot[0] = 0x11
	passerRoot[0] = 0x22
	l2BlockHash[0] = 0x33

	op, l1Root, accountProof, storageProof := buildOpFixture(t, l2StateRoot, passerRoot, l2BlockHash)

	var tampered [32]byte
	copy(tampered[:], l2BlockHash[:])
	tampered[31] ^= 1

	err := VerifyOutputRoot(op, l1Root, 7, l2StateRoot, passerRoot, tampered, accountProof, storageProof)
	require.Error(t, err)
	verr, ok := err.(*VerifyError)
	require.True(t, ok)
	require.Equal(t, CodeStateRootMismatch, verr.Code)
}
