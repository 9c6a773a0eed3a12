package verifier

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/ethlc/lightproof/config"
)

// ComputeOutputRoot reconstructs the op-stack L2 output commitment:
// keccak(version || state_root || message_passer_storage_root || block_hash)
// with version widened to a full 32-byte word.
func ComputeOutputRoot(version byte, l2StateRoot, messagePasserRoot, l2BlockHash [32]byte) [32]byte {
	var v [32]byte
	v[31] = version
	h := crypto.Keccak256(v[:], l2StateRoot[:], messagePasserRoot[:], l2BlockHash[:])
	var out [32]byte
	copy(out[:], h)
	return out
}

// OutputRootSlot derives the L1 storage slot the oracle holds output
// outputIndex at: keccak(output_index || mapping_slot), index widened to a
// 32-byte big-endian word.
func OutputRootSlot(outputIndex uint64, mappingSlot [32]byte) [32]byte {
	var idx [32]byte
	binary.BigEndian.PutUint64(idx[24:], outputIndex)
	h := crypto.Keccak256(idx[:], mappingSlot[:])
	var out [32]byte
	copy(out[:], h)
	return out
}

// VerifyOutputRoot anchors an L2 block to the already-verified L1 state
// root: it proves the L2OutputOracle account, proves the output-root slot
// beneath that account's storage root, reconstructs the OutputRoot from
// the claimed L2 preimage fields, and requires equality with the stored
// value.
func VerifyOutputRoot(op *config.OPConfig, l1StateRoot [32]byte, outputIndex uint64,
	l2StateRoot, messagePasserRoot, l2BlockHash [32]byte,
	oracleAccountProof, outputStorageProof [][]byte) error {

	oracle, err := VerifyAccount(l1StateRoot, [20]byte(op.L2OutputOracle), oracleAccountProof)
	if err != nil {
		return err
	}

	slot := OutputRootSlot(outputIndex, [32]byte(op.OutputMappingSlot))
	stored, err := VerifyStorageValue(oracle.StorageRoot, slot, outputStorageProof)
	if err != nil {
		return err
	}

	want := ComputeOutputRoot(op.OutputRootVersion, l2StateRoot, messagePasserRoot, l2BlockHash)
	if stored != common.Hash(want) {
		return newError(CodeStateRootMismatch, errors.Errorf("output root mismatch at index %d", outputIndex))
	}
	return nil
}
