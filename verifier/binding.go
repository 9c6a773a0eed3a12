package verifier

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ethlc/lightproof/config"
	"github.com/ethlc/lightproof/lightclient"
	"github.com/ethlc/lightproof/ssz"
)

// ExecutionValues are the execution-payload header fields a state proof
// binds beneath the signed beacon header's body root.
type ExecutionValues struct {
	StateRoot        [32]byte
	ReceiptsRoot     [32]byte
	TransactionsRoot [32]byte
	BlockHash        [32]byte
	BlockNumber      uint64
	Timestamp        uint64
}

func decodeExecutionValues(ob ssz.Ob) (ExecutionValues, error) {
	var out ExecutionValues
	var ok [4]bool
	out.StateRoot, ok[0] = chunk32(ssz.Get(ob, "state_root"))
	out.ReceiptsRoot, ok[1] = chunk32(ssz.Get(ob, "receipts_root"))
	out.TransactionsRoot, ok[2] = chunk32(ssz.Get(ob, "transactions_root"))
	out.BlockHash, ok[3] = chunk32(ssz.Get(ob, "block_hash"))
	for _, o := range ok {
		if !o {
			return out, ssz.ErrTruncated
		}
	}
	var okN, okT bool
	out.BlockNumber, okN = ssz.Uint64(ssz.Get(ob, "block_number"))
	out.Timestamp, okT = ssz.Uint64(ssz.Get(ob, "timestamp"))
	if !okN || !okT {
		return out, ssz.ErrTruncated
	}
	return out, nil
}

func chunk32(ob ssz.Ob) ([32]byte, bool) {
	var out [32]byte
	if !ob.Valid() || len(ob.Bytes) != 32 {
		return out, false
	}
	copy(out[:], ob.Bytes)
	return out, true
}

// u64Chunk packs a uint64 into a 32-byte leaf the way SSZ merkleization
// does: little-endian in the low bytes, zero padded.
func u64Chunk(v uint64) [32]byte {
	var out [32]byte
	binary.LittleEndian.PutUint64(out[:8], v)
	return out
}

// boundFields are the payload-header fields the binding proof covers, in
// the order their leaves are supplied.
var boundFields = []string{
	"state_root", "receipts_root", "transactions_root",
	"block_hash", "block_number", "timestamp",
}

// bindingGindices composes each bound field's gindex beneath the beacon
// body root: payload container position (fork table) extended by the
// field's position inside the payload header layout.
func bindingGindices(table config.GindexTable) ([]ssz.Gindex, error) {
	payload := ssz.Gindex(table.ExecutionPayload)
	out := make([]ssz.Gindex, len(boundFields))
	for i, name := range boundFields {
		g, err := ssz.ContainerFieldGindex(executionPayloadHeaderDef, name)
		if err != nil {
			return nil, err
		}
		out[i] = ssz.AddGindex(payload, g)
	}
	return out, nil
}

// verifyExecutionBinding checks the SSZ multi-proof that the six execution
// values sit at their known gindices beneath the signed header's body
// root.
func verifyExecutionBinding(table config.GindexTable, header lightclient.Header, exec ExecutionValues, witnesses [][32]byte) error {
	gindices, err := bindingGindices(table)
	if err != nil {
		return newError(CodeInvalidMerkleProof, err)
	}
	leaves := map[ssz.Gindex][32]byte{
		gindices[0]: exec.StateRoot,
		gindices[1]: exec.ReceiptsRoot,
		gindices[2]: exec.TransactionsRoot,
		gindices[3]: exec.BlockHash,
		gindices[4]: u64Chunk(exec.BlockNumber),
		gindices[5]: u64Chunk(exec.Timestamp),
	}
	if !ssz.VerifyMultiProof(header.BodyRoot, witnesses, leaves, gindices) {
		return newError(CodeInvalidMerkleProof, errors.New("execution payload binding proof failed"))
	}
	return nil
}
