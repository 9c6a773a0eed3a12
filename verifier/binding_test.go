package verifier

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethlc/lightproof/config"
	"github.com/ethlc/lightproof/lightclient"
	"github.com/ethlc/lightproof/ssz"
)

// encodePayloadHeader builds the wire bytes of an executionPayloadHeaderDef
// value with the given bound fields set and everything else zero. The
// container's only variable field (extra_data) is left empty.
func encodePayloadHeader(t *testing.T, exec ExecutionValues) []byte {
	t.Helper()
	// Fixed portion of the header layout: every fixed field's width plus
	// the 4-byte offset slot for extra_data.
	const fixed = 32 + 20 + 32 + 32 + 256 + 32 + 8 + 8 + 8 + 8 + 4 + 32 + 32 + 32 + 32 + 8 + 8
	buf := make([]byte, fixed)

	off := 0
	put := func(n int, fill func([]byte)) {
		fill(buf[off : off+n])
		off += n
	}
	zero := func(b []byte) {}

	put(32, zero) // parent_hash
	put(20, zero) // fee_recipient
	put(32, func(b []byte) { copy(b, exec.StateRoot[:]) })
	put(32, func(b []byte) { copy(b, exec.ReceiptsRoot[:]) })
	put(256, zero) // logs_bloom
	put(32, zero)  // prev_randao
	put(8, func(b []byte) { binary.LittleEndian.PutUint64(b, exec.BlockNumber) })
	put(8, zero) // gas_limit
	put(8, zero) // gas_used
	put(8, func(b []byte) { binary.LittleEndian.PutUint64(b, exec.Timestamp) })
	put(4, func(b []byte) { binary.LittleEndian.PutUint32(b, uint32(fixed)) }) // extra_data offset
	put(32, zero)                                                             // base_fee_per_gas
	put(32, func(b []byte) { copy(b, exec.BlockHash[:]) })
	put(32, func(b []byte) { copy(b, exec.TransactionsRoot[:]) })
	put(32, zero) // withdrawals_root
	put(8, zero)  // blob_gas_used
	put(8, zero)  // excess_blob_gas
	require.Equal(t, fixed, off)
	return buf
}

// payloadTable roots the payload at gindex 1 so the payload header's own
// hash-tree-root doubles as the body root: add_gindex(1, x) = x.
var payloadTable = config.GindexTable{ExecutionPayload: 1}

func TestExecutionBindingRoundTrip(t *testing.T) {
	exec := ExecutionValues{
		BlockNumber: 19_000_000,
		Timestamp:   1_710_000_000,
	}
	exec.StateRoot[0] = 0xaa
	exec.ReceiptsRoot[0] = 0xbb
	exec.TransactionsRoot[0] = 0xcc
	exec.BlockHash[0] = 0xdd

	ob := ssz.New(executionPayloadHeaderDef, encodePayloadHeader(t, exec))
	require.NoError(t, ssz.Validate(executionPayloadHeaderDef, ob.Bytes))

	bodyRoot, err := ssz.HashTreeRoot(ob)
	require.NoError(t, err)

	gindices, err := bindingGindices(payloadTable)
	require.NoError(t, err)
	witnesses, err := ssz.CreateMultiProof(ob, gindices)
	require.NoError(t, err)

	header := lightclient.Header{BodyRoot: bodyRoot}
	require.NoError(t, verifyExecutionBinding(payloadTable, header, exec, witnesses))
}

func TestExecutionBindingRejectsTamperedValue(t *testing.T) {
	exec := ExecutionValues{BlockNumber: 1, Timestamp: 2}
	exec.StateRoot[0] = 0x01

	ob := ssz.New(executionPayloadHeaderDef, encodePayloadHeader(t, exec))
	bodyRoot, err := ssz.HashTreeRoot(ob)
	require.NoError(t, err)

	gindices, err := bindingGindices(payloadTable)
	require.NoError(t, err)
	witnesses, err := ssz.CreateMultiProof(ob, gindices)
	require.NoError(t, err)

	tampered := exec
	tampered.BlockNumber = 2

	header := lightclient.Header{BodyRoot: bodyRoot}
	err = verifyExecutionBinding(payloadTable, header, tampered, witnesses)
	require.Error(t, err)
	verr, ok := err.(*VerifyError)
	require.True(t, ok)
	require.Equal(t, CodeInvalidMerkleProof, verr.Code)
}

func TestBindingGindicesComposeBeneathPayloadPosition(t *testing.T) {
	base, err := bindingGindices(payloadTable)
	require.NoError(t, err)

	nested, err := bindingGindices(config.GindexTable{ExecutionPayload: 25})
	require.NoError(t, err)
	for i := range base {
		require.Equal(t, ssz.AddGindex(25, base[i]), nested[i])
	}
}
