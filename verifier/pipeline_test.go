package verifier

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	blst "github.com/supranational/blst/bindings/go"

	"github.com/ethlc/lightproof/config"
	"github.com/ethlc/lightproof/executor"
	"github.com/ethlc/lightproof/lightclient"
	"github.com/ethlc/lightproof/ssz"
	"github.com/ethlc/lightproof/trie"
)

var testDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSZ_RO_POP_")

// memStorage is an in-memory StoragePlugin fake.
type memStorage struct{ kv map[string][]byte }

func newMemStorage() *memStorage { return &memStorage{kv: map[string][]byte{}} }

func (m *memStorage) Get(key string) ([]byte, error) {
	v, ok := m.kv[key]
	if !ok {
		return nil, lightclient.ErrNotFound
	}
	return v, nil
}
func (m *memStorage) Set(key string, value []byte) error { m.kv[key] = value; return nil }
func (m *memStorage) Del(key string) error               { delete(m.kv, key); return nil }

// noFetcher fails any fetch: the happy-path pipeline must not need one.
type noFetcher struct{}

func (noFetcher) Fetch(req *executor.DataRequest) { req.Err = "unexpected fetch: " + req.URL }

// varList encodes an SSZ list of variable-size elements: the offset table
// followed by the concatenated bodies.
func varList(items [][]byte) []byte {
	out := make([]byte, 4*len(items))
	off := 4 * len(items)
	for i, item := range items {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(off))
		off += len(item)
	}
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

// testCommittee derives one curve-valid keypair and repeats it across the
// full committee, returning the raw pubkeys and an aggregate signer.
func testCommittee(t *testing.T) ([][]byte, func(msg []byte) []byte) {
	t.Helper()
	ikm := make([]byte, 32)
	ikm[0] = 0x5a
	sk := blst.KeyGen(ikm)
	raw := new(blst.P1Affine).From(sk).Compress()

	pubkeys := make([][]byte, lightclient.SyncCommitteeSize)
	for i := range pubkeys {
		pubkeys[i] = raw
	}
	sign := func(msg []byte) []byte {
		sig := new(blst.P2Affine).Sign(sk, msg, testDST)
		sigs := make([]*blst.P2Affine, lightclient.SyncCommitteeSize)
		for i := range sigs {
			sigs[i] = sig
		}
		agg := new(blst.P2Aggregate)
		agg.Aggregate(sigs, false)
		return agg.ToAffine().Compress()
	}
	return pubkeys, sign
}

func encodeBeaconHeader(slot uint64, bodyRoot [32]byte) []byte {
	buf := make([]byte, 112)
	binary.LittleEndian.PutUint64(buf[0:8], slot)
	copy(buf[80:112], bodyRoot[:])
	return buf
}

// encodeStateProof assembles a stateProofDef wire image: the header and
// execution values fixed fields, the witness list behind its offset, and
// the full-participation sync aggregate.
func encodeStateProof(headerBytes []byte, exec ExecutionValues, witnesses [][32]byte, signature []byte) []byte {
	execBytes := make([]byte, 144)
	copy(execBytes[0:32], exec.StateRoot[:])
	copy(execBytes[32:64], exec.ReceiptsRoot[:])
	copy(execBytes[64:96], exec.TransactionsRoot[:])
	copy(execBytes[96:128], exec.BlockHash[:])
	binary.LittleEndian.PutUint64(execBytes[128:136], exec.BlockNumber)
	binary.LittleEndian.PutUint64(execBytes[136:144], exec.Timestamp)

	bits := make([]byte, 64)
	for i := range bits {
		bits[i] = 0xff
	}

	const fixed = 112 + 144 + 4 + 64 + 96
	out := make([]byte, 0, fixed+32*len(witnesses))
	out = append(out, headerBytes...)
	out = append(out, execBytes...)
	var offset [4]byte
	binary.LittleEndian.PutUint32(offset[:], fixed)
	out = append(out, offset[:]...)
	out = append(out, bits...)
	out = append(out, signature...)
	for _, w := range witnesses {
		out = append(out, w[:]...)
	}
	return out
}

// encodeBalanceProof assembles a balanceProofDef wire image with no
// storage proofs.
func encodeBalanceProof(address [20]byte, accountProof [][]byte, stateProof []byte) []byte {
	ap := varList(accountProof)
	sp := varList(nil) // storage_proofs, empty

	const fixed = 20 + 4 + 4 + 4
	out := make([]byte, 0, fixed+len(ap)+len(sp)+len(stateProof))
	out = append(out, address[:]...)
	var offset [4]byte
	binary.LittleEndian.PutUint32(offset[:], fixed)
	out = append(out, offset[:]...)
	binary.LittleEndian.PutUint32(offset[:], uint32(fixed+len(ap)))
	out = append(out, offset[:]...)
	binary.LittleEndian.PutUint32(offset[:], uint32(fixed+len(ap)+len(sp)))
	out = append(out, offset[:]...)
	out = append(out, ap...)
	out = append(out, sp...)
	out = append(out, stateProof...)
	return out
}

// encodeRequest assembles the top-level RequestDef wire image around one
// proof union variant.
func encodeRequest(proofSelector byte, proofBody []byte) []byte {
	data := []byte{0}                                // none
	proof := append([]byte{proofSelector}, proofBody...)
	syncData := []byte{0} // none

	const fixed = 12
	out := make([]byte, 0, fixed+len(data)+len(proof)+len(syncData))
	var offset [4]byte
	binary.LittleEndian.PutUint32(offset[:], fixed)
	out = append(out, offset[:]...)
	binary.LittleEndian.PutUint32(offset[:], uint32(fixed+len(data)))
	out = append(out, offset[:]...)
	binary.LittleEndian.PutUint32(offset[:], uint32(fixed+len(data)+len(proof)))
	out = append(out, offset[:]...)
	out = append(out, data...)
	out = append(out, proof...)
	out = append(out, syncData...)
	return out
}

func testChainConfig() *config.ChainConfig {
	c := *config.Mainnet
	// Root the execution payload at gindex 1 so the payload header's own
	// root doubles as the beacon body root in fixtures.
	c.Gindices = map[config.ForkID]config.GindexTable{
		config.ForkDeneb: {
			CurrentSyncCommittee: 54,
			NextSyncCommittee:    55,
			FinalizedRoot:        105,
			ExecutionPayload:     1,
		},
	}
	return &c
}

func TestPipelineVerifiesBalanceEndToEnd(t *testing.T) {
	cfg := testChainConfig()
	registry := config.NewRegistry()
	registry.Register(cfg)

	storage := newMemStorage()
	manager := lightclient.NewManager(storage, registry)

	// State trie with the target account.
	var addr [20]byte
	addr[19] = 0x99
	balance := uint256.NewInt(123_456_789)
	acct := accountRLP{Nonce: 3, Balance: balance, CodeHash: emptyCodeHash[:]}
	rawAcct, err := rlp.EncodeToBytes(&acct)
	require.NoError(t, err)

	stateTrie := trie.New()
	stateTrie.Update(crypto.Keccak256(addr[:]), rawAcct)
	accountProof, err := stateTrie.Prove(crypto.Keccak256(addr[:]))
	require.NoError(t, err)

	// Execution values bound to the body root.
	var exec ExecutionValues
	copy(exec.StateRoot[:], stateTrie.Hash())
	exec.BlockNumber = 19_000_000
	exec.Timestamp = 1_710_000_000

	payloadOb := ssz.New(executionPayloadHeaderDef, encodePayloadHeader(t, exec))
	bodyRoot, err := ssz.HashTreeRoot(payloadOb)
	require.NoError(t, err)

	gindices, err := bindingGindices(cfg.GindexFor(config.ForkDeneb))
	require.NoError(t, err)
	witnesses, err := ssz.CreateMultiProof(payloadOb, gindices)
	require.NoError(t, err)

	// Signed beacon header over that body root.
	const slot = uint64(8_000_000)
	headerBytes := encodeBeaconHeader(slot, bodyRoot)
	headerRoot, err := ssz.HashTreeRoot(ssz.New(lightclient.BeaconBlockHeaderDef, headerBytes))
	require.NoError(t, err)

	pubkeys, sign := testCommittee(t)
	period := uint32(cfg.PeriodOfSlot(slot))
	require.NoError(t, manager.SetSyncPeriod(1, cfg, period, slot, headerRoot, pubkeys, [32]byte{}))

	stateProof := encodeStateProof(headerBytes, exec, witnesses, sign(headerRoot[:]))
	request := encodeRequest(ProofEthBalance, encodeBalanceProof(addr, accountProof, stateProof))

	v := New(registry, nil, manager, StaticMethodTable{"eth_getBalance": MethodProofable}, nil)
	job := &Job{Verifier: v, ID: json.RawMessage(`1`), Raw: request}

	args := fmt.Sprintf(`["0x%x", "latest"]`, addr)
	ctx := executor.NewCtx(1, "eth_getBalance", []byte(args))

	require.NoError(t, executor.New(noFetcher{}, nil).Run(ctx, job.Stage))
	require.Nil(t, job.Response.Error)
	require.JSONEq(t, `"0x75bcd15"`, string(job.Response.Result))
	require.Equal(t, slot, ctx.DataSlot)
}

func TestPipelineRejectsTamperedBalanceProof(t *testing.T) {
	cfg := testChainConfig()
	registry := config.NewRegistry()
	registry.Register(cfg)
	manager := lightclient.NewManager(newMemStorage(), registry)

	var addr [20]byte
	addr[19] = 0x98
	acct := accountRLP{Nonce: 1, Balance: uint256.NewInt(5), CodeHash: emptyCodeHash[:]}
	rawAcct, err := rlp.EncodeToBytes(&acct)
	require.NoError(t, err)
	stateTrie := trie.New()
	stateTrie.Update(crypto.Keccak256(addr[:]), rawAcct)
	accountProof, err := stateTrie.Prove(crypto.Keccak256(addr[:]))
	require.NoError(t, err)

	// The bound state root diverges from the trie the proof was built on.
	var exec ExecutionValues
	exec.StateRoot[0] = 0xee

	payloadOb := ssz.New(executionPayloadHeaderDef, encodePayloadHeader(t, exec))
	bodyRoot, err := ssz.HashTreeRoot(payloadOb)
	require.NoError(t, err)
	gindices, err := bindingGindices(cfg.GindexFor(config.ForkDeneb))
	require.NoError(t, err)
	witnesses, err := ssz.CreateMultiProof(payloadOb, gindices)
	require.NoError(t, err)

	const slot = uint64(8_000_000)
	headerBytes := encodeBeaconHeader(slot, bodyRoot)
	headerRoot, err := ssz.HashTreeRoot(ssz.New(lightclient.BeaconBlockHeaderDef, headerBytes))
	require.NoError(t, err)

	pubkeys, sign := testCommittee(t)
	period := uint32(cfg.PeriodOfSlot(slot))
	require.NoError(t, manager.SetSyncPeriod(1, cfg, period, slot, headerRoot, pubkeys, [32]byte{}))

	stateProof := encodeStateProof(headerBytes, exec, witnesses, sign(headerRoot[:]))
	request := encodeRequest(ProofEthBalance, encodeBalanceProof(addr, accountProof, stateProof))

	v := New(registry, nil, manager, StaticMethodTable{"eth_getBalance": MethodProofable}, nil)
	job := &Job{Verifier: v, ID: json.RawMessage(`1`), Raw: request}
	ctx := executor.NewCtx(1, "eth_getBalance", []byte(fmt.Sprintf(`["0x%x"]`, addr)))

	err = executor.New(noFetcher{}, nil).Run(ctx, job.Stage)
	require.Error(t, err)
	require.NotNil(t, job.Response.Error)
	require.Contains(t, job.Response.Error.Message, "InvalidMPTProof")
}

func TestPipelineRejectsUnsupportedMethod(t *testing.T) {
	registry := config.NewRegistry()
	manager := lightclient.NewManager(newMemStorage(), registry)
	v := New(registry, nil, manager, StaticMethodTable{}, nil)

	job := &Job{Verifier: v, ID: json.RawMessage(`7`)}
	ctx := executor.NewCtx(1, "eth_coinbase", nil)

	err := executor.New(noFetcher{}, nil).Run(ctx, job.Stage)
	require.Error(t, err)
	require.NotNil(t, job.Response.Error)
	require.Contains(t, job.Response.Error.Message, "Unsupported")
}

func TestPipelineServesLocalMethod(t *testing.T) {
	registry := config.NewRegistry()
	manager := lightclient.NewManager(newMemStorage(), registry)
	v := New(registry, nil, manager, StaticMethodTable{"eth_chainId": MethodLocal}, nil)

	job := &Job{Verifier: v, ID: json.RawMessage(`9`)}
	ctx := executor.NewCtx(1, "eth_chainId", nil)

	require.NoError(t, executor.New(noFetcher{}, nil).Run(ctx, job.Stage))
	require.JSONEq(t, `"0x1"`, string(job.Response.Result))
}
