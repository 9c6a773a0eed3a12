package verifier

import (
	"github.com/ethlc/lightproof/lightclient"
	"github.com/ethlc/lightproof/ssz"
)

// SSZ definitions of the request packet and its proof union
// variants. Definitions are data, shared across the package; none of them
// own bytes.

var (
	bytes32Def = ssz.Vector(ssz.Uint(1), 32)
	addressDef = ssz.Vector(ssz.Uint(1), 20)
	bytes96Def = ssz.Vector(ssz.Uint(1), 96)
)

// mptNodeDef is one RLP-encoded trie node; mptProofDef an ordered node list
// from root toward the terminating value.
var (
	mptNodeDef  = ssz.List(ssz.Uint(1), 1<<16)
	mptProofDef = ssz.List(mptNodeDef, 64)
)

// executionValuesDef carries the execution-payload header fields the
// multiproof in a state proof binds beneath the signed body root.
var executionValuesDef = ssz.Container(
	ssz.Field{Name: "state_root", Def: bytes32Def},
	ssz.Field{Name: "receipts_root", Def: bytes32Def},
	ssz.Field{Name: "transactions_root", Def: bytes32Def},
	ssz.Field{Name: "block_hash", Def: bytes32Def},
	ssz.Field{Name: "block_number", Def: ssz.Uint(8)},
	ssz.Field{Name: "timestamp", Def: ssz.Uint(8)},
)

// stateProofDef is the consensus anchor every proof family shares: the
// attested beacon header, the sync committee's attestation to it, the
// bound execution values, and the multiproof witnesses placing those
// values beneath the header's body root.
var stateProofDef = ssz.Container(
	ssz.Field{Name: "header", Def: lightclient.BeaconBlockHeaderDef},
	ssz.Field{Name: "execution", Def: executionValuesDef},
	ssz.Field{Name: "proof", Def: ssz.List(bytes32Def, 64)},
	ssz.Field{Name: "sync_committee_bits", Def: ssz.BitVector(lightclient.SyncCommitteeSize)},
	ssz.Field{Name: "sync_committee_signature", Def: bytes96Def},
)

// storageProofDef proves one storage slot beneath an account's storage
// root.
var storageProofDef = ssz.Container(
	ssz.Field{Name: "key", Def: bytes32Def},
	ssz.Field{Name: "proof", Def: mptProofDef},
)

// balanceProofDef serves eth_getBalance, eth_getTransactionCount,
// eth_getCode's hash check, and eth_getStorageAt: one account proof on the
// state trie plus any number of storage proofs on that account's storage
// trie.
var balanceProofDef = ssz.Container(
	ssz.Field{Name: "address", Def: addressDef},
	ssz.Field{Name: "account_proof", Def: mptProofDef},
	ssz.Field{Name: "storage_proofs", Def: ssz.List(storageProofDef, 256)},
	ssz.Field{Name: "state_proof", Def: stateProofDef},
)

// txProofDef proves one transaction's raw bytes beneath the bound
// transactions root.
var txProofDef = ssz.Container(
	ssz.Field{Name: "transaction_index", Def: ssz.Uint(4)},
	ssz.Field{Name: "proof", Def: mptProofDef},
	ssz.Field{Name: "state_proof", Def: stateProofDef},
)

// receiptProofDef proves one receipt beneath the bound receipts root. The
// transaction proof at the same index binds the requested transaction hash
// to the index the receipts trie is keyed by.
var receiptProofDef = ssz.Container(
	ssz.Field{Name: "transaction_index", Def: ssz.Uint(4)},
	ssz.Field{Name: "proof", Def: mptProofDef},
	ssz.Field{Name: "tx_proof", Def: mptProofDef},
	ssz.Field{Name: "state_proof", Def: stateProofDef},
)

// logsBlockDef is one candidate block of an eth_getLogs query: its own
// state proof plus a receipt proof per transaction whose logs may match.
var logsBlockDef = ssz.Container(
	ssz.Field{Name: "receipts", Def: ssz.List(receiptEntryDef, 512)},
	ssz.Field{Name: "state_proof", Def: stateProofDef},
)

var receiptEntryDef = ssz.Container(
	ssz.Field{Name: "transaction_index", Def: ssz.Uint(4)},
	ssz.Field{Name: "proof", Def: mptProofDef},
)

var logsProofDef = ssz.Container(
	ssz.Field{Name: "blocks", Def: ssz.List(logsBlockDef, 256)},
)

// callAccountDef is one account an eth_call touched: its proof, the slots
// it read, and its full code so the EVM can run.
var callAccountDef = ssz.Container(
	ssz.Field{Name: "address", Def: addressDef},
	ssz.Field{Name: "account_proof", Def: mptProofDef},
	ssz.Field{Name: "storage_proofs", Def: ssz.List(storageProofDef, 1024)},
	ssz.Field{Name: "code", Def: ssz.List(ssz.Uint(1), 1<<24)},
)

var callProofDef = ssz.Container(
	ssz.Field{Name: "accounts", Def: ssz.List(callAccountDef, 256)},
	ssz.Field{Name: "result", Def: ssz.List(ssz.Uint(1), 1<<24)},
	ssz.Field{Name: "state_proof", Def: stateProofDef},
)

// opBlockProofDef binds an op-stack L2 block to L1: the L1 state proof, the
// L2OutputOracle account and output-root storage proofs on L1, and the L2
// preimage fields of the claimed OutputRoot.
var opBlockProofDef = ssz.Container(
	ssz.Field{Name: "output_index", Def: ssz.Uint(8)},
	ssz.Field{Name: "l2_state_root", Def: bytes32Def},
	ssz.Field{Name: "message_passer_storage_root", Def: bytes32Def},
	ssz.Field{Name: "l2_block_hash", Def: bytes32Def},
	ssz.Field{Name: "oracle_account_proof", Def: mptProofDef},
	ssz.Field{Name: "output_storage_proof", Def: mptProofDef},
	ssz.Field{Name: "state_proof", Def: stateProofDef},
)

// opPreconfProofDef covers the preconfirmation variant: the sequencer's
// signed block envelope, checked against the registered unsafe signer
// rather than an L1 output root.
var opPreconfProofDef = ssz.Container(
	ssz.Field{Name: "block_hash", Def: bytes32Def},
	ssz.Field{Name: "block_number", Def: ssz.Uint(8)},
	ssz.Field{Name: "payload_hash", Def: bytes32Def},
	ssz.Field{Name: "signature", Def: ssz.Vector(ssz.Uint(1), 65)},
)

// ProofDef is the request packet's proof union; the selector identifies the
// proof family.
var ProofDef = ssz.Union(
	ssz.Field{Name: "none", Def: ssz.None()},
	ssz.Field{Name: "eth_balance_proof", Def: balanceProofDef},
	ssz.Field{Name: "eth_tx_proof", Def: txProofDef},
	ssz.Field{Name: "eth_receipt_proof", Def: receiptProofDef},
	ssz.Field{Name: "eth_logs_proof", Def: logsProofDef},
	ssz.Field{Name: "eth_call_proof", Def: callProofDef},
	ssz.Field{Name: "op_verify_block_proof", Def: opBlockProofDef},
	ssz.Field{Name: "op_verify_preconf_proof", Def: opPreconfProofDef},
)

// Union selector values of ProofDef, in declaration order.
const (
	ProofNone = iota
	ProofEthBalance
	ProofEthTx
	ProofEthReceipt
	ProofEthLogs
	ProofEthCall
	ProofOpVerifyBlock
	ProofOpVerifyPreconf
)

// RequestDef is the top-level request packet: opaque method data, the proof
// union, and optional sync data (a raw light-client update stream the
// verifier may consume before checking the proof).
var RequestDef = ssz.Container(
	ssz.Field{Name: "data", Def: ssz.Union(
		ssz.Field{Name: "none", Def: ssz.None()},
		ssz.Field{Name: "bytes", Def: ssz.List(ssz.Uint(1), 1<<24)},
	)},
	ssz.Field{Name: "proof", Def: ProofDef},
	ssz.Field{Name: "sync_data", Def: ssz.Union(
		ssz.Field{Name: "none", Def: ssz.None()},
		ssz.Field{Name: "bytes", Def: ssz.List(ssz.Uint(1), 1<<26)},
	)},
)

// executionPayloadHeaderDef is the Deneb execution-payload header layout,
// used only to derive field gindices beneath the payload's own root; the
// verifier never decodes a full payload header.
var executionPayloadHeaderDef = ssz.Container(
	ssz.Field{Name: "parent_hash", Def: bytes32Def},
	ssz.Field{Name: "fee_recipient", Def: addressDef},
	ssz.Field{Name: "state_root", Def: bytes32Def},
	ssz.Field{Name: "receipts_root", Def: bytes32Def},
	ssz.Field{Name: "logs_bloom", Def: ssz.Vector(ssz.Uint(1), 256)},
	ssz.Field{Name: "prev_randao", Def: bytes32Def},
	ssz.Field{Name: "block_number", Def: ssz.Uint(8)},
	ssz.Field{Name: "gas_limit", Def: ssz.Uint(8)},
	ssz.Field{Name: "gas_used", Def: ssz.Uint(8)},
	ssz.Field{Name: "timestamp", Def: ssz.Uint(8)},
	ssz.Field{Name: "extra_data", Def: ssz.List(ssz.Uint(1), 32)},
	ssz.Field{Name: "base_fee_per_gas", Def: ssz.Uint(32)},
	ssz.Field{Name: "block_hash", Def: bytes32Def},
	ssz.Field{Name: "transactions_root", Def: bytes32Def},
	ssz.Field{Name: "withdrawals_root", Def: bytes32Def},
	ssz.Field{Name: "blob_gas_used", Def: ssz.Uint(8)},
	ssz.Field{Name: "excess_blob_gas", Def: ssz.Uint(8)},
)
