// Package lightclient implements the sync-committee state machine: tracking,
// extending, bootstrapping, and pruning trusted sync-committee periods, and
// enforcing the weak-subjectivity period. It is the engine's
// only stateful component; everything else is a pure function over bytes it
// is handed.
package lightclient

import (
	"github.com/sirupsen/logrus"

	"github.com/ethlc/lightproof/ssz"
)

var log = logrus.WithField("prefix", "lightclient")

// SyncCommitteeSize is the fixed mainnet sync-committee cardinality. The
// manager is only ever exercised against mainnet-shaped committees; a chain
// with a different committee size would need its own definition set, which
// the SSZ layer supports (definitions are data, not generated code) but
// which this package does not currently parameterize.
const SyncCommitteeSize = 512

// Bytes32Def is a fixed 32-byte vector, used for roots and branch chunks.
var Bytes32Def = ssz.Vector(ssz.Uint(1), 32)

// pubkeyDef is a single 48-byte BLS pubkey.
var pubkeyDef = ssz.Vector(ssz.Uint(1), 48)

// SyncCommitteeDef is the SSZ definition of a `SyncCommittee` container:
// the 512-pubkey vector plus its aggregate pubkey.
var SyncCommitteeDef = ssz.Container(
	ssz.Field{Name: "pubkeys", Def: ssz.Vector(pubkeyDef, SyncCommitteeSize)},
	ssz.Field{Name: "aggregate_pubkey", Def: pubkeyDef},
)

// BeaconBlockHeaderDef is the SSZ definition of a beacon block header, the
// signed/attested unit throughout the light-client protocol.
var BeaconBlockHeaderDef = ssz.Container(
	ssz.Field{Name: "slot", Def: ssz.Uint(8)},
	ssz.Field{Name: "proposer_index", Def: ssz.Uint(8)},
	ssz.Field{Name: "parent_root", Def: Bytes32Def},
	ssz.Field{Name: "state_root", Def: Bytes32Def},
	ssz.Field{Name: "body_root", Def: Bytes32Def},
)

// syncAggregateDef is the SSZ definition of a sync committee's attestation
// to a header: a participation bit vector plus the BLS aggregate signature.
var syncAggregateDef = ssz.Container(
	ssz.Field{Name: "sync_committee_bits", Def: ssz.BitVector(SyncCommitteeSize)},
	ssz.Field{Name: "sync_committee_signature", Def: ssz.Vector(ssz.Uint(1), 96)},
)

// branchDef models a Merkle branch as a list of 32-byte chunks; max depth is
// generous since the fork-specific depth (e.g. 5 at Deneb, 6 at Electra for
// state-root-relative fields) is enforced by gindex depth at verify time, not
// by this wire shape.
func branchDef(maxDepth int) *ssz.Def {
	return ssz.List(Bytes32Def, maxDepth)
}

const maxBranchDepth = 32

// BootstrapDef is the SSZ definition of a `light_client/bootstrap` response:
// the trusted header plus the current sync committee and its Merkle branch
// beneath the header's state root.
var BootstrapDef = ssz.Container(
	ssz.Field{Name: "header", Def: BeaconBlockHeaderDef},
	ssz.Field{Name: "current_sync_committee", Def: SyncCommitteeDef},
	ssz.Field{Name: "current_sync_committee_branch", Def: branchDef(maxBranchDepth)},
)

// UpdateDef is the SSZ definition of one `light_client/updates` entry
// used by the forward-sync path.
var UpdateDef = ssz.Container(
	ssz.Field{Name: "attested_header", Def: BeaconBlockHeaderDef},
	ssz.Field{Name: "next_sync_committee", Def: SyncCommitteeDef},
	ssz.Field{Name: "next_sync_committee_branch", Def: branchDef(maxBranchDepth)},
	ssz.Field{Name: "finalized_header", Def: BeaconBlockHeaderDef},
	ssz.Field{Name: "finality_branch", Def: branchDef(maxBranchDepth)},
	ssz.Field{Name: "sync_aggregate", Def: syncAggregateDef},
	ssz.Field{Name: "signature_slot", Def: ssz.Uint(8)},
)

// Header is the decoded subset of a beacon block header the manager acts on.
type Header struct {
	Slot          uint64
	ProposerIndex uint64
	ParentRoot    [32]byte
	StateRoot     [32]byte
	BodyRoot      [32]byte
	Root          [32]byte // hash_tree_root(header)
}

// DecodeHeader reads a BeaconBlockHeaderDef ob into a Header, also computing
// its hash-tree-root.
func DecodeHeader(ob ssz.Ob) (Header, error) {
	if !ob.Valid() {
		return Header{}, ssz.ErrNilDef
	}
	slot, _ := ssz.Uint64(ssz.Get(ob, "slot"))
	proposer, _ := ssz.Uint64(ssz.Get(ob, "proposer_index"))
	parent, ok1 := bytes32Of(ssz.Get(ob, "parent_root"))
	state, ok2 := bytes32Of(ssz.Get(ob, "state_root"))
	body, ok3 := bytes32Of(ssz.Get(ob, "body_root"))
	if !ok1 || !ok2 || !ok3 {
		return Header{}, ssz.ErrTruncated
	}
	root, err := ssz.HashTreeRoot(ob)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Slot:          slot,
		ProposerIndex: proposer,
		ParentRoot:    parent,
		StateRoot:     state,
		BodyRoot:      body,
		Root:          root,
	}, nil
}

func bytes32Of(ob ssz.Ob) ([32]byte, bool) {
	var out [32]byte
	if !ob.Valid() || len(ob.Bytes) != 32 {
		return out, false
	}
	copy(out[:], ob.Bytes)
	return out, true
}

// BranchChunks reads a branchDef list ob into an ordered slice of 32-byte
// proof chunks, the shape ssz.VerifyMultiProof expects.
func BranchChunks(ob ssz.Ob) ([][32]byte, error) {
	if !ob.Valid() {
		return nil, ssz.ErrNilDef
	}
	n := int(ssz.Len(ob))
	out := make([][32]byte, n)
	for i := 0; i < n; i++ {
		b, ok := bytes32Of(ssz.At(ob, i))
		if !ok {
			return nil, ssz.ErrTruncated
		}
		out[i] = b
	}
	return out, nil
}

// SyncCommitteePubkeys reads a SyncCommitteeDef ob's 512 raw 48-byte pubkeys
// in order.
func SyncCommitteePubkeys(ob ssz.Ob) ([][]byte, error) {
	if !ob.Valid() {
		return nil, ssz.ErrNilDef
	}
	pubkeysOb := ssz.Get(ob, "pubkeys")
	if !pubkeysOb.Valid() {
		return nil, ssz.ErrFieldNotFound
	}
	out := make([][]byte, SyncCommitteeSize)
	for i := 0; i < SyncCommitteeSize; i++ {
		elem := ssz.At(pubkeysOb, i)
		if !elem.Valid() || len(elem.Bytes) != 48 {
			return nil, ssz.ErrTruncated
		}
		raw := make([]byte, 48)
		copy(raw, elem.Bytes)
		out[i] = raw
	}
	return out, nil
}
