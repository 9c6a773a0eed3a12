// Package config holds the chain parameter registry the rest of the engine
// reads from: slot/epoch arithmetic constants, the weak-subjectivity
// period, the trusted-state eviction bound, and the fork-to-gindex tables
// the bootstrap and forward-sync paths need, scoped to what a stateless
// verifier needs rather than a full node configuration surface.
package config

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "config")

// ForkID selects an SSZ definition set / gindex table. New forks are added
// here rather than threaded through call sites.
type ForkID int

const (
	ForkUnknown ForkID = iota
	ForkDeneb
	ForkElectra
)

// String renders the fork id for logging.
func (f ForkID) String() string {
	switch f {
	case ForkDeneb:
		return "deneb"
	case ForkElectra:
		return "electra"
	default:
		return "unknown"
	}
}

// GindexTable carries the generalized indices that are hardcoded per fork
// because they depend on the beacon-state container layout at that fork.
// Open question (b) from the design notes: a future fork adds an entry here
// rather than a new code path.
type GindexTable struct {
	// CurrentSyncCommittee is the gindex of current_sync_committee beneath
	// the beacon state root.
	CurrentSyncCommittee uint64
	// NextSyncCommittee is the gindex of next_sync_committee beneath the
	// beacon state root.
	NextSyncCommittee uint64
	// FinalizedRoot is the gindex of finalized_checkpoint.root beneath the
	// beacon state root.
	FinalizedRoot uint64
	// ExecutionPayload is the gindex of the execution payload header's
	// container root beneath a BeaconBlockBody root.
	ExecutionPayload uint64
}

// ChainConfig is the set of parameters the verifier and sync-committee
// manager need for one chain id. Values default to Ethereum mainnet.
type ChainConfig struct {
	ChainID uint64

	SlotsPerEpoch               uint64
	EpochsPerSyncCommitteePeriod uint64
	SecondsPerSlot               uint64

	// WeakSubjectivityEpochs bounds how far a light client may advance its
	// trusted state without an out-of-band checkpoint anchor.
	WeakSubjectivityEpochs uint64

	// MaxSyncStates bounds the number of trusted-block records retained per
	// chain before the eviction policy kicks in.
	MaxSyncStates int

	// SyncCommitteeSize is the fixed committee cardinality (512 on mainnet).
	SyncCommitteeSize int

	// Gindices, keyed by fork id, for the fields whose tree position is
	// fork-dependent.
	Gindices map[ForkID]GindexTable
}

// SlotsPerSyncCommitteePeriod is a derived constant.
func (c *ChainConfig) SlotsPerSyncCommitteePeriod() uint64 {
	return c.SlotsPerEpoch * c.EpochsPerSyncCommitteePeriod
}

// PeriodOfSlot returns the sync-committee period containing slot.
func (c *ChainConfig) PeriodOfSlot(slot uint64) uint64 {
	spp := c.SlotsPerSyncCommitteePeriod()
	if spp == 0 {
		return 0
	}
	return slot / spp
}

// EpochOfSlot returns the epoch containing slot.
func (c *ChainConfig) EpochOfSlot(slot uint64) uint64 {
	if c.SlotsPerEpoch == 0 {
		return 0
	}
	return slot / c.SlotsPerEpoch
}

// WeakSubjectivityPeriods converts the epoch-denominated WSP bound into a
// period count, the unit set_sync_period gaps are measured in.
func (c *ChainConfig) WeakSubjectivityPeriods() uint64 {
	if c.EpochsPerSyncCommitteePeriod == 0 {
		return 0
	}
	periods := c.WeakSubjectivityEpochs / c.EpochsPerSyncCommitteePeriod
	if periods == 0 {
		periods = 1
	}
	return periods
}

// RequiredParticipants returns the minimum ceil(2/3 * committee) threshold.
func (c *ChainConfig) RequiredParticipants() int {
	n := c.SyncCommitteeSize
	return (2*n + 2) / 3
}

// GindexFor looks up the fork-specific table, falling back to Deneb's layout
// (the oldest supported fork) if the requested fork id is unregistered -
// matching the source's "hardcoded 54/86" behavior rather than erroring, so
// an unannotated legacy caller keeps working.
func (c *ChainConfig) GindexFor(fork ForkID) GindexTable {
	if t, ok := c.Gindices[fork]; ok {
		return t
	}
	log.WithField("fork", fork.String()).Warn("no gindex table registered, falling back to deneb")
	return c.Gindices[ForkDeneb]
}

// Mainnet is the default chain configuration for Ethereum L1. Consensus
// gindices below follow the standard BeaconState/BeaconBlockBody container
// layouts: current_sync_committee at field index 22 (gindex 32+22 = 54 under
// Deneb's 28-field, depth-5 container; Electra's state has more than 32
// fields, so the container is one level deeper at depth 6, hence 64+22 = 86).
var Mainnet = &ChainConfig{
	ChainID:                      1,
	SlotsPerEpoch:                32,
	EpochsPerSyncCommitteePeriod: 256,
	SecondsPerSlot:               12,
	WeakSubjectivityEpochs:       33024,
	MaxSyncStates:                16,
	SyncCommitteeSize:            512,
	Gindices: map[ForkID]GindexTable{
		ForkDeneb: {
			CurrentSyncCommittee: 54,
			NextSyncCommittee:    55,
			FinalizedRoot:        105,
			ExecutionPayload:     25,
		},
		ForkElectra: {
			CurrentSyncCommittee: 86,
			NextSyncCommittee:    87,
			FinalizedRoot:        169,
			ExecutionPayload:     25,
		},
	},
}

// Registry maps chain id -> ChainConfig, covering L1 plus any op-stack L2s
// the caller registers (their state-root and output-oracle params live in
// OPConfig, not here).
type Registry struct {
	chains map[uint64]*ChainConfig
}

// NewRegistry builds a registry pre-seeded with mainnet.
func NewRegistry() *Registry {
	r := &Registry{chains: make(map[uint64]*ChainConfig)}
	r.Register(Mainnet)
	return r
}

// Register adds or replaces a chain's configuration.
func (r *Registry) Register(c *ChainConfig) {
	r.chains[c.ChainID] = c
}

// Get returns the configuration for chainID, or nil if unregistered.
func (r *Registry) Get(chainID uint64) *ChainConfig {
	return r.chains[chainID]
}
