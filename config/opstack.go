package config

import "github.com/ethlc/lightproof/bytesutil"

// OPConfig holds the additional parameters an op-stack L2 verification needs
// on top of its L1 anchor: the L2OutputOracle contract address and the
// storage slot its output-root mapping is rooted at.
type OPConfig struct {
	L1ChainID uint64
	L2ChainID uint64

	L2OutputOracle bytesutil.Address

	// OutputMappingSlot is the storage slot index the oracle's
	// l2Outputs[index] mapping is declared at; the leaf slot for a given
	// output index is keccak256(index ++ OutputMappingSlot).
	OutputMappingSlot bytesutil.Bytes32

	// OutputRootVersion is the single version byte prefixed to the
	// reconstructed OutputRoot preimage.
	OutputRootVersion byte

	// UnsafeSigner is the sequencer address preconfirmation envelopes must
	// be signed by; only consulted by the preconf proof family.
	UnsafeSigner bytesutil.Address
}

// OPRegistry maps L2 chain id -> OPConfig.
type OPRegistry struct {
	chains map[uint64]*OPConfig
}

// NewOPRegistry builds an empty op-stack registry; callers register the L2s
// they serve.
func NewOPRegistry() *OPRegistry {
	return &OPRegistry{chains: make(map[uint64]*OPConfig)}
}

// Register adds or replaces an L2's configuration.
func (r *OPRegistry) Register(c *OPConfig) {
	r.chains[c.L2ChainID] = c
}

// Get returns the configuration for an L2 chain id, or nil if unregistered.
func (r *OPRegistry) Get(l2ChainID uint64) *OPConfig {
	return r.chains[l2ChainID]
}
