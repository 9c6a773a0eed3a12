package config

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// preset is the YAML shape of an optional chain-parameter preset file,
// mirroring the field names of karalabe/ssz's spectest config fixtures
// closely enough that the same preset files can seed a ChainConfig without
// transformation.
type preset struct {
	ChainID                      uint64 `yaml:"chain_id"`
	SlotsPerEpoch                uint64 `yaml:"slots_per_epoch"`
	EpochsPerSyncCommitteePeriod uint64 `yaml:"epochs_per_sync_committee_period"`
	SecondsPerSlot               uint64 `yaml:"seconds_per_slot"`
	WeakSubjectivityEpochs       uint64 `yaml:"weak_subjectivity_epochs"`
	MaxSyncStates                int    `yaml:"max_sync_states"`
	SyncCommitteeSize            int    `yaml:"sync_committee_size"`
}

// LoadPreset parses a YAML chain-parameter preset and returns a ChainConfig
// seeded from it, with the Deneb fork's hardcoded gindex table attached (a
// preset does not carry gindices; callers needing Electra gindices register
// them separately via ChainConfig.Gindices).
func LoadPreset(raw []byte) (*ChainConfig, error) {
	var p preset
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(err, "config: decode preset")
	}
	if p.SlotsPerEpoch == 0 || p.EpochsPerSyncCommitteePeriod == 0 {
		return nil, errors.New("config: preset missing slots_per_epoch or epochs_per_sync_committee_period")
	}
	return &ChainConfig{
		ChainID:                      p.ChainID,
		SlotsPerEpoch:                p.SlotsPerEpoch,
		EpochsPerSyncCommitteePeriod: p.EpochsPerSyncCommitteePeriod,
		SecondsPerSlot:               p.SecondsPerSlot,
		WeakSubjectivityEpochs:       p.WeakSubjectivityEpochs,
		MaxSyncStates:                p.MaxSyncStates,
		SyncCommitteeSize:            p.SyncCommitteeSize,
		Gindices: map[ForkID]GindexTable{
			ForkDeneb: Mainnet.Gindices[ForkDeneb],
		},
	}, nil
}
