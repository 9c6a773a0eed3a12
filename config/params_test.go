package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeriodOfSlot(t *testing.T) {
	c := Mainnet
	require.Equal(t, uint64(0), c.PeriodOfSlot(0))
	require.Equal(t, uint64(0), c.PeriodOfSlot(c.SlotsPerSyncCommitteePeriod()-1))
	require.Equal(t, uint64(1), c.PeriodOfSlot(c.SlotsPerSyncCommitteePeriod()))
}

func TestRequiredParticipants(t *testing.T) {
	require.Equal(t, 342, Mainnet.RequiredParticipants())
}

func TestWeakSubjectivityPeriods(t *testing.T) {
	require.True(t, Mainnet.WeakSubjectivityPeriods() > 0)
}

func TestGindexForFallsBackToDeneb(t *testing.T) {
	g := Mainnet.GindexFor(ForkUnknown)
	require.Equal(t, Mainnet.Gindices[ForkDeneb], g)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.Get(1))
	require.Nil(t, r.Get(999))
}

func TestLoadPreset(t *testing.T) {
	raw := []byte(`
chain_id: 1
slots_per_epoch: 32
epochs_per_sync_committee_period: 256
seconds_per_slot: 12
weak_subjectivity_epochs: 33024
max_sync_states: 16
sync_committee_size: 512
`)
	c, err := LoadPreset(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(32), c.SlotsPerEpoch)
}

func TestLoadPresetMissingFields(t *testing.T) {
	_, err := LoadPreset([]byte(`chain_id: 1`))
	require.Error(t, err)
}
