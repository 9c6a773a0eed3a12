package lightclient

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressedStorageRoundTrip(t *testing.T) {
	inner := newMemStorage()
	cs := NewCompressedStorage(inner)

	value := bytes.Repeat([]byte{0xab, 0x00, 0x00, 0x00}, 12_288) // pubkey-record sized
	require.NoError(t, cs.Set("sync_1_842", value))

	stored, err := inner.Get("sync_1_842")
	require.NoError(t, err)
	require.Less(t, len(stored), len(value), "repetitive record should compress")

	got, err := cs.Get("sync_1_842")
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestCompressedStoragePassesThroughNotFound(t *testing.T) {
	cs := NewCompressedStorage(newMemStorage())
	_, err := cs.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCompressedStorageDel(t *testing.T) {
	inner := newMemStorage()
	cs := NewCompressedStorage(inner)
	require.NoError(t, cs.Set("k", []byte("v")))
	require.NoError(t, cs.Del("k"))
	_, err := cs.Get("k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerWorksOverCompressedStorage(t *testing.T) {
	cs := NewCompressedStorage(newMemStorage())
	m := NewManager(cs, nil)
	cfg := testConfig(4)

	var blockHash [32]byte
	blockHash[0] = 0x01
	require.NoError(t, m.SetSyncPeriod(7, cfg, 100, 819200, blockHash, dummyPubkeys(1), [32]byte{}))

	pubkeys, _, _, err := m.GetValidators(7, 100)
	require.NoError(t, err)
	require.Len(t, pubkeys, SyncCommitteeSize)
}
