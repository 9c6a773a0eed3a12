package lightclient

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/ethlc/lightproof/blssig"
)

// recordSize is the on-wire size of one trusted-block record: 8-byte slot,
// 4-byte period, 32-byte blockhash.
const recordSize = 8 + 4 + 32

// pubkeysSize is the raw serialized size of a full sync committee.
const pubkeysSize = SyncCommitteeSize * 48

// TrustedBlockRecord is one persisted `(chain, period)` anchor: slot == 0
// marks a trusted checkpoint with no period assigned yet.
type TrustedBlockRecord struct {
	Slot      uint64
	Period    uint32
	BlockHash [32]byte
}

// IsCheckpoint reports whether r is a bare trusted-checkpoint record
// awaiting bootstrap, rather than a synced period.
func (r TrustedBlockRecord) IsCheckpoint() bool { return r.Slot == 0 }

func (r TrustedBlockRecord) encode() []byte {
	out := make([]byte, recordSize)
	binary.LittleEndian.PutUint64(out[0:8], r.Slot)
	binary.LittleEndian.PutUint32(out[8:12], r.Period)
	copy(out[12:44], r.BlockHash[:])
	return out
}

func decodeRecord(b []byte) (TrustedBlockRecord, error) {
	if len(b) != recordSize {
		return TrustedBlockRecord{}, errors.Errorf("lightclient: bad record size %d", len(b))
	}
	var r TrustedBlockRecord
	r.Slot = binary.LittleEndian.Uint64(b[0:8])
	r.Period = binary.LittleEndian.Uint32(b[8:12])
	copy(r.BlockHash[:], b[12:44])
	return r, nil
}

// ChainState is the ordered collection of trusted-block records for a chain,
// plus the last finalized checkpoint slot used for weak-subjectivity
// recovery. Open question (a) from the design notes: the trailing
// last_checkpoint field is detected by `len % 40 == 8`, since there is no
// explicit length self-descriptor; this port freezes that layout rather than
// adding a version byte, to stay wire-compatible with existing stores.
type ChainState struct {
	Records        []TrustedBlockRecord
	LastCheckpoint uint64
	HasCheckpoint  bool
}

// EncodeChainState serializes s in the persisted `states_{chain_id}` layout.
func EncodeChainState(s ChainState) []byte {
	out := make([]byte, 0, len(s.Records)*recordSize+8)
	for _, r := range s.Records {
		out = append(out, r.encode()...)
	}
	if s.HasCheckpoint {
		var tail [8]byte
		binary.LittleEndian.PutUint64(tail[:], s.LastCheckpoint)
		out = append(out, tail[:]...)
	}
	return out
}

// DecodeChainState parses the persisted `states_{chain_id}` value, detecting
// the optional trailing last_checkpoint via `len % 40 == 8`.
func DecodeChainState(b []byte) (ChainState, error) {
	var s ChainState
	if len(b)%recordSize == 8 && len(b) >= 8 {
		s.HasCheckpoint = true
		tail := b[len(b)-8:]
		s.LastCheckpoint = binary.LittleEndian.Uint64(tail)
		b = b[:len(b)-8]
	}
	if len(b)%recordSize != 0 {
		return ChainState{}, errors.Errorf("lightclient: chain state length %d is not a multiple of %d", len(b), recordSize)
	}
	n := len(b) / recordSize
	s.Records = make([]TrustedBlockRecord, n)
	for i := 0; i < n; i++ {
		r, err := decodeRecord(b[i*recordSize : (i+1)*recordSize])
		if err != nil {
			return ChainState{}, err
		}
		s.Records[i] = r
	}
	return s, nil
}

// SyncPeriodRecord is the persisted per-`(chain, period)` sync-committee
// record: the raw pubkey vector plus the previous period's pubkeys hash,
// the anchor used by the missing-intermediate-period edge case.
type SyncPeriodRecord struct {
	Pubkeys             [][]byte // 512 x 48 bytes
	PreviousPubkeysHash [32]byte
}

// EncodeSyncPeriodRecord serializes r in the persisted
// `sync_{chain_id}_{period}` layout: `pubkeys ++ previous_pubkeys_hash`.
func EncodeSyncPeriodRecord(r SyncPeriodRecord) ([]byte, error) {
	if len(r.Pubkeys) != SyncCommitteeSize {
		return nil, errors.Errorf("lightclient: expected %d pubkeys, got %d", SyncCommitteeSize, len(r.Pubkeys))
	}
	out := make([]byte, 0, pubkeysSize+32)
	for i, pk := range r.Pubkeys {
		if len(pk) != 48 {
			return nil, errors.Errorf("lightclient: pubkey %d has length %d, want 48", i, len(pk))
		}
		out = append(out, pk...)
	}
	out = append(out, r.PreviousPubkeysHash[:]...)
	return out, nil
}

// DecodeSyncPeriodRecord parses a persisted sync-period value, stripping the
// trailing 32-byte previous_pubkeys_hash anchor.
func DecodeSyncPeriodRecord(b []byte) (SyncPeriodRecord, error) {
	if len(b) != pubkeysSize+32 {
		return SyncPeriodRecord{}, errors.Errorf("lightclient: sync period record length %d, want %d", len(b), pubkeysSize+32)
	}
	var r SyncPeriodRecord
	r.Pubkeys = make([][]byte, SyncCommitteeSize)
	for i := 0; i < SyncCommitteeSize; i++ {
		pk := make([]byte, 48)
		copy(pk, b[i*48:(i+1)*48])
		r.Pubkeys[i] = pk
	}
	copy(r.PreviousPubkeysHash[:], b[pubkeysSize:pubkeysSize+32])
	return r, nil
}

// deserializedCache holds pubkeys a caller has already validated and
// deserialized onto the curve, keyed by (chain, period), so repeated
// verifications against the same period skip re-deserialization. It is a
// process-local, unbounded memoization table, not a persisted store;
// invalidate removes a period's entry when that period is recorded again,
// evicted, or the chain's state is cleared.
type deserializedCache struct {
	entries map[string][]*blssig.Pubkey
}

func newDeserializedCache() *deserializedCache {
	return &deserializedCache{entries: make(map[string][]*blssig.Pubkey)}
}

func cacheKey(chainID uint64, period uint32) string {
	return fmt.Sprintf("%d:%d", chainID, period)
}

func (c *deserializedCache) get(chainID uint64, period uint32) ([]*blssig.Pubkey, bool) {
	v, ok := c.entries[cacheKey(chainID, period)]
	return v, ok
}

func (c *deserializedCache) set(chainID uint64, period uint32, pubkeys []*blssig.Pubkey) {
	c.entries[cacheKey(chainID, period)] = pubkeys
}

func (c *deserializedCache) invalidate(chainID uint64, period uint32) {
	delete(c.entries, cacheKey(chainID, period))
}

// StoragePlugin is the persisted-state boundary: an external
// collaborator providing get/set/del over opaque byte values, keyed by the
// string keys this package constructs. The core never assumes a particular
// backing store; implementations typically wrap an embedded KV store the
// way a full node would.
type StoragePlugin interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Del(key string) error
}

// ErrNotFound is returned by a StoragePlugin.Get when key is absent; callers
// treat it as "no state yet" rather than a storage failure.
var ErrNotFound = errors.New("lightclient: key not found")

func statesKey(chainID uint64) string { return fmt.Sprintf("states_%d", chainID) }
func syncKey(chainID uint64, period uint32) string {
	return fmt.Sprintf("sync_%d_%d", chainID, period)
}
