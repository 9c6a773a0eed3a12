package lightclient

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethlc/lightproof/blssig"
	"github.com/ethlc/lightproof/config"
	"github.com/ethlc/lightproof/ssz"
)

// Manager owns the sync-committee state machine over `(chain, period)`:
// NONE -> ACCEPTED_CHECKPOINT -> HAS_SYNC_COMMITTEE, with a
// WSP_VIOLATED transition back to NONE. It holds no network client; every
// method here is handed already-fetched bytes and either updates storage or
// returns a precise error.
type Manager struct {
	storage  StoragePlugin
	registry *config.Registry
	cache    *deserializedCache
}

// NewManager builds a Manager over a storage plugin and chain-parameter
// registry.
func NewManager(storage StoragePlugin, registry *config.Registry) *Manager {
	return &Manager{storage: storage, registry: registry, cache: newDeserializedCache()}
}

// loadState reads and decodes a chain's trusted-block records, treating a
// missing key as an empty state rather than an error.
func (m *Manager) loadState(chainID uint64) (ChainState, error) {
	raw, err := m.storage.Get(statesKey(chainID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ChainState{}, nil
		}
		return ChainState{}, errors.Wrap(err, "lightclient: load chain state")
	}
	if len(raw) == 0 {
		return ChainState{}, nil
	}
	return DecodeChainState(raw)
}

func (m *Manager) saveState(chainID uint64, s ChainState) error {
	return m.storage.Set(statesKey(chainID), EncodeChainState(s))
}

// HighestPeriod returns the highest trusted period recorded for chainID, and
// false if no synced period exists yet (only checkpoints, or nothing at all).
func (m *Manager) HighestPeriod(chainID uint64) (uint32, bool, error) {
	s, err := m.loadState(chainID)
	if err != nil {
		return 0, false, err
	}
	found := false
	var highest uint32
	for _, r := range s.Records {
		if r.IsCheckpoint() {
			continue
		}
		if !found || r.Period > highest {
			highest = r.Period
			found = true
		}
	}
	return highest, found, nil
}

// TrustedCheckpoint returns the blockhash of a chain's trusted-checkpoint
// record (slot == 0, awaiting bootstrap), and false when none exists.
func (m *Manager) TrustedCheckpoint(chainID uint64) ([32]byte, bool, error) {
	s, err := m.loadState(chainID)
	if err != nil {
		return [32]byte{}, false, err
	}
	for _, r := range s.Records {
		if r.IsCheckpoint() {
			return r.BlockHash, true, nil
		}
	}
	return [32]byte{}, false, nil
}

// LastCheckpoint returns the chain's recorded last finalized checkpoint
// slot, and false when none was recorded.
func (m *Manager) LastCheckpoint(chainID uint64) (uint64, bool, error) {
	s, err := m.loadState(chainID)
	if err != nil {
		return 0, false, err
	}
	return s.LastCheckpoint, s.HasCheckpoint, nil
}

// SetSyncPeriod extends the trusted state with a newly verified period.
// Write ordering is deliberate: the
// pubkey record is written before the states list is overwritten, so a
// crash mid-write leaves only an orphaned, unreferenced pubkey record.
func (m *Manager) SetSyncPeriod(chainID uint64, cfg *config.ChainConfig, period uint32, slot uint64, blockHash [32]byte, committeePubkeys [][]byte, prevPubkeysHash [32]byte) error {
	s, err := m.loadState(chainID)
	if err != nil {
		return err
	}

	onlyCheckpoints := len(s.Records) > 0
	for _, r := range s.Records {
		if !r.IsCheckpoint() {
			onlyCheckpoints = false
			break
		}
	}
	if onlyCheckpoints {
		log.WithField("chain", chainID).Info("bootstrap supersedes trusted checkpoints")
		s.Records = nil
	}

	maxStates := cfg.MaxSyncStates
	for len(s.Records) >= maxStates && maxStates > 0 {
		evictIdx := evictionIndex(s.Records)
		evicted := s.Records[evictIdx]
		if err := m.storage.Del(syncKey(chainID, evicted.Period)); err != nil {
			return errors.Wrap(err, "lightclient: evict sync period record")
		}
		m.cache.invalidate(chainID, evicted.Period)
		s.Records = append(s.Records[:evictIdx], s.Records[evictIdx+1:]...)
	}

	record, err := EncodeSyncPeriodRecord(SyncPeriodRecord{Pubkeys: committeePubkeys, PreviousPubkeysHash: prevPubkeysHash})
	if err != nil {
		return err
	}
	if err := m.storage.Set(syncKey(chainID, period), record); err != nil {
		return errors.Wrap(err, "lightclient: write sync period record")
	}

	s.Records = append(s.Records, TrustedBlockRecord{Slot: slot, Period: period, BlockHash: blockHash})
	sort.Slice(s.Records, func(i, j int) bool { return s.Records[i].Period < s.Records[j].Period })
	m.cache.invalidate(chainID, period)

	return m.saveState(chainID, s)
}

// evictionIndex picks the record to evict: preserve the
// oldest and the latest; among the middle, evict the oldest by period. When
// only two or fewer records remain, evict the single oldest.
func evictionIndex(records []TrustedBlockRecord) int {
	if len(records) <= 2 {
		return oldestIndex(records)
	}
	// records is sorted ascending by period; the middle slice is [1:len-1].
	oldestMiddle := 1
	for i := 2; i < len(records)-1; i++ {
		if records[i].Period < records[oldestMiddle].Period {
			oldestMiddle = i
		}
	}
	return oldestMiddle
}

func oldestIndex(records []TrustedBlockRecord) int {
	idx := 0
	for i, r := range records {
		if r.Period < records[idx].Period {
			idx = i
		}
	}
	return idx
}

// GetValidators loads period's sync-committee pubkeys, stripping the
// trailing previous_pubkeys_hash anchor, and optionally deserializes them
// onto the curve, caching the result for subsequent calls.
func (m *Manager) GetValidators(chainID uint64, period uint32) (pubkeysRaw [][]byte, deserialized []*blssig.Pubkey, prevHash [32]byte, err error) {
	raw, err := m.storage.Get(syncKey(chainID, period))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, prevHash, errors.Wrapf(ErrPeriodNotFound, "chain %d period %d", chainID, period)
		}
		return nil, nil, prevHash, err
	}
	rec, decErr := DecodeSyncPeriodRecord(raw)
	if decErr != nil {
		return nil, nil, prevHash, decErr
	}

	if cached, ok := m.cache.get(chainID, period); ok {
		return rec.Pubkeys, cached, rec.PreviousPubkeysHash, nil
	}

	out := make([]*blssig.Pubkey, len(rec.Pubkeys))
	for i, raw := range rec.Pubkeys {
		pk, derr := blssig.DeserializePubkey(raw)
		if derr != nil {
			return nil, nil, prevHash, errors.Wrapf(derr, "pubkey %d", i)
		}
		out[i] = pk
	}
	m.cache.set(chainID, period, out)
	return rec.Pubkeys, out, rec.PreviousPubkeysHash, nil
}

// Bootstrap verifies a `light_client/bootstrap` response against a trusted
// checkpoint root already recorded in the chain state, and, on success,
// establishes period 0 (or whatever period the bootstrap slot falls in) as
// the trusted sync-committee state.
func (m *Manager) Bootstrap(chainID uint64, cfg *config.ChainConfig, trustedRoot [32]byte, bootstrapSSZ []byte) error {
	ob := ssz.New(BootstrapDef, bootstrapSSZ)
	if err := ssz.Validate(BootstrapDef, bootstrapSSZ); err != nil {
		return errors.Wrap(err, "lightclient: invalid bootstrap wire bytes")
	}

	header, err := DecodeHeader(ssz.Get(ob, "header"))
	if err != nil {
		return errors.Wrap(err, "lightclient: decode bootstrap header")
	}
	if header.Root != trustedRoot {
		return errors.Wrapf(ErrBootstrapRootMismatch, "got %x want %x", header.Root, trustedRoot)
	}

	committeeOb := ssz.Get(ob, "current_sync_committee")
	committeeRoot, err := ssz.HashTreeRoot(committeeOb)
	if err != nil {
		return errors.Wrap(err, "lightclient: hash current sync committee")
	}

	fork := forkAtSlot(cfg, header.Slot)
	gindex := ssz.Gindex(cfg.GindexFor(fork).CurrentSyncCommittee)

	branchOb := ssz.Get(ob, "current_sync_committee_branch")
	branch, err := BranchChunks(branchOb)
	if err != nil {
		return errors.Wrap(err, "lightclient: decode sync committee branch")
	}
	if !ssz.VerifyMultiProof(header.StateRoot, branch, map[ssz.Gindex][32]byte{gindex: committeeRoot}, []ssz.Gindex{gindex}) {
		return ErrCommitteeBranchInvalid
	}

	pubkeys, err := SyncCommitteePubkeys(committeeOb)
	if err != nil {
		return errors.Wrap(err, "lightclient: decode sync committee pubkeys")
	}

	period := uint32(cfg.PeriodOfSlot(header.Slot))
	return m.SetSyncPeriod(chainID, cfg, period, header.Slot, header.Root, pubkeys, [32]byte{})
}

// forkAtSlot is a placeholder fork-selection rule: the registry carries
// tables for every registered fork, but selecting among them by slot needs a
// fork-schedule the verifier-scoped ChainConfig doesn't carry (open question
// (b) from the design notes). It returns ForkDeneb for every slot, and
// Bootstrap and ApplyUpdate take no fork parameter, so both always use the
// Deneb gindex table.
func forkAtSlot(cfg *config.ChainConfig, slot uint64) config.ForkID {
	return config.ForkDeneb
}

// ApplyUpdate processes one `light_client/updates` entry, the forward-sync
// path: it checks the sync aggregate against the current
// period's committee, verifies the next-committee and finality Merkle
// branches, and, if finalized participation clears 2/3, extends the
// trusted state to period+1.
func (m *Manager) ApplyUpdate(chainID uint64, cfg *config.ChainConfig, currentPeriod uint32, updateSSZ []byte) error {
	if err := ssz.Validate(UpdateDef, updateSSZ); err != nil {
		return errors.Wrap(err, "lightclient: invalid update wire bytes")
	}
	ob := ssz.New(UpdateDef, updateSSZ)

	attested, err := DecodeHeader(ssz.Get(ob, "attested_header"))
	if err != nil {
		return errors.Wrap(err, "lightclient: decode attested header")
	}
	finalized, err := DecodeHeader(ssz.Get(ob, "finalized_header"))
	if err != nil {
		return errors.Wrap(err, "lightclient: decode finalized header")
	}

	_, deserializedPubkeys, _, err := m.GetValidators(chainID, currentPeriod)
	if err != nil {
		return err
	}

	aggOb := ssz.Get(ob, "sync_aggregate")
	bitsOb := ssz.Get(aggOb, "sync_committee_bits")
	sigOb := ssz.Get(aggOb, "sync_committee_signature")
	if !bitsOb.Valid() || !sigOb.Valid() {
		return errors.Wrap(ssz.ErrFieldNotFound, "lightclient: sync aggregate fields")
	}

	ok, err := blssig.VerifyAggregate(attested.Root[:], sigOb.Bytes, deserializedPubkeys, bitsOb.Bytes)
	if err != nil {
		return errors.Wrap(err, "lightclient: aggregate signature check")
	}
	if !ok {
		participants := blssig.CountSetBits(bitsOb.Bytes, len(deserializedPubkeys))
		required := blssig.RequiredParticipants(len(deserializedPubkeys))
		if participants < required {
			return errors.Wrapf(ErrInsufficientParticipation, "%d/%d, need %d", participants, len(deserializedPubkeys), required)
		}
		return ErrBadSignature
	}

	fork := forkAtSlot(cfg, attested.Slot)
	gindices := cfg.GindexFor(fork)

	nextCommitteeOb := ssz.Get(ob, "next_sync_committee")
	nextCommitteeRoot, err := ssz.HashTreeRoot(nextCommitteeOb)
	if err != nil {
		return errors.Wrap(err, "lightclient: hash next sync committee")
	}
	nextBranch, err := BranchChunks(ssz.Get(ob, "next_sync_committee_branch"))
	if err != nil {
		return errors.Wrap(err, "lightclient: decode next sync committee branch")
	}
	nextGindex := ssz.Gindex(gindices.NextSyncCommittee)
	if !ssz.VerifyMultiProof(attested.StateRoot, nextBranch, map[ssz.Gindex][32]byte{nextGindex: nextCommitteeRoot}, []ssz.Gindex{nextGindex}) {
		return ErrCommitteeBranchInvalid
	}

	finalityBranch, err := BranchChunks(ssz.Get(ob, "finality_branch"))
	if err != nil {
		return errors.Wrap(err, "lightclient: decode finality branch")
	}
	finalityGindex := ssz.Gindex(gindices.FinalizedRoot)
	if !ssz.VerifyMultiProof(attested.StateRoot, finalityBranch, map[ssz.Gindex][32]byte{finalityGindex: finalized.Root}, []ssz.Gindex{finalityGindex}) {
		return ErrFinalityBranchInvalid
	}

	nextCommitteePubkeys, err := SyncCommitteePubkeys(nextCommitteeOb)
	if err != nil {
		return errors.Wrap(err, "lightclient: decode next sync committee pubkeys")
	}

	currentPubkeysRaw, _, _, err := m.GetValidators(chainID, currentPeriod)
	if err != nil {
		return err
	}
	prevHash := sha256RawPubkeys(currentPubkeysRaw)

	log.WithFields(logrus.Fields{
		"chain":  chainID,
		"period": currentPeriod + 1,
		"slot":   finalized.Slot,
	}).Info("extending trusted sync-committee state")

	return m.SetSyncPeriod(chainID, cfg, currentPeriod+1, finalized.Slot, finalized.Root, nextCommitteePubkeys, prevHash)
}

// sha256RawPubkeys hashes the concatenation of raw 48-byte pubkeys, the
// anchor value both the forward-sync and missing-period-edge-case paths
// compare against.
func sha256RawPubkeys(pubkeys [][]byte) [32]byte {
	h := sha256.New()
	for _, pk := range pubkeys {
		h.Write(pk)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ResolveMissingPeriod handles the delayed-finality edge case: the sync
// store holds period P+1 but not P, because a delayed finality at the
// transition skipped recording P directly. Given one light-client update at
// period P, it extracts that update's next_sync_committee (the committee
// *for* P+1), checks its pubkeys hash against P+1's recorded
// previous_pubkeys_hash, and on match backfills P from the update's
// finalized header.
func (m *Manager) ResolveMissingPeriod(chainID uint64, cfg *config.ChainConfig, missingPeriod uint32, updateAtMissingPeriodSSZ []byte) error {
	if err := ssz.Validate(UpdateDef, updateAtMissingPeriodSSZ); err != nil {
		return errors.Wrap(err, "lightclient: invalid update wire bytes")
	}
	ob := ssz.New(UpdateDef, updateAtMissingPeriodSSZ)

	_, _, prevHashAtNext, err := m.GetValidators(chainID, missingPeriod+1)
	if err != nil {
		return err
	}

	nextCommitteeOb := ssz.Get(ob, "next_sync_committee")
	pubkeys, err := SyncCommitteePubkeys(nextCommitteeOb)
	if err != nil {
		return errors.Wrap(err, "lightclient: decode edge-case committee pubkeys")
	}
	candidateHash := sha256RawPubkeys(pubkeys)
	if !bytes.Equal(candidateHash[:], prevHashAtNext[:]) {
		return ErrPeriodTransitionMismatch
	}

	finalized, err := DecodeHeader(ssz.Get(ob, "finalized_header"))
	if err != nil {
		return errors.Wrap(err, "lightclient: decode edge-case finalized header")
	}

	return m.SetSyncPeriod(chainID, cfg, missingPeriod, finalized.Slot, finalized.Root, pubkeys, [32]byte{})
}

// CheckWeakSubjectivity gates long trusted-state jumps: if
// targetPeriod - highestTrustedPeriod exceeds the configured WSP bound and a
// last_checkpoint slot is recorded, the caller must have already fetched the
// checkpointz block root for that slot (checkpointzRoot) so it can be
// compared byte-for-byte against the locally stored blockhash. A mismatch
// clears the chain's sync state; a gap exactly at the boundary is permitted
// without a checkpoint fetch.
func (m *Manager) CheckWeakSubjectivity(chainID uint64, cfg *config.ChainConfig, highestTrustedPeriod, targetPeriod uint32, checkpointzRoot *[32]byte) error {
	gap := uint64(targetPeriod) - uint64(highestTrustedPeriod)
	if gap <= cfg.WeakSubjectivityPeriods() {
		return nil
	}

	s, err := m.loadState(chainID)
	if err != nil {
		return err
	}
	if !s.HasCheckpoint {
		if err := m.ClearSyncState(chainID); err != nil {
			return err
		}
		return ErrNoCheckpointRecorded
	}
	if checkpointzRoot == nil {
		return errors.New("lightclient: checkpointz root required but not supplied")
	}

	var stored [32]byte
	found := false
	for _, r := range s.Records {
		if r.Slot == s.LastCheckpoint {
			stored = r.BlockHash
			found = true
			break
		}
	}
	if !found || stored != *checkpointzRoot {
		if err := m.ClearSyncState(chainID); err != nil {
			return err
		}
		return ErrWeakSubjectivity
	}
	return nil
}

// ClearSyncState wipes every trusted-block and sync-period record for
// chainID, so the next request re-bootstraps rather than reusing poisoned
// state.
func (m *Manager) ClearSyncState(chainID uint64) error {
	s, err := m.loadState(chainID)
	if err != nil {
		return err
	}
	for _, r := range s.Records {
		if r.IsCheckpoint() {
			continue
		}
		if err := m.storage.Del(syncKey(chainID, r.Period)); err != nil {
			return errors.Wrap(err, "lightclient: clear sync period record")
		}
		m.cache.invalidate(chainID, r.Period)
	}
	return m.storage.Del(statesKey(chainID))
}
