package verifier

import (
	"github.com/pkg/errors"

	"github.com/ethlc/lightproof/beaconapi"
	"github.com/ethlc/lightproof/blssig"
	"github.com/ethlc/lightproof/config"
	"github.com/ethlc/lightproof/executor"
	"github.com/ethlc/lightproof/lightclient"
)

// ensureValidators delivers the sync-committee pubkeys for the signing
// period, repairing the trusted state when the period is not yet held:
// bootstrap from a trusted checkpoint, forward sync through light-client
// updates (gated by the weak-subjectivity check), or backfill a missing
// intermediate period through the previous_pubkeys_hash edge case. Every
// repair path may suspend on an external fetch; the function is re-entrant
// and resumes from the deduplicated request state.
func (v *Verifier) ensureValidators(ctx *executor.Ctx, chainID uint64, cfg *config.ChainConfig, period uint32) ([]*blssig.Pubkey, executor.Status, *VerifyError) {
	for {
		_, pubkeys, _, err := v.manager.GetValidators(chainID, period)
		if err == nil {
			return pubkeys, executor.StatusSuccess, nil
		}
		if !errors.Is(err, lightclient.ErrPeriodNotFound) {
			return nil, executor.StatusFailure, newError(CodeUpstream, err)
		}

		highest, found, err := v.manager.HighestPeriod(chainID)
		if err != nil {
			return nil, executor.StatusFailure, newError(CodeUpstream, err)
		}

		var status executor.Status
		var verr *VerifyError
		switch {
		case !found:
			status, verr = v.bootstrap(ctx, chainID, cfg)
		case period < highest:
			status, verr = v.backfillPeriod(ctx, chainID, cfg, period)
		default:
			status, verr = v.forwardSync(ctx, chainID, cfg, highest, period)
		}
		if verr != nil {
			return nil, executor.StatusFailure, verr
		}
		if status == executor.StatusPending {
			return nil, executor.StatusPending, nil
		}
	}
}

// bootstrap establishes the first trusted period from a recorded
// checkpoint root.
func (v *Verifier) bootstrap(ctx *executor.Ctx, chainID uint64, cfg *config.ChainConfig) (executor.Status, *VerifyError) {
	root, ok, err := v.manager.TrustedCheckpoint(chainID)
	if err != nil {
		return executor.StatusFailure, newError(CodeUpstream, err)
	}
	if !ok {
		return executor.StatusFailure, newError(CodeWeakSubjectivityViolated,
			errors.New("no trusted checkpoint to bootstrap from"))
	}
	req := ctx.State.AddRequest(beaconapi.BootstrapRequest(root))
	if !req.Done() {
		return executor.StatusPending, nil
	}
	if req.Err != "" {
		return executor.StatusFailure, newError(CodeUpstream, errors.New(req.Err))
	}
	if err := v.manager.Bootstrap(chainID, cfg, root, req.Response); err != nil {
		return executor.StatusFailure, classifyManagerError(err)
	}
	observeStage("bootstrap", nil)
	return executor.StatusSuccess, nil
}

// backfillPeriod closes a gap below the highest trusted period through the
// previous_pubkeys_hash anchor, covering the delayed-finality transition
// where the next period was recorded but this one was not.
func (v *Verifier) backfillPeriod(ctx *executor.Ctx, chainID uint64, cfg *config.ChainConfig, period uint32) (executor.Status, *VerifyError) {
	req := ctx.State.AddRequest(beaconapi.UpdatesRequest(period, 1))
	if !req.Done() {
		return executor.StatusPending, nil
	}
	if req.Err != "" {
		return executor.StatusFailure, newError(CodeUpstream, errors.New(req.Err))
	}
	entries, err := beaconapi.ParseUpdateStream(req.Response)
	if err != nil {
		return executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	if len(entries) == 0 {
		return executor.StatusFailure, newError(CodeUpstream, errors.Errorf("no update available at period %d", period))
	}
	if err := v.manager.ResolveMissingPeriod(chainID, cfg, period, entries[0].SSZ); err != nil {
		return executor.StatusFailure, classifyManagerError(err)
	}
	observeStage("backfill", nil)
	return executor.StatusSuccess, nil
}

// forwardSync advances the trusted state from highest to target through
// light-client updates, applying the weak-subjectivity gate first when the
// gap exceeds the configured bound.
func (v *Verifier) forwardSync(ctx *executor.Ctx, chainID uint64, cfg *config.ChainConfig, highest, target uint32) (executor.Status, *VerifyError) {
	gap := uint64(target) - uint64(highest)
	if gap > cfg.WeakSubjectivityPeriods() {
		status, verr := v.checkWeakSubjectivity(ctx, chainID, cfg, highest, target)
		if verr != nil || status == executor.StatusPending {
			return status, verr
		}
	}

	req := ctx.State.AddRequest(beaconapi.UpdatesRequest(highest, uint32(gap)))
	if !req.Done() {
		return executor.StatusPending, nil
	}
	if req.Err != "" {
		return executor.StatusFailure, newError(CodeUpstream, errors.New(req.Err))
	}
	entries, err := beaconapi.ParseUpdateStream(req.Response)
	if err != nil {
		return executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	current := highest
	for _, entry := range entries {
		if err := v.manager.ApplyUpdate(chainID, cfg, current, entry.SSZ); err != nil {
			return executor.StatusFailure, classifyManagerError(err)
		}
		current++
	}
	if current == highest {
		return executor.StatusFailure, newError(CodeUpstream,
			errors.Errorf("no updates delivered for periods %d..%d", highest, target))
	}
	observeStage("forward_sync", nil)
	return executor.StatusSuccess, nil
}

// checkWeakSubjectivity fetches the checkpointz anchor for the recorded
// last checkpoint slot and hands it to the manager's byte-for-byte
// comparison. A missing checkpoint or a mismatch clears the chain's sync
// state.
func (v *Verifier) checkWeakSubjectivity(ctx *executor.Ctx, chainID uint64, cfg *config.ChainConfig, highest, target uint32) (executor.Status, *VerifyError) {
	slot, has, err := v.manager.LastCheckpoint(chainID)
	if err != nil {
		return executor.StatusFailure, newError(CodeUpstream, err)
	}
	if !has {
		if err := v.manager.CheckWeakSubjectivity(chainID, cfg, highest, target, nil); err != nil {
			return executor.StatusFailure, classifyManagerError(err)
		}
		return executor.StatusSuccess, nil
	}

	req := ctx.State.AddRequest(beaconapi.CheckpointzBlockRootRequest(slot))
	if !req.Done() {
		return executor.StatusPending, nil
	}
	if req.Err != "" {
		return executor.StatusFailure, newError(CodeUpstream, errors.New(req.Err))
	}
	root, err := beaconapi.BlockRoot(req.Response)
	if err != nil {
		return executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	if err := v.manager.CheckWeakSubjectivity(chainID, cfg, highest, target, &root); err != nil {
		return executor.StatusFailure, classifyManagerError(err)
	}
	observeStage("wsp_check", nil)
	return executor.StatusSuccess, nil
}

// applySyncData folds a request's embedded update stream into the trusted
// state before the proof itself is checked, so a prover can ship the
// updates a verifier is known to be missing.
func (v *Verifier) applySyncData(ctx *executor.Ctx, chainID uint64, cfg *config.ChainConfig, stream []byte) *VerifyError {
	entries, err := beaconapi.ParseUpdateStream(stream)
	if err != nil {
		return newError(CodeInvalidWire, err)
	}
	for _, entry := range entries {
		highest, found, err := v.manager.HighestPeriod(chainID)
		if err != nil {
			return newError(CodeUpstream, err)
		}
		if !found {
			return newError(CodeWeakSubjectivityViolated,
				errors.New("sync data supplied but no trusted period to extend"))
		}
		if err := v.manager.ApplyUpdate(chainID, cfg, highest, entry.SSZ); err != nil {
			return classifyManagerError(err)
		}
	}
	return nil
}

// classifyManagerError maps the manager's sentinel errors onto the surface
// taxonomy.
func classifyManagerError(err error) *VerifyError {
	switch {
	case errors.Is(err, lightclient.ErrInsufficientParticipation):
		return newError(CodeInsufficientParticipation, err)
	case errors.Is(err, lightclient.ErrBadSignature):
		return newError(CodeBadSignature, err)
	case errors.Is(err, lightclient.ErrCommitteeBranchInvalid),
		errors.Is(err, lightclient.ErrFinalityBranchInvalid),
		errors.Is(err, lightclient.ErrBootstrapRootMismatch),
		errors.Is(err, lightclient.ErrPeriodTransitionMismatch):
		return newError(CodeInvalidMerkleProof, err)
	case errors.Is(err, lightclient.ErrWeakSubjectivity),
		errors.Is(err, lightclient.ErrNoCheckpointRecorded):
		return newError(CodeWeakSubjectivityViolated, err)
	default:
		return newError(CodeUpstream, err)
	}
}
