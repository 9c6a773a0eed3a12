package lightclient

import "github.com/pkg/errors"

// Sync-committee manager errors, surfaced by the verifier pipeline under the
// WeakSubjectivityViolated / BadSignature / InvalidMerkleProof taxonomy
// the pipeline surfaces to callers.
var (
	ErrNoSyncPeriod              = errors.New("lightclient: no sync-committee period trusted for chain")
	ErrPeriodNotFound            = errors.New("lightclient: requested period not in trusted state")
	ErrBootstrapRootMismatch     = errors.New("lightclient: bootstrap header root does not match trusted checkpoint")
	ErrCommitteeBranchInvalid    = errors.New("lightclient: sync committee Merkle branch failed to verify")
	ErrFinalityBranchInvalid     = errors.New("lightclient: finality Merkle branch failed to verify")
	ErrInsufficientParticipation = errors.New("lightclient: sync committee participation below 2/3 threshold")
	ErrBadSignature              = errors.New("lightclient: sync committee aggregate signature invalid")
	ErrPeriodTransitionMismatch  = errors.New("lightclient: sync committee root mismatch in period transition edge case")
	ErrWeakSubjectivity          = errors.New("lightclient: weak subjectivity check failed: checkpoint mismatch")
	ErrNoCheckpointRecorded      = errors.New("lightclient: weak subjectivity check required but no checkpoint recorded")
	ErrUpdateNotAdvancing        = errors.New("lightclient: update does not extend the trusted period range")
)
