// Package verifier orchestrates the per-method verification pipeline:
// signature check over the attested header, execution
// payload binding beneath its body root, and the Merkle-Patricia proofs of
// the data family being served, shaping the JSON-RPC result from verified
// bytes only. It holds no network client; external fetches surface as
// pending data requests through the executor.
package verifier

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethlc/lightproof/blssig"
	"github.com/ethlc/lightproof/config"
	"github.com/ethlc/lightproof/executor"
	"github.com/ethlc/lightproof/lightclient"
	"github.com/ethlc/lightproof/ssz"
)

var log = logrus.WithField("prefix", "verifier")

// Verifier wires the pipeline's collaborators: chain parameters, the
// sync-committee manager, the method classification table, and the EVM for
// eth_call. All fields are required except evm and ops, which gate the
// call and op-stack families.
type Verifier struct {
	registry *config.Registry
	ops      *config.OPRegistry
	manager  *lightclient.Manager
	methods  MethodTable
	evm      EVM
}

// New builds a Verifier.
func New(registry *config.Registry, ops *config.OPRegistry, manager *lightclient.Manager, methods MethodTable, evm EVM) *Verifier {
	return &Verifier{registry: registry, ops: ops, manager: manager, methods: methods, evm: evm}
}

// Job is one JSON-RPC request moving through the executor: the request
// identity, the proof packet, and the shaped response once the pipeline
// completes. Stage is re-entrant; the executor re-invokes it after
// draining pending fetches.
type Job struct {
	Verifier *Verifier
	ID       json.RawMessage
	Raw      []byte // C4Request SSZ

	Response Response
}

// Stage runs the job's pipeline against ctx. Local methods bypass the
// proof but share the same error shaping; proofable methods run the full
// pipeline. Every terminal outcome, success or failure, leaves a complete
// JSON-RPC response on the job.
func (j *Job) Stage(ctx *executor.Ctx) executor.Status {
	v := j.Verifier
	class := v.methods.Classify(ctx.Method)
	switch class {
	case MethodLocal:
		result, verr := v.serveLocal(ctx)
		return j.finish(ctx, result, verr)
	case MethodProofable:
		result, status, verr := v.verifyProofable(ctx, j.Raw)
		if status == executor.StatusPending {
			return executor.StatusPending
		}
		return j.finish(ctx, result, verr)
	default:
		return j.finish(ctx, nil, newError(CodeUnsupported,
			errors.Errorf("method %s classified %s", ctx.Method, class)))
	}
}

func (j *Job) finish(ctx *executor.Ctx, result json.RawMessage, verr *VerifyError) executor.Status {
	if verr != nil {
		ctx.State.RecordError(verr.Error())
		j.Response = FailureResponse(j.ID, verr)
		return executor.StatusFailure
	}
	j.Response = SuccessResponse(j.ID, result)
	return executor.StatusSuccess
}

// serveLocal answers methods that need no proof at all.
func (v *Verifier) serveLocal(ctx *executor.Ctx) (json.RawMessage, *VerifyError) {
	switch ctx.Method {
	case "eth_chainId":
		return marshalResult(hexUint(ctx.ChainID))
	case "web3_clientVersion":
		return marshalResult("lightproof/verifier")
	default:
		return nil, newError(CodeUnsupported, errors.Errorf("no local handler for %s", ctx.Method))
	}
}

// verifyProofable validates the request packet, applies any embedded sync
// data, and dispatches on the proof union's selector.
func (v *Verifier) verifyProofable(ctx *executor.Ctx, raw []byte) (json.RawMessage, executor.Status, *VerifyError) {
	cfg := v.registry.Get(ctx.ChainID)
	if cfg == nil {
		return nil, executor.StatusFailure, newError(CodeUnsupported, errors.Errorf("chain %d not registered", ctx.ChainID))
	}
	proofBytes.Observe(float64(len(raw)))

	if err := ssz.Validate(RequestDef, raw); err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	req := ssz.New(RequestDef, raw)

	syncUnion := ssz.Get(req, "sync_data")
	if ssz.Selector(syncUnion) > 0 {
		stream := ssz.Get(syncUnion, "bytes")
		if stream.Valid() && len(stream.Bytes) > 0 {
			if verr := v.applySyncData(ctx, ctx.ChainID, cfg, stream.Bytes); verr != nil {
				return nil, executor.StatusFailure, verr
			}
		}
	}

	proofUnion := ssz.Get(req, "proof")
	selector := ssz.Selector(proofUnion)
	proofOb := ssz.Get(proofUnion, "value")
	if !proofOb.Valid() {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrFieldNotFound)
	}

	var (
		result json.RawMessage
		status executor.Status
		verr   *VerifyError
	)
	switch selector {
	case ProofEthBalance:
		result, status, verr = v.verifyBalanceProof(ctx, cfg, proofOb)
	case ProofEthTx:
		result, status, verr = v.verifyTxProof(ctx, cfg, proofOb)
	case ProofEthReceipt:
		result, status, verr = v.verifyReceiptProof(ctx, cfg, proofOb)
	case ProofEthLogs:
		result, status, verr = v.verifyLogsProof(ctx, cfg, proofOb)
	case ProofEthCall:
		result, status, verr = v.verifyCallProof(ctx, cfg, proofOb)
	case ProofOpVerifyBlock:
		result, status, verr = v.verifyOpBlockProof(ctx, cfg, proofOb)
	case ProofOpVerifyPreconf:
		result, status, verr = v.verifyOpPreconfProof(ctx, proofOb)
	default:
		return nil, executor.StatusFailure, newError(CodeInvalidWire,
			errors.Errorf("unhandled proof selector %d", selector))
	}
	if verr != nil {
		log.WithFields(logrus.Fields{
			"method": ctx.Method,
			"chain":  ctx.ChainID,
			"code":   verr.Code.String(),
		}).Warn("proof verification failed")
	}
	return result, status, verr
}

// VerifiedState is the outcome of the shared consensus stages: the signed
// header and the execution values bound beneath its body root.
type VerifiedState struct {
	Header lightclient.Header
	Exec   ExecutionValues
}

// verifyStateProof runs the shared consensus stages: resolve the
// signing period's committee (suspending on any repair fetches), check the
// aggregate signature and participation, then verify the execution payload
// binding multiproof.
func (v *Verifier) verifyStateProof(ctx *executor.Ctx, chainID uint64, cfg *config.ChainConfig, spOb ssz.Ob) (*VerifiedState, executor.Status, *VerifyError) {
	header, err := lightclient.DecodeHeader(ssz.Get(spOb, "header"))
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	ctx.DataSlot = header.Slot

	period := uint32(cfg.PeriodOfSlot(header.Slot))
	pubkeys, status, verr := v.ensureValidators(ctx, chainID, cfg, period)
	if verr != nil || status == executor.StatusPending {
		return nil, status, verr
	}

	bitsOb := ssz.Get(spOb, "sync_committee_bits")
	sigOb := ssz.Get(spOb, "sync_committee_signature")
	if !bitsOb.Valid() || !sigOb.Valid() {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrFieldNotFound)
	}
	participants := blssig.CountSetBits(bitsOb.Bytes, len(pubkeys))
	if participants < blssig.RequiredParticipants(len(pubkeys)) {
		observeStage("attestation", lightclient.ErrInsufficientParticipation)
		return nil, executor.StatusFailure, newError(CodeInsufficientParticipation,
			errors.Errorf("%d of %d", participants, len(pubkeys)))
	}
	ok, err := blssig.VerifyAggregate(header.Root[:], sigOb.Bytes, pubkeys, bitsOb.Bytes)
	if err != nil {
		observeStage("attestation", err)
		return nil, executor.StatusFailure, newError(CodeBadSignature, err)
	}
	if !ok {
		observeStage("attestation", lightclient.ErrBadSignature)
		return nil, executor.StatusFailure, newError(CodeBadSignature, lightclient.ErrBadSignature)
	}
	observeStage("attestation", nil)

	exec, err := decodeExecutionValues(ssz.Get(spOb, "execution"))
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	witnesses, err := lightclient.BranchChunks(ssz.Get(spOb, "proof"))
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	table := cfg.GindexFor(config.ForkDeneb)
	if err := verifyExecutionBinding(table, header, exec, witnesses); err != nil {
		observeStage("execution_binding", err)
		if verr, ok := err.(*VerifyError); ok {
			return nil, executor.StatusFailure, verr
		}
		return nil, executor.StatusFailure, newError(CodeInvalidMerkleProof, err)
	}
	observeStage("execution_binding", nil)

	return &VerifiedState{Header: header, Exec: exec}, executor.StatusSuccess, nil
}
