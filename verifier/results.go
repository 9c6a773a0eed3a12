package verifier

import (
	"encoding/binary"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/ethlc/lightproof/config"
	"github.com/ethlc/lightproof/executor"
	"github.com/ethlc/lightproof/ssz"
)

func marshalResult(v interface{}) (json.RawMessage, *VerifyError) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, newError(CodeInvalidWire, err)
	}
	return raw, nil
}

func hexUint(v uint64) hexutil.Uint64 { return hexutil.Uint64(v) }

// parseParams splits a JSON-RPC params array into its raw elements.
func parseParams(args []byte) ([]json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(args, &out); err != nil {
		return nil, errors.Wrap(err, "params")
	}
	return out, nil
}

func paramString(params []json.RawMessage, i int) (string, error) {
	if i >= len(params) {
		return "", errors.Errorf("missing param %d", i)
	}
	var s string
	if err := json.Unmarshal(params[i], &s); err != nil {
		return "", errors.Wrapf(err, "param %d", i)
	}
	return s, nil
}

// proofNodes reads an mptProofDef ob into the raw RLP node list
// trie.Verify consumes.
func proofNodes(ob ssz.Ob) ([][]byte, error) {
	if !ob.Valid() {
		return nil, ssz.ErrNilDef
	}
	n := int(ssz.Len(ob))
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		node := ssz.At(ob, i)
		if !node.Valid() {
			return nil, ssz.ErrTruncated
		}
		out[i] = node.Bytes
	}
	return out, nil
}

func address20(ob ssz.Ob) ([20]byte, bool) {
	var out [20]byte
	if !ob.Valid() || len(ob.Bytes) != 20 {
		return out, false
	}
	copy(out[:], ob.Bytes)
	return out, true
}

// verifyBalanceProof serves the account family: eth_getBalance,
// eth_getTransactionCount and eth_getStorageAt all reduce to one account
// proof on the verified state root, plus a storage proof for the slot
// variant.
func (v *Verifier) verifyBalanceProof(ctx *executor.Ctx, cfg *config.ChainConfig, ob ssz.Ob) (json.RawMessage, executor.Status, *VerifyError) {
	st, status, verr := v.verifyStateProof(ctx, ctx.ChainID, cfg, ssz.Get(ob, "state_proof"))
	if verr != nil || status == executor.StatusPending {
		return nil, status, verr
	}

	addr, ok := address20(ssz.Get(ob, "address"))
	if !ok {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrTruncated)
	}
	params, err := parseParams(ctx.Args)
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	if len(params) > 0 {
		want, err := paramString(params, 0)
		if err != nil {
			return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
		}
		if common.HexToAddress(want) != common.Address(addr) {
			return nil, executor.StatusFailure, newError(CodeStateRootMismatch,
				errors.New("proof address does not match requested address"))
		}
	}

	nodes, err := proofNodes(ssz.Get(ob, "account_proof"))
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	acct, err := VerifyAccount(st.Exec.StateRoot, addr, nodes)
	observeStage("mpt_account", err)
	if err != nil {
		return nil, executor.StatusFailure, asVerifyError(err)
	}

	switch ctx.Method {
	case "eth_getBalance":
		return finishResult(acct.Balance.Hex())
	case "eth_getTransactionCount":
		return finishResult(hexUint(acct.Nonce))
	case "eth_getStorageAt":
		slotHex, err := paramString(params, 1)
		if err != nil {
			return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
		}
		slot := common.HexToHash(slotHex)
		value, verr := v.verifiedStorageValue(ob, acct, slot)
		if verr != nil {
			return nil, executor.StatusFailure, verr
		}
		return finishResult(value)
	default:
		return finishResult(map[string]interface{}{
			"nonce":       hexUint(acct.Nonce),
			"balance":     acct.Balance.Hex(),
			"codeHash":    acct.CodeHash,
			"storageRoot": acct.StorageRoot,
		})
	}
}

// verifiedStorageValue finds the storage proof for slot among the proof's
// entries and verifies it beneath the account's storage root.
func (v *Verifier) verifiedStorageValue(ob ssz.Ob, acct *Account, slot common.Hash) (common.Hash, *VerifyError) {
	proofs := ssz.Get(ob, "storage_proofs")
	n := int(ssz.Len(proofs))
	for i := 0; i < n; i++ {
		entry := ssz.At(proofs, i)
		key, ok := chunk32(ssz.Get(entry, "key"))
		if !ok {
			return common.Hash{}, newError(CodeInvalidWire, ssz.ErrTruncated)
		}
		if common.Hash(key) != slot {
			continue
		}
		nodes, err := proofNodes(ssz.Get(entry, "proof"))
		if err != nil {
			return common.Hash{}, newError(CodeInvalidWire, err)
		}
		value, err := VerifyStorageValue(acct.StorageRoot, key, nodes)
		observeStage("mpt_storage", err)
		if err != nil {
			return common.Hash{}, asVerifyError(err)
		}
		return value, nil
	}
	return common.Hash{}, newError(CodeInvalidMPTProof, errors.Errorf("no storage proof for slot %s", slot))
}

// rpcTransaction is the subset of the eth_getTransactionByHash result the
// verifier can populate from proven bytes alone.
type rpcTransaction struct {
	BlockHash        common.Hash     `json:"blockHash"`
	BlockNumber      hexutil.Uint64  `json:"blockNumber"`
	From             common.Address  `json:"from"`
	Gas              hexutil.Uint64  `json:"gas"`
	Hash             common.Hash     `json:"hash"`
	Input            hexutil.Bytes   `json:"input"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	To               *common.Address `json:"to"`
	TransactionIndex hexutil.Uint64  `json:"transactionIndex"`
	Value            *hexutil.Big    `json:"value"`
	Type             hexutil.Uint64  `json:"type"`
}

func shapeTransaction(cfg *config.ChainConfig, tx *types.Transaction, exec ExecutionValues, index uint32) (rpcTransaction, error) {
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(cfg.ChainID))
	from, err := types.Sender(signer, tx)
	if err != nil {
		return rpcTransaction{}, errors.Wrap(err, "recover sender")
	}
	return rpcTransaction{
		BlockHash:        common.Hash(exec.BlockHash),
		BlockNumber:      hexUint(exec.BlockNumber),
		From:             from,
		Gas:              hexUint(tx.Gas()),
		Hash:             tx.Hash(),
		Input:            tx.Data(),
		Nonce:            hexUint(tx.Nonce()),
		To:               tx.To(),
		TransactionIndex: hexUint(uint64(index)),
		Value:            (*hexutil.Big)(tx.Value()),
		Type:             hexUint(uint64(tx.Type())),
	}, nil
}

// verifyTxProof serves eth_getTransactionByHash: the proven raw bytes must
// hash to the requested transaction hash, and the MPT proof places them at
// the claimed index beneath the bound transactions root.
func (v *Verifier) verifyTxProof(ctx *executor.Ctx, cfg *config.ChainConfig, ob ssz.Ob) (json.RawMessage, executor.Status, *VerifyError) {
	st, status, verr := v.verifyStateProof(ctx, ctx.ChainID, cfg, ssz.Get(ob, "state_proof"))
	if verr != nil || status == executor.StatusPending {
		return nil, status, verr
	}

	index64, ok := ssz.Uint64(ssz.Get(ob, "transaction_index"))
	if !ok {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrTruncated)
	}
	index := uint32(index64)
	nodes, err := proofNodes(ssz.Get(ob, "proof"))
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	raw, err := VerifyTransaction(st.Exec.TransactionsRoot, index, nodes)
	observeStage("mpt_transaction", err)
	if err != nil {
		return nil, executor.StatusFailure, asVerifyError(err)
	}

	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidMPTProof, errors.Wrap(err, "transaction decode"))
	}

	params, err := parseParams(ctx.Args)
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	if len(params) > 0 {
		wantHex, err := paramString(params, 0)
		if err != nil {
			return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
		}
		if common.HexToHash(wantHex) != tx.Hash() {
			return nil, executor.StatusFailure, newError(CodeStateRootMismatch,
				errors.New("proven transaction does not match requested hash"))
		}
	}

	shaped, err := shapeTransaction(cfg, &tx, st.Exec, index)
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	return finishResult(shaped)
}

// rpcLog is one eth_getLogs / receipt result entry.
type rpcLog struct {
	Address          common.Address `json:"address"`
	Topics           []common.Hash  `json:"topics"`
	Data             hexutil.Bytes  `json:"data"`
	BlockHash        common.Hash    `json:"blockHash"`
	BlockNumber      hexutil.Uint64 `json:"blockNumber"`
	TransactionIndex hexutil.Uint64 `json:"transactionIndex"`
	LogIndex         hexutil.Uint64 `json:"logIndex"`
}

func shapeLogs(rec *Receipt, exec ExecutionValues, txIndex uint32, firstLogIndex uint64) []rpcLog {
	out := make([]rpcLog, 0, len(rec.Logs))
	for i, l := range rec.Logs {
		out = append(out, rpcLog{
			Address:          l.Address,
			Topics:           l.Topics,
			Data:             l.Data,
			BlockHash:        common.Hash(exec.BlockHash),
			BlockNumber:      hexUint(exec.BlockNumber),
			TransactionIndex: hexUint(uint64(txIndex)),
			LogIndex:         hexUint(firstLogIndex + uint64(i)),
		})
	}
	return out
}

// verifyReceiptProof serves eth_getTransactionReceipt: the transaction
// proof at the same index binds the requested hash to the trie key, the
// receipt proof delivers the receipt itself.
func (v *Verifier) verifyReceiptProof(ctx *executor.Ctx, cfg *config.ChainConfig, ob ssz.Ob) (json.RawMessage, executor.Status, *VerifyError) {
	st, status, verr := v.verifyStateProof(ctx, ctx.ChainID, cfg, ssz.Get(ob, "state_proof"))
	if verr != nil || status == executor.StatusPending {
		return nil, status, verr
	}

	index64, ok := ssz.Uint64(ssz.Get(ob, "transaction_index"))
	if !ok {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrTruncated)
	}
	index := uint32(index64)

	txNodes, err := proofNodes(ssz.Get(ob, "tx_proof"))
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	rawTx, err := VerifyTransaction(st.Exec.TransactionsRoot, index, txNodes)
	observeStage("mpt_transaction", err)
	if err != nil {
		return nil, executor.StatusFailure, asVerifyError(err)
	}
	var tx types.Transaction
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidMPTProof, errors.Wrap(err, "transaction decode"))
	}

	params, err := parseParams(ctx.Args)
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	if len(params) > 0 {
		wantHex, err := paramString(params, 0)
		if err != nil {
			return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
		}
		if common.HexToHash(wantHex) != tx.Hash() {
			return nil, executor.StatusFailure, newError(CodeStateRootMismatch,
				errors.New("proven transaction does not match requested hash"))
		}
	}

	recNodes, err := proofNodes(ssz.Get(ob, "proof"))
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	rawReceipt, err := VerifyReceipt(st.Exec.ReceiptsRoot, index, recNodes)
	observeStage("mpt_receipt", err)
	if err != nil {
		return nil, executor.StatusFailure, asVerifyError(err)
	}
	rec, err := DecodeReceipt(rawReceipt)
	if err != nil {
		return nil, executor.StatusFailure, asVerifyError(err)
	}

	statusVal := hexUint(0)
	if rec.Status() {
		statusVal = hexUint(1)
	}
	return finishResult(map[string]interface{}{
		"transactionHash":   tx.Hash(),
		"transactionIndex":  hexUint(uint64(index)),
		"blockHash":         common.Hash(st.Exec.BlockHash),
		"blockNumber":       hexUint(st.Exec.BlockNumber),
		"status":            statusVal,
		"cumulativeGasUsed": hexUint(rec.CumulativeGasUsed),
		"type":              hexUint(uint64(rec.Type)),
		"logsBloom":         hexutil.Bytes(rec.Bloom[:]),
		"logs":              shapeLogs(rec, st.Exec, index, 0),
	})
}

// verifyLogsProof serves eth_getLogs: every candidate block's receipts are
// individually proven, then the address/topic filter is applied to the
// proven logs only.
func (v *Verifier) verifyLogsProof(ctx *executor.Ctx, cfg *config.ChainConfig, ob ssz.Ob) (json.RawMessage, executor.Status, *VerifyError) {
	params, err := parseParams(ctx.Args)
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	filter, err := parseLogFilter(params)
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}

	var results []rpcLog
	blocks := ssz.Get(ob, "blocks")
	n := int(ssz.Len(blocks))
	for i := 0; i < n; i++ {
		block := ssz.At(blocks, i)
		st, status, verr := v.verifyStateProof(ctx, ctx.ChainID, cfg, ssz.Get(block, "state_proof"))
		if verr != nil || status == executor.StatusPending {
			return nil, status, verr
		}

		var logIndex uint64
		receipts := ssz.Get(block, "receipts")
		m := int(ssz.Len(receipts))
		for j := 0; j < m; j++ {
			entry := ssz.At(receipts, j)
			index64, ok := ssz.Uint64(ssz.Get(entry, "transaction_index"))
			if !ok {
				return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrTruncated)
			}
			nodes, err := proofNodes(ssz.Get(entry, "proof"))
			if err != nil {
				return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
			}
			raw, err := VerifyReceipt(st.Exec.ReceiptsRoot, uint32(index64), nodes)
			observeStage("mpt_receipt", err)
			if err != nil {
				return nil, executor.StatusFailure, asVerifyError(err)
			}
			rec, err := DecodeReceipt(raw)
			if err != nil {
				return nil, executor.StatusFailure, asVerifyError(err)
			}
			if !filter.MayMatchBloom(rec.Bloom) {
				logIndex += uint64(len(rec.Logs))
				continue
			}
			for k, l := range rec.Logs {
				if filter.Match(l) {
					shaped := shapeLogs(&Receipt{Logs: []*Log{l}}, st.Exec, uint32(index64), logIndex+uint64(k))
					results = append(results, shaped...)
				}
			}
			logIndex += uint64(len(rec.Logs))
		}
	}
	if results == nil {
		results = []rpcLog{}
	}
	return finishResult(results)
}

// parseLogFilter reads the eth_getLogs filter object: address as a single
// string or an array, topics as the usual nested alternatives.
func parseLogFilter(params []json.RawMessage) (*LogFilter, error) {
	out := &LogFilter{}
	if len(params) == 0 {
		return out, nil
	}
	var obj struct {
		Address json.RawMessage   `json:"address"`
		Topics  []json.RawMessage `json:"topics"`
	}
	if err := json.Unmarshal(params[0], &obj); err != nil {
		return nil, errors.Wrap(err, "log filter")
	}
	if len(obj.Address) > 0 {
		var single string
		if err := json.Unmarshal(obj.Address, &single); err == nil {
			out.Addresses = []common.Address{common.HexToAddress(single)}
		} else {
			var many []string
			if err := json.Unmarshal(obj.Address, &many); err != nil {
				return nil, errors.Wrap(err, "log filter address")
			}
			for _, a := range many {
				out.Addresses = append(out.Addresses, common.HexToAddress(a))
			}
		}
	}
	for _, t := range obj.Topics {
		if string(t) == "null" || len(t) == 0 {
			out.Topics = append(out.Topics, nil)
			continue
		}
		var single string
		if err := json.Unmarshal(t, &single); err == nil {
			out.Topics = append(out.Topics, []common.Hash{common.HexToHash(single)})
			continue
		}
		var many []string
		if err := json.Unmarshal(t, &many); err != nil {
			return nil, errors.Wrap(err, "log filter topics")
		}
		alt := make([]common.Hash, 0, len(many))
		for _, h := range many {
			alt = append(alt, common.HexToHash(h))
		}
		out.Topics = append(out.Topics, alt)
	}
	return out, nil
}

// verifyCallProof serves eth_call: every touched account is proven,
// storage and code are checked against the proven account fields, and the
// EVM's output over that exact state must equal the claimed result.
func (v *Verifier) verifyCallProof(ctx *executor.Ctx, cfg *config.ChainConfig, ob ssz.Ob) (json.RawMessage, executor.Status, *VerifyError) {
	st, status, verr := v.verifyStateProof(ctx, ctx.ChainID, cfg, ssz.Get(ob, "state_proof"))
	if verr != nil || status == executor.StatusPending {
		return nil, status, verr
	}

	accounts := make(map[common.Address]*VerifiedAccount)
	accountsOb := ssz.Get(ob, "accounts")
	n := int(ssz.Len(accountsOb))
	for i := 0; i < n; i++ {
		entry := ssz.At(accountsOb, i)
		addr, ok := address20(ssz.Get(entry, "address"))
		if !ok {
			return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrTruncated)
		}
		nodes, err := proofNodes(ssz.Get(entry, "account_proof"))
		if err != nil {
			return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
		}
		acct, err := VerifyAccount(st.Exec.StateRoot, addr, nodes)
		observeStage("mpt_account", err)
		if err != nil {
			return nil, executor.StatusFailure, asVerifyError(err)
		}

		code := ssz.Get(entry, "code")
		if !code.Valid() {
			return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrFieldNotFound)
		}
		if err := checkCode(acct, code.Bytes); err != nil {
			return nil, executor.StatusFailure, asVerifyError(err)
		}

		storage := make(map[common.Hash]common.Hash)
		slots := ssz.Get(entry, "storage_proofs")
		m := int(ssz.Len(slots))
		for j := 0; j < m; j++ {
			slotEntry := ssz.At(slots, j)
			key, ok := chunk32(ssz.Get(slotEntry, "key"))
			if !ok {
				return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrTruncated)
			}
			slotNodes, err := proofNodes(ssz.Get(slotEntry, "proof"))
			if err != nil {
				return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
			}
			value, err := VerifyStorageValue(acct.StorageRoot, key, slotNodes)
			observeStage("mpt_storage", err)
			if err != nil {
				return nil, executor.StatusFailure, asVerifyError(err)
			}
			storage[common.Hash(key)] = value
		}

		accounts[common.Address(addr)] = &VerifiedAccount{
			Account: *acct,
			Storage: storage,
			Code:    append([]byte{}, code.Bytes...),
		}
	}

	args, err := parseCallArgs(ctx.Args)
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	claimed := ssz.Get(ob, "result")
	if !claimed.Valid() {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrFieldNotFound)
	}
	if err := CheckCallResult(v.evm, args, accounts, claimed.Bytes); err != nil {
		observeStage("evm_call", err)
		return nil, executor.StatusFailure, asVerifyError(err)
	}
	observeStage("evm_call", nil)
	return finishResult(hexutil.Bytes(claimed.Bytes))
}

// parseCallArgs reads the eth_call transaction object.
func parseCallArgs(raw []byte) (CallArgs, error) {
	var out CallArgs
	params, err := parseParams(raw)
	if err != nil {
		return out, err
	}
	if len(params) == 0 {
		return out, errors.New("eth_call requires a transaction object")
	}
	var obj struct {
		From  *common.Address `json:"from"`
		To    *common.Address `json:"to"`
		Gas   *hexutil.Uint64 `json:"gas"`
		Value *hexutil.Big    `json:"value"`
		Data  *hexutil.Bytes  `json:"data"`
		Input *hexutil.Bytes  `json:"input"`
	}
	if err := json.Unmarshal(params[0], &obj); err != nil {
		return out, errors.Wrap(err, "call object")
	}
	if obj.From != nil {
		out.From = *obj.From
	}
	out.To = obj.To
	if obj.Gas != nil {
		out.Gas = uint64(*obj.Gas)
	}
	out.Value = uint256.NewInt(0)
	if obj.Value != nil {
		out.Value, _ = uint256.FromBig((*big.Int)(obj.Value))
	}
	if obj.Input != nil {
		out.Data = *obj.Input
	} else if obj.Data != nil {
		out.Data = *obj.Data
	}
	return out, nil
}

// verifyOpBlockProof anchors an op-stack L2 block to its L1: the state
// proof is verified against the L1 chain's trusted sync committees, then
// the OutputRoot reconstruction must match the oracle's stored value.
func (v *Verifier) verifyOpBlockProof(ctx *executor.Ctx, cfg *config.ChainConfig, ob ssz.Ob) (json.RawMessage, executor.Status, *VerifyError) {
	if v.ops == nil {
		return nil, executor.StatusFailure, newError(CodeUnsupported, errors.New("no op-stack registry configured"))
	}
	op := v.ops.Get(ctx.ChainID)
	if op == nil {
		return nil, executor.StatusFailure, newError(CodeUnsupported, errors.Errorf("chain %d is not a registered op-stack L2", ctx.ChainID))
	}
	l1cfg := v.registry.Get(op.L1ChainID)
	if l1cfg == nil {
		return nil, executor.StatusFailure, newError(CodeUnsupported, errors.Errorf("L1 chain %d not registered", op.L1ChainID))
	}

	st, status, verr := v.verifyStateProof(ctx, op.L1ChainID, l1cfg, ssz.Get(ob, "state_proof"))
	if verr != nil || status == executor.StatusPending {
		return nil, status, verr
	}

	outputIndex, ok := ssz.Uint64(ssz.Get(ob, "output_index"))
	if !ok {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrTruncated)
	}
	l2StateRoot, ok1 := chunk32(ssz.Get(ob, "l2_state_root"))
	messagePasserRoot, ok2 := chunk32(ssz.Get(ob, "message_passer_storage_root"))
	l2BlockHash, ok3 := chunk32(ssz.Get(ob, "l2_block_hash"))
	if !ok1 || !ok2 || !ok3 {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrTruncated)
	}
	oracleNodes, err := proofNodes(ssz.Get(ob, "oracle_account_proof"))
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}
	outputNodes, err := proofNodes(ssz.Get(ob, "output_storage_proof"))
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, err)
	}

	err = VerifyOutputRoot(op, st.Exec.StateRoot, outputIndex, l2StateRoot, messagePasserRoot, l2BlockHash, oracleNodes, outputNodes)
	observeStage("op_output_root", err)
	if err != nil {
		return nil, executor.StatusFailure, asVerifyError(err)
	}

	return finishResult(map[string]interface{}{
		"l2BlockHash":   common.Hash(l2BlockHash),
		"l2StateRoot":   common.Hash(l2StateRoot),
		"outputIndex":   hexUint(outputIndex),
		"l1BlockNumber": hexUint(st.Exec.BlockNumber),
	})
}

// verifyOpPreconfProof checks a sequencer preconfirmation: the 65-byte
// secp256k1 signature over the envelope digest must recover to the L2's
// registered unsafe signer.
func (v *Verifier) verifyOpPreconfProof(ctx *executor.Ctx, ob ssz.Ob) (json.RawMessage, executor.Status, *VerifyError) {
	if v.ops == nil {
		return nil, executor.StatusFailure, newError(CodeUnsupported, errors.New("no op-stack registry configured"))
	}
	op := v.ops.Get(ctx.ChainID)
	if op == nil {
		return nil, executor.StatusFailure, newError(CodeUnsupported, errors.Errorf("chain %d is not a registered op-stack L2", ctx.ChainID))
	}

	blockHash, ok1 := chunk32(ssz.Get(ob, "block_hash"))
	payloadHash, ok2 := chunk32(ssz.Get(ob, "payload_hash"))
	blockNumber, ok3 := ssz.Uint64(ssz.Get(ob, "block_number"))
	sigOb := ssz.Get(ob, "signature")
	if !ok1 || !ok2 || !ok3 || !sigOb.Valid() || len(sigOb.Bytes) != 65 {
		return nil, executor.StatusFailure, newError(CodeInvalidWire, ssz.ErrTruncated)
	}

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], blockNumber)
	digest := crypto.Keccak256(blockHash[:], num[:], payloadHash[:])

	sig := append([]byte{}, sigOb.Bytes...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return nil, executor.StatusFailure, newError(CodeBadSignature, err)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if signer != common.Address(op.UnsafeSigner) {
		observeStage("preconf_signature", errors.New("signer mismatch"))
		return nil, executor.StatusFailure, newError(CodeBadSignature,
			errors.Errorf("preconfirmation signed by %s, want %s", signer, common.Address(op.UnsafeSigner)))
	}
	observeStage("preconf_signature", nil)

	return finishResult(map[string]interface{}{
		"blockHash":      common.Hash(blockHash),
		"blockNumber":    hexUint(blockNumber),
		"preconfirmed":   true,
		"sequencer":      signer,
	})
}

// finishResult marshals a shaped result into the success status triple.
func finishResult(v interface{}) (json.RawMessage, executor.Status, *VerifyError) {
	raw, verr := marshalResult(v)
	if verr != nil {
		return nil, executor.StatusFailure, verr
	}
	return raw, executor.StatusSuccess, nil
}

// asVerifyError passes through taxonomy errors and wraps anything else as
// an MPT failure, the only untyped error source in the families.
func asVerifyError(err error) *VerifyError {
	if verr, ok := err.(*VerifyError); ok {
		return verr
	}
	return newError(CodeInvalidMPTProof, err)
}
