package verifier

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// CallArgs is the transaction shape an eth_call runs with.
type CallArgs struct {
	From  common.Address
	To    *common.Address
	Gas   uint64
	Value *uint256.Int
	Data  []byte
}

// VerifiedAccount is one account of an eth_call input set after its proofs
// checked out: the account fields, the proven storage slots, and the code
// whose keccak matched the account's code hash.
type VerifiedAccount struct {
	Account
	Storage map[common.Hash]common.Hash
	Code    []byte
}

// EVM is the execution contract the core needs from its EVM collaborator:
// run the call against exactly the proven accounts and codes and return
// the output. The implementation is out of scope; it must treat any state
// access outside the supplied set as an error.
type EVM interface {
	Run(args CallArgs, accounts map[common.Address]*VerifiedAccount) ([]byte, error)
}

// CheckCallResult runs the EVM over the verified account set and requires
// the output to equal the proof's claimed result byte-for-byte.
func CheckCallResult(evm EVM, args CallArgs, accounts map[common.Address]*VerifiedAccount, claimed []byte) error {
	if evm == nil {
		return newError(CodeUnsupported, errors.New("no EVM configured"))
	}
	out, err := evm.Run(args, accounts)
	if err != nil {
		return newError(CodeStateRootMismatch, errors.Wrap(err, "evm run"))
	}
	if !bytes.Equal(out, claimed) {
		return newError(CodeStateRootMismatch, errors.Errorf("call output mismatch: got %d bytes, claimed %d", len(out), len(claimed)))
	}
	return nil
}

// checkCode requires code's keccak to equal the proven account's code hash
// before the code may feed the EVM.
func checkCode(acct *Account, code []byte) error {
	if crypto.Keccak256Hash(code) != acct.CodeHash {
		return newError(CodeStateRootMismatch, errors.New("code hash mismatch"))
	}
	return nil
}
