package verifier

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/ethlc/lightproof/trie"
)

// Account is a decoded state-trie leaf.
type Account struct {
	Nonce       uint64
	Balance     *uint256.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

type accountRLP struct {
	Nonce       uint64
	Balance     *uint256.Int
	StorageRoot common.Hash
	CodeHash    []byte
}

// emptyCodeHash is keccak256 of the empty byte string, the code hash of
// every non-contract account.
var emptyCodeHash = crypto.Keccak256Hash(nil)

// VerifyAccount checks an account's MPT proof against the verified state
// root, keyed by keccak(address), and decodes the account RLP. An absent
// key verifies as the empty account.
func VerifyAccount(stateRoot [32]byte, address [20]byte, proof [][]byte) (*Account, error) {
	key := crypto.Keccak256(address[:])
	val, err := trie.Verify(stateRoot[:], key, proof)
	if err != nil {
		if errors.Is(err, trie.ErrKeyNotFound) {
			return &Account{Balance: uint256.NewInt(0), CodeHash: emptyCodeHash}, nil
		}
		return nil, newError(CodeInvalidMPTProof, err)
	}
	var dec accountRLP
	if err := rlp.DecodeBytes(val, &dec); err != nil {
		return nil, newError(CodeInvalidMPTProof, errors.Wrap(err, "account rlp"))
	}
	acct := &Account{
		Nonce:       dec.Nonce,
		Balance:     dec.Balance,
		StorageRoot: dec.StorageRoot,
		CodeHash:    common.BytesToHash(dec.CodeHash),
	}
	if acct.Balance == nil {
		acct.Balance = uint256.NewInt(0)
	}
	return acct, nil
}

// VerifyStorageValue checks a storage slot's MPT proof against an account's
// verified storage root, keyed by keccak(slot). The terminal value is the
// RLP of the slot content with leading zeros stripped; an absent key
// verifies as the zero value.
func VerifyStorageValue(storageRoot common.Hash, slot [32]byte, proof [][]byte) (common.Hash, error) {
	key := crypto.Keccak256(slot[:])
	val, err := trie.Verify(storageRoot[:], key, proof)
	if err != nil {
		if errors.Is(err, trie.ErrKeyNotFound) {
			return common.Hash{}, nil
		}
		return common.Hash{}, newError(CodeInvalidMPTProof, err)
	}
	var content []byte
	if err := rlp.DecodeBytes(val, &content); err != nil {
		return common.Hash{}, newError(CodeInvalidMPTProof, errors.Wrap(err, "storage value rlp"))
	}
	return common.BytesToHash(content), nil
}
