package verifier

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/ethlc/lightproof/trie"
)

// txTrieKey is the transactions/receipts trie key for a transaction index:
// the RLP of the index as an unsigned integer.
func txTrieKey(index uint32) []byte {
	key, _ := rlp.EncodeToBytes(uint64(index))
	return key
}

// VerifyTransaction checks a transaction's MPT proof against the verified
// transactions root and returns the raw (possibly EIP-2718 typed)
// transaction bytes.
func VerifyTransaction(transactionsRoot [32]byte, index uint32, proof [][]byte) ([]byte, error) {
	val, err := trie.Verify(transactionsRoot[:], txTrieKey(index), proof)
	if err != nil {
		return nil, newError(CodeInvalidMPTProof, err)
	}
	return val, nil
}

// VerifyReceipt checks a receipt's MPT proof against the verified receipts
// root and returns the raw receipt bytes.
func VerifyReceipt(receiptsRoot [32]byte, index uint32, proof [][]byte) ([]byte, error) {
	val, err := trie.Verify(receiptsRoot[:], txTrieKey(index), proof)
	if err != nil {
		return nil, newError(CodeInvalidMPTProof, err)
	}
	return val, nil
}

// Log is one receipt log entry, in its consensus RLP shape.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Receipt is a decoded consensus receipt.
type Receipt struct {
	// Type is the EIP-2718 envelope type; 0 for legacy receipts.
	Type byte
	// PostStateOrStatus is the pre-Byzantium state root or the 0/1 status.
	PostStateOrStatus []byte
	CumulativeGasUsed uint64
	Bloom             [256]byte
	Logs              []*Log
}

type receiptRLP struct {
	PostStateOrStatus []byte
	CumulativeGasUsed uint64
	Bloom             [256]byte
	Logs              []*Log
}

// DecodeReceipt parses raw receipt bytes, unwrapping the EIP-2718 envelope
// when the first byte identifies a typed receipt (byte 0 < 0x80).
func DecodeReceipt(raw []byte) (*Receipt, error) {
	if len(raw) == 0 {
		return nil, newError(CodeInvalidMPTProof, errors.New("empty receipt"))
	}
	var typ byte
	if raw[0] < 0x80 {
		typ = raw[0]
		raw = raw[1:]
	}
	var dec receiptRLP
	if err := rlp.DecodeBytes(raw, &dec); err != nil {
		return nil, newError(CodeInvalidMPTProof, errors.Wrap(err, "receipt rlp"))
	}
	return &Receipt{
		Type:              typ,
		PostStateOrStatus: dec.PostStateOrStatus,
		CumulativeGasUsed: dec.CumulativeGasUsed,
		Bloom:             dec.Bloom,
		Logs:              dec.Logs,
	}, nil
}

// Status reports the receipt's success flag; pre-Byzantium receipts carry a
// state root instead and report true.
func (r *Receipt) Status() bool {
	if len(r.PostStateOrStatus) == 32 {
		return true
	}
	return len(r.PostStateOrStatus) == 1 && r.PostStateOrStatus[0] == 1
}

// LogFilter is the address/topic predicate of an eth_getLogs query. Topics
// follow the RPC convention: position i of Topics constrains the log's
// topic i to any of the listed values, an empty position matches anything.
type LogFilter struct {
	Addresses []common.Address
	Topics    [][]common.Hash
}

// Match reports whether l satisfies the filter.
func (f *LogFilter) Match(l *Log) bool {
	if len(f.Addresses) > 0 {
		found := false
		for _, a := range f.Addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Topics) > len(l.Topics) {
		return false
	}
	for i, alternatives := range f.Topics {
		if len(alternatives) == 0 {
			continue
		}
		found := false
		for _, t := range alternatives {
			if t == l.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// BloomContains reports whether item may be present per the receipt bloom:
// three 11-bit positions derived from keccak(item) must all be set. False
// positives are possible, false negatives are not, so the caller still
// matches proven logs exactly.
func BloomContains(bloom [256]byte, item []byte) bool {
	h := crypto.Keccak256(item)
	for i := 0; i < 6; i += 2 {
		bit := binary.BigEndian.Uint16(h[i:i+2]) & 0x7ff
		byteIdx := 256 - 1 - bit/8
		if bloom[byteIdx]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}

// MayMatchBloom is the cheap pre-check applied per candidate block: the
// filter can only match a receipt list whose bloom covers at least one
// address and each constrained topic position.
func (f *LogFilter) MayMatchBloom(bloom [256]byte) bool {
	if len(f.Addresses) > 0 {
		found := false
		for _, a := range f.Addresses {
			if BloomContains(bloom, a[:]) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, alternatives := range f.Topics {
		if len(alternatives) == 0 {
			continue
		}
		found := false
		for _, t := range alternatives {
			if BloomContains(bloom, t[:]) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
