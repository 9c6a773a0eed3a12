package ssz

import "github.com/pkg/errors"

// Wire-validation errors, surfaced by the verifier pipeline as InvalidWire.
var (
	ErrNilDef            = errors.New("ssz: nil definition")
	ErrTruncated         = errors.New("ssz: truncated input")
	ErrOffsetOutOfRange  = errors.New("ssz: offset out of range")
	ErrOffsetNonMono     = errors.New("ssz: variable-field offsets not monotonically non-decreasing")
	ErrOffsetMismatch    = errors.New("ssz: first offset does not equal fixed-portion length")
	ErrOffsetOverrun     = errors.New("ssz: last offset exceeds total length")
	ErrListTooLong       = errors.New("ssz: list length exceeds max_length")
	ErrBitListNoSentinel = errors.New("ssz: bitlist missing sentinel bit")
	ErrUnknownSelector   = errors.New("ssz: unknown union selector")
	ErrNotIndexable      = errors.New("ssz: definition is not indexable")
	ErrFieldNotFound     = errors.New("ssz: field not found")
	ErrIndexOutOfRange   = errors.New("ssz: index out of range")
)
