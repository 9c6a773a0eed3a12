// Package blssig wraps blst's BLS12-381 curve operations behind the single
// contract the verification core needs: check that an aggregate signature
// over a signing root verifies against the subset of a sync committee's
// public keys marked present in a participation bitmask. The core treats
// BLS as a primitive - this package is that primitive, a thin wrapper over
// blst that exposes only the aggregate check the pipeline needs.
package blssig

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	blst "github.com/supranational/blst/bindings/go"
)

var log = logrus.WithField("prefix", "blssig")

const (
	// PubkeyLen is the compressed, serialized length of a BLS12-381 G1
	// public key.
	PubkeyLen = 48
	// SignatureLen is the compressed, serialized length of a BLS12-381 G2
	// signature.
	SignatureLen = 96
)

var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSZ_RO_POP_")

// ErrInvalidPubkey is returned when a serialized pubkey fails curve
// validation during deserialization.
var ErrInvalidPubkey = errors.New("blssig: invalid pubkey encoding")

// ErrInvalidSignature is returned when a serialized signature fails curve
// validation.
var ErrInvalidSignature = errors.New("blssig: invalid signature encoding")

// ErrBitmaskLength is returned when the participation bitmask's length does
// not match ceil(numPubkeys/8).
var ErrBitmaskLength = errors.New("blssig: participation bitmask length mismatch")

// Pubkey is a deserialized, curve-validated BLS12-381 G1 affine point. The
// sync-committee manager keeps these in a process-local cache next to the
// persisted raw 48-byte serialization, so repeated verifications skip
// deserialization; the persisted sync-period record holds only the raw form.
type Pubkey struct {
	affine *blst.P1Affine
	raw    [PubkeyLen]byte
}

// DeserializePubkey validates and deserializes a 48-byte compressed pubkey.
func DeserializePubkey(raw []byte) (*Pubkey, error) {
	if len(raw) != PubkeyLen {
		return nil, errors.Wrapf(ErrInvalidPubkey, "length %d", len(raw))
	}
	p := new(blst.P1Affine).Uncompress(raw)
	if p == nil || !p.KeyValidate() {
		return nil, ErrInvalidPubkey
	}
	pk := &Pubkey{affine: p}
	copy(pk.raw[:], raw)
	return pk, nil
}

// Raw returns the pubkey's original 48-byte serialization.
func (p *Pubkey) Raw() []byte { return p.raw[:] }

// RequiredParticipants returns ceil(2*numPubkeys/3), the minimum number of
// set bits in a valid participation bitmask.
func RequiredParticipants(numPubkeys int) int {
	return (2*numPubkeys + 2) / 3
}

// CountSetBits returns the number of 1 bits in a little-endian packed
// bitmask, ignoring bits beyond numPubkeys.
func CountSetBits(bitmask []byte, numPubkeys int) int {
	count := 0
	for i := 0; i < numPubkeys; i++ {
		byteIdx, bitIdx := i/8, uint(i%8)
		if byteIdx >= len(bitmask) {
			break
		}
		if bitmask[byteIdx]&(1<<bitIdx) != 0 {
			count++
		}
	}
	return count
}

// VerifyAggregate checks that signature (96 bytes, compressed G2) verifies
// against signingRoot for the subset of pubkeys marked present in bitmask.
// It fails if the bitmask's length is wrong, if fewer than
// ceil(2/3) of pubkeys participate, or if any selected pubkey or the
// signature itself fails curve validation.
func VerifyAggregate(signingRoot []byte, signature []byte, pubkeys []*Pubkey, bitmask []byte) (bool, error) {
	wantBitmaskLen := (len(pubkeys) + 7) / 8
	if len(bitmask) != wantBitmaskLen {
		return false, errors.Wrapf(ErrBitmaskLength, "got %d want %d", len(bitmask), wantBitmaskLen)
	}

	participants := CountSetBits(bitmask, len(pubkeys))
	required := RequiredParticipants(len(pubkeys))
	if participants < required {
		log.WithFields(logrus.Fields{
			"participants": participants,
			"required":     required,
		}).Warn("insufficient sync committee participation")
		return false, nil
	}

	selected := make([]*blst.P1Affine, 0, participants)
	for i, pk := range pubkeys {
		byteIdx, bitIdx := i/8, uint(i%8)
		if byteIdx >= len(bitmask) {
			continue
		}
		if bitmask[byteIdx]&(1<<bitIdx) == 0 {
			continue
		}
		if pk == nil {
			return false, ErrInvalidPubkey
		}
		selected = append(selected, pk.affine)
	}

	if len(signature) != SignatureLen {
		return false, errors.Wrapf(ErrInvalidSignature, "length %d", len(signature))
	}
	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false, ErrInvalidSignature
	}

	ok := sig.FastAggregateVerify(true, selected, signingRoot, dst)
	return ok, nil
}
