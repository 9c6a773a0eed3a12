package blssig

import (
	"testing"

	blst "github.com/supranational/blst/bindings/go"
	"github.com/stretchr/testify/require"
)

func genKey(seed byte) (*blst.SecretKey, *Pubkey) {
	ikm := make([]byte, 32)
	for i := range ikm {
		ikm[i] = seed
	}
	sk := blst.KeyGen(ikm)
	pub := new(blst.P1Affine).From(sk)
	raw := pub.Compress()
	pk, err := DeserializePubkey(raw)
	if err != nil {
		panic(err)
	}
	return sk, pk
}

func TestVerifyAggregateHappyPath(t *testing.T) {
	const n = 6
	msg := []byte("signing-root-0123456789abcdef01")
	var sks []*blst.SecretKey
	var pks []*Pubkey
	for i := 0; i < n; i++ {
		sk, pk := genKey(byte(i + 1))
		sks = append(sks, sk)
		pks = append(pks, pk)
	}

	bitmask := []byte{0xff} // all n participate, n < 8
	var sigs []*blst.P2Affine
	for i := 0; i < n; i++ {
		sig := new(blst.P2Affine).Sign(sks[i], msg, dst)
		sigs = append(sigs, sig)
	}
	aggSig := new(blst.P2Aggregate)
	aggSig.Aggregate(sigs, true)
	agg := aggSig.ToAffine().Compress()

	ok, err := VerifyAggregate(msg, agg, pks, bitmask)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyAggregateRejectsInsufficientParticipation(t *testing.T) {
	const n = 9
	msg := []byte("signing-root-0123456789abcdef01")
	var pks []*Pubkey
	for i := 0; i < n; i++ {
		_, pk := genKey(byte(i + 1))
		pks = append(pks, pk)
	}
	// only 2 of 9 bits set: below ceil(2/3 * 9) == 6.
	bitmask := []byte{0x03, 0x00}
	ok, err := VerifyAggregate(msg, make([]byte, SignatureLen), pks, bitmask)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyAggregateRejectsBadBitmaskLength(t *testing.T) {
	pks := []*Pubkey{}
	_, pk := genKey(1)
	pks = append(pks, pk)
	_, err := VerifyAggregate([]byte("x"), make([]byte, SignatureLen), pks, []byte{})
	require.ErrorIs(t, err, ErrBitmaskLength)
}

func TestDeserializePubkeyRejectsWrongLength(t *testing.T) {
	_, err := DeserializePubkey([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidPubkey)
}

func TestCountSetBits(t *testing.T) {
	require.Equal(t, 4, CountSetBits([]byte{0x0f}, 8))
	require.Equal(t, 0, CountSetBits([]byte{0x00}, 8))
	require.Equal(t, 3, CountSetBits([]byte{0xff}, 3))
}
