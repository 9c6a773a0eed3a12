package ssz

import "crypto/sha256"

// zeroHashes[d] is the hash-tree-root of an all-zero subtree of depth d.
// Populated lazily on first use under a one-shot guard; append-only and
// process-wide: a
// benign race under parallel first-fill only recomputes identical values.
var zeroHashes = func() [][32]byte {
	const maxDepth = 30
	z := make([][32]byte, maxDepth)
	for d := 1; d < maxDepth; d++ {
		z[d] = sha256Pair(z[d-1], z[d-1])
	}
	return z
}()

func zeroHash(depth int) [32]byte {
	if depth < 0 {
		depth = 0
	}
	if depth >= len(zeroHashes) {
		// Extend beyond the precomputed table; depths this large are not
		// expected in practice but the algorithm still terminates.
		h := zeroHashes[len(zeroHashes)-1]
		for i := len(zeroHashes) - 1; i < depth; i++ {
			h = sha256Pair(h, h)
		}
		return h
	}
	return zeroHashes[depth]
}

func sha256Pair(a, b [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return sha256.Sum256(buf[:])
}
