package beaconapi

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// UpdateEntry is one element of a light-client updates response stream: the
// fork digest the server annotated the entry with, plus the raw SSZ bytes
// of the update itself.
type UpdateEntry struct {
	ForkDigest [4]byte
	SSZ        []byte
}

// ErrTruncatedStream means the updates stream ended mid-entry.
var ErrTruncatedStream = errors.New("beaconapi: truncated update stream")

// ParseUpdateStream decodes a `light_client/updates` SSZ response: a
// sequence of entries, each `u64 length || u32 fork_digest || ssz_bytes`,
// where length covers the fork digest plus the ssz bytes.
func ParseUpdateStream(b []byte) ([]UpdateEntry, error) {
	var out []UpdateEntry
	for len(b) > 0 {
		if len(b) < 8 {
			return nil, ErrTruncatedStream
		}
		entryLen := binary.LittleEndian.Uint64(b[:8])
		b = b[8:]
		if entryLen < 4 || uint64(len(b)) < entryLen {
			return nil, ErrTruncatedStream
		}
		var digest [4]byte
		copy(digest[:], b[:4])
		ssz := make([]byte, entryLen-4)
		copy(ssz, b[4:entryLen])
		out = append(out, UpdateEntry{ForkDigest: digest, SSZ: ssz})
		b = b[entryLen:]
	}
	return out, nil
}
