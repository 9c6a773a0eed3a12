package bytesutil

import "encoding/hex"

// View is a read-only, borrowed window into untyped octets: a pointer and a
// length. It never copies on construction and must not outlive the buffer or
// slice it was taken from.
type View []byte

// NewView wraps p without copying. The caller is responsible for ensuring p's
// backing array outlives the returned View.
func NewView(p []byte) View {
	return View(p)
}

// Slice returns the sub-view [i:j), panicking under the same rules as a
// native slice expression.
func (v View) Slice(i, j int) View {
	return v[i:j]
}

// Len returns the number of bytes in the view.
func (v View) Len() int {
	return len(v)
}

// Raw exposes the underlying bytes. The result aliases v; callers that need
// an owned copy should use Clone.
func (v View) Raw() []byte {
	return []byte(v)
}

// Clone copies the view into a freshly allocated, independently owned slice.
func (v View) Clone() []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Bytes32At reads a fixed 32-byte value starting at offset, or the zero
// value plus false if the view is too short.
func (v View) Bytes32At(offset int) (Bytes32, bool) {
	var out Bytes32
	if offset < 0 || offset+32 > len(v) {
		return out, false
	}
	copy(out[:], v[offset:offset+32])
	return out, true
}

// Uint32LE decodes 4 little-endian bytes at offset into a uint32. The second
// return value is false if the view is too short.
func (v View) Uint32LE(offset int) (uint32, bool) {
	if offset < 0 || offset+4 > len(v) {
		return 0, false
	}
	b := v[offset : offset+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, true
}

// Uint64LE decodes 8 little-endian bytes at offset into a uint64.
func (v View) Uint64LE(offset int) (uint64, bool) {
	if offset < 0 || offset+8 > len(v) {
		return 0, false
	}
	var out uint64
	for i := 0; i < 8; i++ {
		out |= uint64(v[offset+i]) << (8 * uint(i))
	}
	return out, true
}

// PutUint64LE returns the 8-byte little-endian encoding of x. Used by callers
// assembling LE64(length) mixins.
func PutUint64LE(x uint64) [8]byte {
	var out [8]byte
	for i := 0; i < 8; i++ {
		out[i] = byte(x >> (8 * uint(i)))
	}
	return out
}

// HexToBytes32 decodes a "0x"-prefixed or bare hex string into a Bytes32,
// mirroring the beacon-API's block-root path parameter shape.
func HexToBytes32(s string) (Bytes32, error) {
	var out Bytes32
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, errLen32
	}
	copy(out[:], b)
	return out, nil
}

// Bytes32ToHex renders b as a "0x"-prefixed lowercase hex string.
func Bytes32ToHex(b Bytes32) string {
	return "0x" + hex.EncodeToString(b[:])
}
