package lightclient

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// CompressedStorage wraps a StoragePlugin with snappy block compression.
// Sync-period records are dominated by the 24KB pubkey vector, which
// compresses poorly when random but well for the long zero runs of test
// fixtures and the repeated prefixes of serialized G1 points; the wrapper
// keeps the core oblivious either way.
type CompressedStorage struct {
	inner StoragePlugin
}

// NewCompressedStorage wraps inner.
func NewCompressedStorage(inner StoragePlugin) *CompressedStorage {
	return &CompressedStorage{inner: inner}
}

// Get decompresses the stored value.
func (c *CompressedStorage) Get(key string) ([]byte, error) {
	raw, err := c.inner.Get(key)
	if err != nil {
		return nil, err
	}
	out, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "lightclient: decompress %q", key)
	}
	return out, nil
}

// Set compresses the value before handing it to the inner plugin.
func (c *CompressedStorage) Set(key string, value []byte) error {
	return c.inner.Set(key, snappy.Encode(nil, value))
}

// Del passes through.
func (c *CompressedStorage) Del(key string) error {
	return c.inner.Del(key)
}
