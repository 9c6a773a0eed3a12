package bytesutil

import "github.com/pkg/errors"

var errLen32 = errors.New("bytesutil: expected 32 bytes")
