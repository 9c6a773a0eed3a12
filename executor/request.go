// Package executor implements the re-entrant request state machine at the
// top of the engine: a single request progresses through its
// verification stages until it completes, fails, or yields a non-empty set
// of pending external fetches, at which point the executor drains the I/O
// boundary and re-invokes the stage. Stages never run concurrently on the
// same context; the only cross-stage state is the context itself.
package executor

import (
	"crypto/sha256"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "executor")

// Encoding selects the wire format a data request expects back.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingSSZ
)

// RequestType routes a data request to the right upstream family.
type RequestType int

const (
	TypeBeaconAPI RequestType = iota
	TypeRPC
	TypeCheckpointz
	TypeProofer
	TypeIntern
)

func (t RequestType) String() string {
	switch t {
	case TypeBeaconAPI:
		return "beacon-api"
	case TypeRPC:
		return "rpc"
	case TypeCheckpointz:
		return "checkpointz"
	case TypeProofer:
		return "proofer"
	default:
		return "intern"
	}
}

// DataRequest is one pending external fetch. Requests are identity-addressed
// by ID, the SHA-256 of the payload (or of the URL when there is no
// payload), so duplicate submission across stage re-entries deduplicates
// to the same record.
type DataRequest struct {
	ID       [32]byte
	URL      string
	Payload  []byte
	Method   string
	Encoding Encoding
	Type     RequestType

	// Response and Err are filled by the transport between suspensions.
	// Err non-empty with Response empty means the fetch itself failed.
	Response []byte
	Err      string

	// HTTPStatus is the upstream status code, when the transport saw one;
	// zero otherwise. Feeds the retry classification.
	HTTPStatus int

	// Attempts counts fetch issues for this request, bounding retries.
	Attempts int
}

// RequestID computes the deterministic identity of a request: SHA-256 of
// the payload when present, of the URL otherwise.
func RequestID(url string, payload []byte) [32]byte {
	if len(payload) > 0 {
		return sha256.Sum256(payload)
	}
	return sha256.Sum256([]byte(url))
}

// NewRequest builds a DataRequest with its identity precomputed.
func NewRequest(typ RequestType, method, url string, payload []byte, enc Encoding) *DataRequest {
	return &DataRequest{
		ID:       RequestID(url, payload),
		URL:      url,
		Payload:  payload,
		Method:   method,
		Encoding: enc,
		Type:     typ,
	}
}

// Done reports whether the request has been resolved, successfully or not.
func (r *DataRequest) Done() bool {
	return len(r.Response) > 0 || r.Err != ""
}

// MarkRetry clears a failed request's outcome so the transport re-issues
// it, typically against a different upstream. Attempts is preserved so the
// retry bound holds across re-issues.
func (r *DataRequest) MarkRetry() {
	r.Response = nil
	r.Err = ""
	r.HTTPStatus = 0
}
