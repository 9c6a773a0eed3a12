package beaconapi

import "github.com/ethlc/lightproof/executor"

// Rewriter absorbs per-client API quirks before response bytes enter the
// core. Rewrite may change a request's URL or expected encoding (e.g. a
// client that only serves light-client updates as JSON); Translate converts
// the raw response body into the canonical byte shape the core expects
// (e.g. re-encoding a JSON update list into the length-prefixed SSZ
// stream). The identity rewriter is correct for spec-conformant clients.
type Rewriter interface {
	Rewrite(req *executor.DataRequest)
	Translate(req *executor.DataRequest, body []byte) ([]byte, error)
}

// IdentityRewriter passes requests and responses through unchanged.
type IdentityRewriter struct{}

// Rewrite is a no-op.
func (IdentityRewriter) Rewrite(req *executor.DataRequest) {}

// Translate returns body unchanged.
func (IdentityRewriter) Translate(req *executor.DataRequest, body []byte) ([]byte, error) {
	return body, nil
}
