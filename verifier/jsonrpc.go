package verifier

import "encoding/json"

// Response is the JSON-RPC envelope the verifier shapes its output into:
// either {id, result} or {id, error}, never both.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the JSON-RPC error body.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse wraps an already-marshaled result.
func SuccessResponse(id json.RawMessage, result json.RawMessage) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// FailureResponse wraps a verification failure; the taxonomy code is
// negated into the JSON-RPC application error range.
func FailureResponse(id json.RawMessage, err *VerifyError) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &ResponseError{Code: -32000 - int(err.Code), Message: err.Error()},
	}
}
