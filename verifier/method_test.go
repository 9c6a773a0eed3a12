package verifier

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestStaticMethodTable(t *testing.T) {
	table := StaticMethodTable{
		"eth_getBalance":         MethodProofable,
		"eth_chainId":            MethodLocal,
		"eth_sendRawTransaction": MethodUnproofable,
		"debug_traceBlock":       MethodNotSupported,
	}
	require.Equal(t, MethodProofable, table.Classify("eth_getBalance"))
	require.Equal(t, MethodLocal, table.Classify("eth_chainId"))
	require.Equal(t, MethodUnproofable, table.Classify("eth_sendRawTransaction"))
	require.Equal(t, MethodNotSupported, table.Classify("debug_traceBlock"))
	require.Equal(t, MethodUndefined, table.Classify("eth_unheardOf"))
}

func TestResponseShaping(t *testing.T) {
	id := json.RawMessage(`42`)

	ok := SuccessResponse(id, json.RawMessage(`"0x1"`))
	raw, err := json.Marshal(ok)
	require.NoError(t, err)
	require.JSONEq(t, `{"jsonrpc":"2.0","id":42,"result":"0x1"}`, string(raw))

	fail := FailureResponse(id, newError(CodeInvalidMerkleProof, errors.New("wrong root")))
	raw, err = json.Marshal(fail)
	require.NoError(t, err)
	require.JSONEq(t, `{"jsonrpc":"2.0","id":42,"error":{"code":-32002,"message":"InvalidMerkleProof: wrong root"}}`, string(raw))
}

func TestVerifyErrorUnwraps(t *testing.T) {
	cause := errors.New("root cause")
	verr := newError(CodeUpstream, errors.Wrap(cause, "context"))
	require.ErrorIs(t, verr, cause)
	require.Contains(t, verr.Error(), "Upstream")
}
