package executor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedFetcher resolves requests from a canned table and records the
// order it was asked in.
type scriptedFetcher struct {
	responses map[string][]byte
	failures  map[string]string
	status    map[string]int
	failTimes map[string]int
	order     []string
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		responses: map[string][]byte{},
		failures:  map[string]string{},
		status:    map[string]int{},
		failTimes: map[string]int{},
	}
}

func (f *scriptedFetcher) Fetch(req *DataRequest) {
	f.order = append(f.order, req.URL)
	if n, ok := f.failTimes[req.URL]; ok && n > 0 {
		f.failTimes[req.URL] = n - 1
		req.Err = f.failures[req.URL]
		req.HTTPStatus = f.status[req.URL]
		return
	}
	if msg, ok := f.failures[req.URL]; ok && f.failTimes[req.URL] == 0 {
		if _, scripted := f.responses[req.URL]; !scripted {
			req.Err = msg
			req.HTTPStatus = f.status[req.URL]
			return
		}
	}
	req.Response = f.responses[req.URL]
}

func TestRequestIdentity(t *testing.T) {
	a := NewRequest(TypeBeaconAPI, "GET", "eth/v1/x", nil, EncodingJSON)
	b := NewRequest(TypeBeaconAPI, "GET", "eth/v1/x", nil, EncodingSSZ)
	require.Equal(t, a.ID, b.ID, "identity derives from URL, not encoding")

	c := NewRequest(TypeRPC, "POST", "rpc", []byte(`{"method":"eth_getProof"}`), EncodingJSON)
	d := NewRequest(TypeRPC, "POST", "rpc", []byte(`{"method":"eth_getLogs"}`), EncodingJSON)
	require.NotEqual(t, c.ID, d.ID, "payload-carrying requests derive identity from payload")
}

func TestStateDeduplicatesByID(t *testing.T) {
	s := NewState()
	first := s.AddRequest(NewRequest(TypeBeaconAPI, "GET", "u", nil, EncodingJSON))
	first.Response = []byte("cached")

	again := s.AddRequest(NewRequest(TypeBeaconAPI, "GET", "u", nil, EncodingJSON))
	require.Same(t, first, again)
	require.Equal(t, []byte("cached"), again.Response)
}

func TestStatePendingIsLIFO(t *testing.T) {
	s := NewState()
	s.AddRequest(NewRequest(TypeBeaconAPI, "GET", "first", nil, EncodingJSON))
	s.AddRequest(NewRequest(TypeBeaconAPI, "GET", "second", nil, EncodingJSON))
	s.AddRequest(NewRequest(TypeBeaconAPI, "GET", "third", nil, EncodingJSON))

	pending := s.Pending()
	require.Len(t, pending, 3)
	require.Equal(t, "third", pending[0].URL)
	require.Equal(t, "second", pending[1].URL)
	require.Equal(t, "first", pending[2].URL)
}

func TestStateErrorAccumulates(t *testing.T) {
	s := NewState()
	s.RecordError("first failure")
	s.RecordError("second failure")
	require.Equal(t, "first failure\nsecond failure", s.Error)
}

func TestRunResumesAfterPending(t *testing.T) {
	f := newScriptedFetcher()
	f.responses["data"] = []byte("payload")
	e := New(f, nil)

	ctx := NewCtx(1, "eth_getBalance", nil)
	var resumed int
	stage := func(c *Ctx) Status {
		req := c.State.AddRequest(NewRequest(TypeRPC, "GET", "data", nil, EncodingJSON))
		if !req.Done() {
			return StatusPending
		}
		resumed++
		require.Equal(t, []byte("payload"), req.Response)
		return StatusSuccess
	}

	require.NoError(t, e.Run(ctx, stage))
	require.Equal(t, 1, resumed)
	require.Equal(t, []string{"data"}, f.order)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	f := newScriptedFetcher()
	f.responses["flaky"] = []byte("ok")
	f.failures["flaky"] = "connection reset by peer"
	f.failTimes["flaky"] = 2
	e := New(f, nil)

	ctx := NewCtx(1, "m", nil)
	stage := func(c *Ctx) Status {
		req := c.State.AddRequest(NewRequest(TypeRPC, "GET", "flaky", nil, EncodingJSON))
		if !req.Done() {
			return StatusPending
		}
		require.Empty(t, req.Err)
		return StatusSuccess
	}

	require.NoError(t, e.Run(ctx, stage))
	require.Len(t, f.order, 3, "two transient failures then success")
}

func TestRunDoesNotRetryClientErrors(t *testing.T) {
	f := newScriptedFetcher()
	f.failures["bad"] = "not found"
	f.status["bad"] = 404
	e := New(f, nil)

	ctx := NewCtx(1, "m", nil)
	stage := func(c *Ctx) Status {
		req := c.State.AddRequest(NewRequest(TypeRPC, "GET", "bad", nil, EncodingJSON))
		if !req.Done() {
			return StatusPending
		}
		c.State.RecordError(req.Err)
		return StatusFailure
	}

	err := e.Run(ctx, stage)
	require.Error(t, err)
	require.Len(t, f.order, 1, "4xx is terminal, no re-issue")
}

func TestRunFailsOnStalledStage(t *testing.T) {
	e := New(newScriptedFetcher(), nil)
	ctx := NewCtx(1, "m", nil)
	stage := func(c *Ctx) Status { return StatusPending }

	err := e.Run(ctx, stage)
	require.Error(t, err)
	require.Contains(t, ctx.State.Error, "no outstanding requests")
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		msg    string
		want   bool
	}{
		{"server error", 502, "", true},
		{"client error", 400, "", false},
		{"timeout", 0, "request timeout", true},
		{"refused", 0, "connection refused", true},
		{"parse error", 0, "unexpected token", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Retryable(tc.status, tc.msg))
		})
	}
}

func TestFinishRunsInlineWithoutWorker(t *testing.T) {
	e := New(newScriptedFetcher(), nil)
	ctx := NewCtx(1, "m", nil)
	ctx.WorkerRequired = true

	var calls []string
	e.Finish(ctx, func() { calls = append(calls, "fn") }, func() { calls = append(calls, "done") })
	require.Equal(t, []string{"fn", "done"}, calls)
}
