package executor

import (
	"strings"

	"github.com/pkg/errors"
)

// Status is a stage's outcome. StatusPending is not a failure: it means the
// stage registered fetches it cannot proceed without.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusPending
)

// Ctx is the verification context one request carries through its stages:
// the request's identity and arguments, the expected data slot, the request
// state, and the flags the scheduling model needs.
type Ctx struct {
	ChainID  uint64
	Method   string
	Args     []byte
	DataSlot uint64

	State *State

	// WorkerRequired marks the context for hand-off to the worker after its
	// stages complete; the main loop owns the context until queueing and
	// again after the completion callback.
	WorkerRequired bool

	// BeingClosed is set by the transport when the client connection is
	// gone; the executor still finalizes cleanup but skips the response
	// write.
	BeingClosed bool
}

// NewCtx builds a context with an empty request state.
func NewCtx(chainID uint64, method string, args []byte) *Ctx {
	return &Ctx{ChainID: chainID, Method: method, Args: args, State: NewState()}
}

// Stage is one re-entrant step of a verification pipeline. A stage that
// returns StatusPending must have registered at least one unresolved
// request; it will be re-invoked once the fetches resolve and must make
// progress from its own recorded state, not from call position.
type Stage func(*Ctx) Status

// Fetcher is the I/O boundary (out of scope of the core): it resolves one
// data request, filling Response or Err and HTTPStatus. The executor calls
// it only between stage invocations, never mid-stage.
type Fetcher interface {
	Fetch(req *DataRequest)
}

// Worker accepts completed proof-assembly work for off-thread packaging.
// Ownership of the context transfers with the closure and returns to the
// main loop through the completion callback.
type Worker interface {
	Submit(fn func())
}

// MaxRetries bounds transient-error re-issues per data request.
const MaxRetries = 5

var (
	// ErrStalled means a stage reported pending but no unresolved request
	// exists, which would otherwise spin forever.
	ErrStalled = errors.New("executor: stage pending with no outstanding requests")
	// ErrUpstream wraps a data request whose fetch failed terminally.
	ErrUpstream = errors.New("executor: upstream fetch failed")
)

// Executor drives a context through its stages, single-threaded and
// cooperative: it runs one stage until it completes, fails, or suspends,
// drains the fetch boundary, and re-invokes.
type Executor struct {
	fetcher    Fetcher
	worker     Worker
	maxRetries int
}

// New builds an executor over a fetch boundary. worker may be nil, in which
// case worker-required contexts run their packaging inline.
func New(fetcher Fetcher, worker Worker) *Executor {
	return &Executor{fetcher: fetcher, worker: worker, maxRetries: MaxRetries}
}

// Run executes stages in order against ctx. It returns nil on success and
// the accumulated stage error otherwise; remaining stages are skipped after
// the first failure. Transient upstream failures are re-issued up to the
// retry bound before surfacing to the suspended stage.
func (e *Executor) Run(ctx *Ctx, stages ...Stage) error {
	for _, stage := range stages {
		for {
			status := stage(ctx)
			if status == StatusSuccess {
				break
			}
			if status == StatusFailure {
				if ctx.State.Error == "" {
					ctx.State.RecordError("stage failed without recording an error")
				}
				return errors.New(ctx.State.Error)
			}
			if err := e.drain(ctx); err != nil {
				ctx.State.RecordError(err.Error())
				return errors.New(ctx.State.Error)
			}
		}
	}
	return nil
}

// drain resolves every pending request, retrying transient failures. A
// terminal failure is left on the request for the stage to observe and
// classify; drain itself only errors when nothing was pending at all.
func (e *Executor) drain(ctx *Ctx) error {
	pending := ctx.State.Pending()
	if len(pending) == 0 {
		return ErrStalled
	}
	for _, req := range pending {
		e.fetch(req)
	}
	return nil
}

func (e *Executor) fetch(req *DataRequest) {
	for {
		req.Attempts++
		e.fetcher.Fetch(req)
		if req.Err == "" {
			return
		}
		if req.Attempts >= e.maxRetries || !Retryable(req.HTTPStatus, req.Err) {
			log.WithField("url", req.URL).WithField("attempts", req.Attempts).
				Warn("upstream fetch failed terminally")
			return
		}
		req.MarkRetry()
	}
}

// Finish runs fn as the context's final packaging step, on the worker when
// the context asked for one, inline otherwise. done is invoked on the main
// loop's behalf after fn returns; the caller must not touch ctx between
// Finish and done.
func (e *Executor) Finish(ctx *Ctx, fn func(), done func()) {
	if ctx.WorkerRequired && e.worker != nil {
		e.worker.Submit(func() {
			fn()
			done()
		})
		return
	}
	fn()
	done()
}

// Retryable classifies an upstream failure: 5xx statuses and transport
// timeouts are transient and worth a different upstream; 4xx statuses are
// terminal because the request itself is at fault.
func Retryable(httpStatus int, errMsg string) bool {
	if httpStatus >= 500 {
		return true
	}
	if httpStatus >= 400 {
		return false
	}
	msg := strings.ToLower(errMsg)
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "eof")
}
