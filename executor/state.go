package executor

// State owns every data request a verification context has registered,
// along with the accumulated error string. Requests live exactly as long as
// the state; stages must not retain pointers into a response past Free.
type State struct {
	requests map[[32]byte]*DataRequest
	order    [][32]byte

	// Error accumulates the first failure of each stage, newline-separated.
	Error string
}

// NewState builds an empty request state.
func NewState() *State {
	return &State{requests: make(map[[32]byte]*DataRequest)}
}

// AddRequest registers req, deduplicating by identity: if a request with
// the same ID is already present, the existing record (and any response it
// carries) is returned instead and req is discarded.
func (s *State) AddRequest(req *DataRequest) *DataRequest {
	if existing, ok := s.requests[req.ID]; ok {
		return existing
	}
	s.requests[req.ID] = req
	s.order = append(s.order, req.ID)
	return req
}

// ByID returns the request with the given identity, or nil.
func (s *State) ByID(id [32]byte) *DataRequest {
	return s.requests[id]
}

// ByURL returns the request registered under url (with an empty payload),
// or nil. Payload-carrying requests are addressed by ID only.
func (s *State) ByURL(url string) *DataRequest {
	return s.requests[RequestID(url, nil)]
}

// Pending returns the unresolved requests in LIFO order: the most recently
// registered first, matching the resumption ordering contract. External
// arrival order is not observable to stages because every lookup goes
// through the identity, never through position.
func (s *State) Pending() []*DataRequest {
	var out []*DataRequest
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.requests[s.order[i]]
		if !r.Done() {
			out = append(out, r)
		}
	}
	return out
}

// RecordError appends msg to the accumulated error string.
func (s *State) RecordError(msg string) {
	if s.Error == "" {
		s.Error = msg
		return
	}
	s.Error += "\n" + msg
}

// Free releases every request and response the state owns. The state is
// unusable afterwards.
func (s *State) Free() {
	s.requests = nil
	s.order = nil
}
