// Package protocol implements the interactive request protocol: a
// suspension mechanism that lets an ability or consider script issue a
// strongly-typed request and be resumed with either a player-supplied or
// a synthesized answer, without the script knowing which.
//
// Suspension is modelled as an explicit state machine rather than a
// blocked goroutine: a Session holds the request it is waiting for, and
// Resume is the single entry point for answers. This makes cancellation
// and the no-cross-turn-suspension rule structural: a cancelled session
// simply has no live waiting state to resume.
package protocol

import (
	"errors"
	"fmt"

	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/types"
)

// Request is one of the closed set of questions a script may ask.
// The set is a boundary contract: scripts are data external to the
// engine binary, so it must stay closed and versionable.
type Request interface {
	isRequest()
}

// CursorRequest asks for a position, picked with a targeting cursor.
type CursorRequest struct {
	// Origin is the point the cursor starts on and ranges around.
	X, Y int
	// Range limits the cursor to a square of this radius around the origin.
	Range int
	// Radius, when positive, asks the surface to preview an area of
	// effect around the cursor.
	Radius int
}

// PromptRequest asks a yes/no question.
type PromptRequest struct {
	Message string
}

// DirectionRequest asks for one of the four cardinal directions.
type DirectionRequest struct {
	Message string
}

// EntityQueryRequest asks for units, optionally restricted to a square
// range around a point. Answered by the world query surface, never by a
// controller.
type EntityQueryRequest struct {
	Filter *WithinFilter
}

// WithinFilter restricts an entity query to a Chebyshev range.
type WithinFilter struct {
	X, Y  int
	Range int
}

// TileQueryRequest asks for the tile at a position. Answered by the
// world query surface.
type TileQueryRequest struct {
	X, Y int
}

func (CursorRequest) isRequest()      {}
func (PromptRequest) isRequest()      {}
func (DirectionRequest) isRequest()   {}
func (EntityQueryRequest) isRequest() {}
func (TileQueryRequest) isRequest()   {}

// Response is the closed set of answers. Each request shape has exactly
// one matching response shape.
type Response interface {
	isResponse()
}

// PositionResponse answers a CursorRequest.
type PositionResponse struct {
	X, Y int
}

// BoolResponse answers a PromptRequest.
type BoolResponse bool

// DirectionResponse answers a DirectionRequest.
type DirectionResponse types.CardDir

// PiecesResponse answers an EntityQueryRequest.
type PiecesResponse []*piece.Piece

// TileResponse answers a TileQueryRequest. Ok is false for positions
// outside the floor.
type TileResponse struct {
	Tile types.Tile
	Ok   bool
}

func (PositionResponse) isResponse()  {}
func (BoolResponse) isResponse()      {}
func (DirectionResponse) isResponse() {}
func (PiecesResponse) isResponse()    {}
func (TileResponse) isResponse()      {}

// Matches reports whether resp is the right shape for req.
func Matches(req Request, resp Response) bool {
	switch req.(type) {
	case CursorRequest:
		_, ok := resp.(PositionResponse)
		return ok
	case PromptRequest:
		_, ok := resp.(BoolResponse)
		return ok
	case DirectionRequest:
		_, ok := resp.(DirectionResponse)
		return ok
	case EntityQueryRequest:
		_, ok := resp.(PiecesResponse)
		return ok
	case TileQueryRequest:
		_, ok := resp.(TileResponse)
		return ok
	}
	return false
}

// RequestName names a request shape for error messages.
func RequestName(req Request) string {
	switch req.(type) {
	case CursorRequest:
		return "cursor"
	case PromptRequest:
		return "prompt"
	case DirectionRequest:
		return "direction"
	case EntityQueryRequest:
		return "entity query"
	case TileQueryRequest:
		return "tile query"
	}
	return "unknown"
}

var (
	// ErrMismatch is returned when a resumed response does not match
	// the pending request's declared response type. Fatal to the
	// owning turn, contained to it.
	ErrMismatch = errors.New("response does not match pending request")
	// ErrCancelled is returned when a session is resumed after Cancel.
	ErrCancelled = errors.New("session cancelled")
	// ErrNotWaiting is returned when Resume is called on a session
	// with no pending request.
	ErrNotWaiting = errors.New("session is not waiting for a response")
)

// Computation is a resumable script. The first call is Start; every
// subsequent resumption passes the answer to the previously yielded
// request. A computation yields at most one request at a time.
type Computation interface {
	// Start begins the computation, returning the first request or
	// done=true if it ran to completion.
	Start() (req Request, done bool, err error)
	// Resume continues after a yield with the answer to the pending
	// request.
	Resume(resp Response) (req Request, done bool, err error)
}

// State is a session's lifecycle phase.
type State int

const (
	// StateIdle: created, not yet started.
	StateIdle State = iota
	// StateWaiting: suspended on a pending request.
	StateWaiting
	// StateDone: ran to completion.
	StateDone
	// StateCancelled: discarded without resuming.
	StateCancelled
)

// Session drives one computation through its request/response cycle.
// Requests within a session are strictly sequential.
type Session struct {
	comp    Computation
	state   State
	pending Request
}

// NewSession wraps a computation.
func NewSession(comp Computation) *Session {
	return &Session{comp: comp}
}

// State returns the session's lifecycle phase.
func (s *Session) State() State { return s.state }

// Pending returns the request the session is waiting on, or nil.
func (s *Session) Pending() Request {
	if s.state != StateWaiting {
		return nil
	}
	return s.pending
}

// Start begins the computation. Returns done=true if it completed
// without suspending; otherwise the session waits on the returned
// request.
func (s *Session) Start() (Request, bool, error) {
	if s.state != StateIdle {
		return nil, false, fmt.Errorf("start called in state %d", s.state)
	}
	req, done, err := s.comp.Start()
	return s.settle(req, done, err)
}

// Resume answers the pending request. The response shape must match the
// request shape; a mismatch fails the session.
func (s *Session) Resume(resp Response) (Request, bool, error) {
	switch s.state {
	case StateCancelled:
		return nil, false, ErrCancelled
	case StateWaiting:
	default:
		return nil, false, ErrNotWaiting
	}
	if !Matches(s.pending, resp) {
		name := RequestName(s.pending)
		s.state = StateDone
		s.pending = nil
		return nil, false, fmt.Errorf("%w: %s request answered with %T",
			ErrMismatch, name, resp)
	}
	req, done, err := s.comp.Resume(resp)
	return s.settle(req, done, err)
}

// Cancel discards the session without resuming it. Any later Resume
// fails with ErrCancelled.
func (s *Session) Cancel() {
	s.state = StateCancelled
	s.pending = nil
}

func (s *Session) settle(req Request, done bool, err error) (Request, bool, error) {
	if err != nil {
		s.state = StateDone
		s.pending = nil
		return nil, false, err
	}
	if done {
		s.state = StateDone
		s.pending = nil
		return nil, true, nil
	}
	s.state = StateWaiting
	s.pending = req
	return req, false, nil
}
