package protocol

import "github.com/nathoo/tacticore/engine/piece"

// WorldQuery is the slice of world state the protocol can answer queries
// from directly. EntityQuery and TileQuery never reach a controller.
type WorldQuery interface {
	Pieces() []*piece.Piece
	Within(x, y, rng int) []*piece.Piece
	Tile(x, y int) (TileResponse, bool)
}

// Controller answers the requests that express a choice: cursor, prompt
// and direction. The interactive surface and the synthetic policy both
// implement it, and a computation cannot tell them apart.
type Controller interface {
	Cursor(req CursorRequest) (PositionResponse, error)
	Prompt(req PromptRequest) (BoolResponse, error)
	Direction(req DirectionRequest) (DirectionResponse, error)
}

// Run drives a session to completion, answering queries from world and
// choices from ctrl. Query-only computations complete without ctrl ever
// being consulted.
func Run(s *Session, world WorldQuery, ctrl Controller) error {
	req, done, err := s.Start()
	for {
		if err != nil || done {
			return err
		}
		var resp Response
		switch r := req.(type) {
		case EntityQueryRequest:
			if r.Filter != nil {
				resp = PiecesResponse(world.Within(r.Filter.X, r.Filter.Y, r.Filter.Range))
			} else {
				resp = PiecesResponse(world.Pieces())
			}
		case TileQueryRequest:
			tile, ok := world.Tile(r.X, r.Y)
			tile.Ok = ok
			resp = tile
		case CursorRequest:
			resp, err = ctrl.Cursor(r)
		case PromptRequest:
			resp, err = ctrl.Prompt(r)
		case DirectionRequest:
			resp, err = ctrl.Direction(r)
		}
		if err != nil {
			s.Cancel()
			return err
		}
		req, done, err = s.Resume(resp)
	}
}
