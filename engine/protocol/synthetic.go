package protocol

import (
	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/types"
)

// Synthetic answers choice requests for scripted units with a fixed,
// deterministic policy: aim at the nearest non-ally, decline every
// prompt. It lets the same ability script serve players and scripted
// units alike.
type Synthetic struct {
	World WorldQuery
	Actor *piece.Piece
}

// Cursor picks the position of the nearest living non-ally within the
// request's range of its origin, falling back to the origin itself.
func (s Synthetic) Cursor(req CursorRequest) (PositionResponse, error) {
	if t := s.nearestHostile(); t != nil &&
		chebyshev(t.X-req.X, t.Y-req.Y) <= req.Range {
		return PositionResponse{X: t.X, Y: t.Y}, nil
	}
	return PositionResponse{X: req.X, Y: req.Y}, nil
}

// Prompt declines. Prompts gate optional extra effects (overcharges,
// sacrifices) and the cautious answer is always valid.
func (s Synthetic) Prompt(PromptRequest) (BoolResponse, error) {
	return BoolResponse(false), nil
}

// Direction points toward the nearest living non-ally, preferring the
// axis with the larger displacement. Falls back to up.
func (s Synthetic) Direction(DirectionRequest) (DirectionResponse, error) {
	t := s.nearestHostile()
	if t == nil {
		return DirectionResponse(types.DirUp), nil
	}
	dx, dy := t.X-s.Actor.X, t.Y-s.Actor.Y
	if abs(dx) >= abs(dy) {
		if dx >= 0 {
			return DirectionResponse(types.DirRight), nil
		}
		return DirectionResponse(types.DirLeft), nil
	}
	if dy >= 0 {
		return DirectionResponse(types.DirDown), nil
	}
	return DirectionResponse(types.DirUp), nil
}

func (s Synthetic) nearestHostile() *piece.Piece {
	var best *piece.Piece
	bestDist := 0
	for _, p := range s.World.Pieces() {
		if p == s.Actor || !p.Alive() || s.Actor.IsAlly(p) {
			continue
		}
		d := s.Actor.DistanceTo(p.X, p.Y)
		if best == nil || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

func chebyshev(dx, dy int) int {
	if abs(dx) > abs(dy) {
		return abs(dx)
	}
	return abs(dy)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
