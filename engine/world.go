package engine

import (
	"sort"

	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/engine/protocol"
	"github.com/nathoo/tacticore/types"
)

// World holds the floor and every unit on it, ordered by the action
// delay each unit has accumulated. The unit with the least delay acts
// next; acting adds the action's cost to its delay; time only exists as
// the difference between delays.
type World struct {
	Floor  *Floor
	pieces []*piece.Piece
	byID   map[int]*piece.Piece
	nextID int
}

// NewWorld creates an empty world on floor.
func NewWorld(floor *Floor) *World {
	return &World{
		Floor:  floor,
		byID:   make(map[int]*piece.Piece),
		nextID: 1,
	}
}

// Spawn adds a unit to the turn order. A zero ID is assigned; a set ID
// is kept, for restores.
func (w *World) Spawn(p *piece.Piece) {
	if p.ID == 0 {
		p.ID = w.nextID
	}
	if p.ID >= w.nextID {
		w.nextID = p.ID + 1
	}
	w.pieces = append(w.pieces, p)
	w.byID[p.ID] = p
}

// Peek returns the unit that would act next, without advancing time.
func (w *World) Peek() *piece.Piece {
	var next *piece.Piece
	for _, p := range w.pieces {
		if !p.Alive() {
			continue
		}
		if next == nil || p.Delay < next.Delay {
			next = p
		}
	}
	return next
}

// Next returns the living unit with the least accumulated delay,
// keeping spawn order on ties, and the time that elapses before it
// acts. Every unit's delay is reduced by that elapsed time, so the
// returned unit stands at zero. Returns nil when no one is left alive.
func (w *World) Next() (*piece.Piece, types.Aut) {
	next := w.Peek()
	if next == nil {
		return nil, 0
	}
	elapsed := next.Delay
	if elapsed > 0 {
		for _, p := range w.pieces {
			p.Delay -= elapsed
		}
	}
	return next, elapsed
}

// Pieces returns every unit, living and dead, in spawn order.
func (w *World) Pieces() []*piece.Piece {
	return w.pieces
}

// Alive returns the living units in spawn order.
func (w *World) Alive() []*piece.Piece {
	var out []*piece.Piece
	for _, p := range w.pieces {
		if p.Alive() {
			out = append(out, p)
		}
	}
	return out
}

// ByID looks a unit up by ID.
func (w *World) ByID(id int) (*piece.Piece, bool) {
	p, ok := w.byID[id]
	return p, ok
}

// At returns the living unit standing at (x, y), if any.
func (w *World) At(x, y int) (*piece.Piece, bool) {
	for _, p := range w.pieces {
		if p.Alive() && p.X == x && p.Y == y {
			return p, true
		}
	}
	return nil, false
}

// Within returns the living units within a Chebyshev range of (x, y).
func (w *World) Within(x, y, rng int) []*piece.Piece {
	var out []*piece.Piece
	for _, p := range w.pieces {
		if !p.Alive() {
			continue
		}
		dx, dy := p.X-x, p.Y-y
		if dx < 0 {
			dx = -dx
		}
		if dy < 0 {
			dy = -dy
		}
		d := dx
		if dy > d {
			d = dy
		}
		if d <= rng {
			out = append(out, p)
		}
	}
	return out
}

// Tile implements the protocol query surface over the floor.
func (w *World) Tile(x, y int) (protocol.TileResponse, bool) {
	t, ok := w.Floor.Tile(x, y)
	if !ok {
		return protocol.TileResponse{}, false
	}
	return protocol.TileResponse{Tile: t}, true
}

// Open reports whether (x, y) is passable terrain with no living unit
// standing on it.
func (w *World) Open(x, y int) bool {
	if !w.Floor.Passable(x, y) {
		return false
	}
	_, occupied := w.At(x, y)
	return !occupied
}

// Reap removes dead units from the turn order and returns them sorted
// by ID.
func (w *World) Reap() []*piece.Piece {
	var dead []*piece.Piece
	kept := w.pieces[:0]
	for _, p := range w.pieces {
		if p.Alive() {
			kept = append(kept, p)
		} else {
			dead = append(dead, p)
			delete(w.byID, p.ID)
		}
	}
	w.pieces = kept
	sort.Slice(dead, func(i, j int) bool { return dead[i].ID < dead[j].ID })
	return dead
}
