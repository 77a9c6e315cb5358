// Package types defines the shared data structures for the TactiCore engine.
// This package contains only type definitions and trivial accessors — no
// game logic.
package types

// Aut is an arbitrary unit of time. A standard turn is TurnTime auts;
// the value is divisible by 2, 3, 4, and 6, which keeps partial-turn
// costs integral.
type Aut int

const (
	// TurnTime is the cost of a standard action.
	TurnTime Aut = 12
	// DiagonalTime is TurnTime scaled by sqrt(2), rounded, for diagonal steps.
	DiagonalTime Aut = 17
)

// Action is one of the closed set of things a unit can do with its turn.
// Actions are immutable once constructed.
type Action interface {
	isAction()
}

// Wait passes time without doing anything.
type Wait struct {
	Duration Aut
}

// Move steps one square in the direction of the (dx, dy) offset.
// Components beyond a single step are clamped at execution.
type Move struct {
	X, Y int
}

// UseAbility invokes a named ability with an argument record, typically
// produced by the ability's on_consider script. An empty record lets
// the ability ask for its arguments through the request protocol.
type UseAbility struct {
	ID   string
	Args Record
}

func (Wait) isAction()       {}
func (Move) isAction()       {}
func (UseAbility) isAction() {}

// CardDir is one of the four cardinal directions.
type CardDir int

const (
	DirUp CardDir = iota
	DirRight
	DirDown
	DirLeft
)

// Offset returns the (dx, dy) step for the direction.
func (d CardDir) Offset() (int, int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirRight:
		return 1, 0
	case DirDown:
		return 0, 1
	default:
		return -1, 0
	}
}

// DirFromOffset maps a unit offset back to a direction.
// Returns false for offsets that are not a single cardinal step.
func DirFromOffset(x, y int) (CardDir, bool) {
	switch {
	case x == 0 && y == -1:
		return DirUp, true
	case x == 1 && y == 0:
		return DirRight, true
	case x == 0 && y == 1:
		return DirDown, true
	case x == -1 && y == 0:
		return DirLeft, true
	}
	return 0, false
}

func (d CardDir) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirRight:
		return "right"
	case DirDown:
		return "down"
	default:
		return "left"
	}
}

// Tile is a floor tile kind.
type Tile int

const (
	TileFloor Tile = iota
	TileWall
	TileExit
)

func (t Tile) String() string {
	switch t {
	case TileFloor:
		return "floor"
	case TileWall:
		return "wall"
	default:
		return "exit"
	}
}

// Passable reports whether a piece may stand on the tile.
func (t Tile) Passable() bool {
	return t == TileFloor || t == TileExit
}

// GameDef holds encounter metadata from Lua.
type GameDef struct {
	Title   string
	Author  string
	Version string
}
