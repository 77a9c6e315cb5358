package engine

import (
	"fmt"
	"strings"

	"github.com/nathoo/tacticore/types"
)

// Floor is the tile grid combat plays out on.
type Floor struct {
	Width  int
	Height int
	tiles  []types.Tile
}

// NewFloor creates a floor of open ground ringed by walls.
func NewFloor(width, height int) *Floor {
	f := &Floor{
		Width:  width,
		Height: height,
		tiles:  make([]types.Tile, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				f.Set(x, y, types.TileWall)
			}
		}
	}
	return f
}

// ParseFloor builds a floor from row strings: '#' wall, '.' floor,
// '>' exit. Rows must be equal length.
func ParseFloor(rows []string) (*Floor, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("floor has no rows")
	}
	width := len(rows[0])
	f := &Floor{Width: width, Height: len(rows), tiles: make([]types.Tile, width*len(rows))}
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("floor row %d is %d wide, want %d", y, len(row), width)
		}
		for x, c := range row {
			switch c {
			case '#':
				f.Set(x, y, types.TileWall)
			case '.':
				f.Set(x, y, types.TileFloor)
			case '>':
				f.Set(x, y, types.TileExit)
			default:
				return nil, fmt.Errorf("floor row %d: unknown tile %q", y, c)
			}
		}
	}
	return f, nil
}

// Tile returns the tile at (x, y). ok is false out of bounds.
func (f *Floor) Tile(x, y int) (types.Tile, bool) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return types.TileWall, false
	}
	return f.tiles[y*f.Width+x], true
}

// Set overwrites the tile at (x, y). Out-of-bounds writes are dropped.
func (f *Floor) Set(x, y int, t types.Tile) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	f.tiles[y*f.Width+x] = t
}

// Passable reports whether terrain permits standing at (x, y).
func (f *Floor) Passable(x, y int) bool {
	t, ok := f.Tile(x, y)
	return ok && t.Passable()
}

// String renders the floor for logs and debugging.
func (f *Floor) String() string {
	var b strings.Builder
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			t, _ := f.Tile(x, y)
			switch t {
			case types.TileWall:
				b.WriteByte('#')
			case types.TileExit:
				b.WriteByte('>')
			default:
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
