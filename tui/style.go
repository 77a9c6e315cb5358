package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/tacticore/engine"
	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/types"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	stylePlayerUnit = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true)

	styleHostileUnit = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	styleActiveUnit = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true)

	styleWall = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleFloorTile = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	styleExitTile = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))

	styleCursor = lipgloss.NewStyle().
			Reverse(true)

	stylePrintMsg = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleSystemMsg = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleCombatMsg = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// tileGlyph maps a floor tile to its map character.
func tileGlyph(t types.Tile) string {
	switch t {
	case types.TileWall:
		return "#"
	case types.TileExit:
		return ">"
	default:
		return "."
	}
}

// styledTile renders a tile glyph with its style.
func styledTile(t types.Tile) string {
	switch t {
	case types.TileWall:
		return styleWall.Render("#")
	case types.TileExit:
		return styleExitTile.Render(">")
	default:
		return styleFloorTile.Render(".")
	}
}

// unitGlyph is the first letter of the unit's name: uppercase for
// player-controlled units, lowercase for everyone else.
func unitGlyph(p *piece.Piece) string {
	if p.Name == "" {
		return "?"
	}
	c := p.Name[0]
	if p.PlayerControlled {
		return string(c &^ 0x20)
	}
	return string(c | 0x20)
}

// styledUnit renders a unit glyph, highlighting whoever acts now.
func styledUnit(p *piece.Piece, active bool) string {
	switch {
	case active:
		return styleActiveUnit.Render(unitGlyph(p))
	case p.PlayerControlled:
		return stylePlayerUnit.Render(unitGlyph(p))
	default:
		return styleHostileUnit.Render(unitGlyph(p))
	}
}

// styledMessage renders one console line with the style for its kind.
func styledMessage(m engine.Message) string {
	switch m.Kind {
	case engine.MessageSystem:
		return styleSystemMsg.Render("[" + m.Text + "]")
	case engine.MessageCombat:
		return styleCombatMsg.Render(m.Text)
	default:
		return stylePrintMsg.Render(m.Text)
	}
}
