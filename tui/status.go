package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderStatusBar produces a full-width inverted status line showing
// whose turn it is, their vitals and abilities, and the turn count.
func (m Model) renderStatusBar() string {
	left := " " + m.statusLeft()
	right := fmt.Sprintf("T:%d ", m.turn)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}

func (m Model) statusLeft() string {
	switch m.mode {
	case modePlayer:
		return fmt.Sprintf("%s %d/%d HP %d SP | %s | z:wait q:quit",
			m.actor.Name, m.actor.HP, m.actor.Stats.Heart, m.actor.SP, m.abilityHint())
	case modeCursor:
		return "Select a target: arrows move, enter confirms, esc cancels"
	case modePrompt:
		if m.promptMessage != "" {
			return m.promptMessage + " (y/n)"
		}
		return "Confirm? (y/n)"
	case modeDirection:
		if m.promptMessage != "" {
			return m.promptMessage + " (arrow key)"
		}
		return "Which direction? (arrow key)"
	case modeOver:
		return "Battle over. q quits."
	}
	if m.actor != nil {
		return m.actor.Name + " acts..."
	}
	return "..."
}

// abilityHint lists the active unit's abilities with their number keys.
func (m Model) abilityHint() string {
	if len(m.actor.Abilities) == 0 {
		return "no abilities"
	}
	parts := make([]string, len(m.actor.Abilities))
	for i, id := range m.actor.Abilities {
		parts[i] = fmt.Sprintf("%d:%s", i+1, id)
	}
	return strings.Join(parts, " ")
}
