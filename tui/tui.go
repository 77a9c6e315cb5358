// Package tui is the interactive battle surface: a Bubble Tea program
// that renders the floor, runs the engine turn loop, and answers the
// ability scripts' choice requests with the player's input.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/tacticore/engine"
	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/engine/protocol"
	"github.com/nathoo/tacticore/loader"
	"github.com/nathoo/tacticore/types"
)

// mode is what the TUI is waiting for.
type mode int

const (
	// modeRunning: a turn is in flight on the engine goroutine.
	modeRunning mode = iota
	// modePlayer: a player unit acts; awaiting an action key.
	modePlayer
	// modeCursor, modePrompt, modeDirection: an ability script suspended
	// on a choice request.
	modeCursor
	modePrompt
	modeDirection
	// modeOver: the battle is decided.
	modeOver
)

// advanceMsg asks the Update loop to start the next turn.
type advanceMsg struct{}

// requestMsg surfaces a choice request from a suspended ability script.
type requestMsg struct {
	req protocol.Request
}

// turnDoneMsg carries a finished turn back from the engine goroutine.
type turnDoneMsg struct {
	report *engine.TurnReport
	err    error
}

// Model is the Bubble Tea model for a TactiCore battle.
type Model struct {
	engine *engine.Engine
	defs   *loader.Defs

	viewport viewport.Model
	console  *engine.Buffer
	seen     int // console lines already styled into the log
	logLines []string
	board    string // rendered board snapshot; View never reads live World

	ctrl     *uiController
	turnDone chan turnDoneMsg

	mode  mode
	actor *piece.Piece // unit whose turn is up

	cursorReq        protocol.CursorRequest
	cursorX, cursorY int
	promptMessage    string

	turn     int
	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates a TUI model over a built engine and routes player units'
// choice requests to the screen.
func New(eng *engine.Engine, defs *loader.Defs) Model {
	m := Model{
		engine:   eng,
		defs:     defs,
		ctrl:     newUIController(),
		turnDone: make(chan turnDoneMsg, 1),
	}
	if buf, ok := eng.Console.(*engine.Buffer); ok {
		m.console = buf
	} else {
		m.console = &engine.Buffer{}
		eng.Console = m.console
	}
	eng.Controller = func(actor *piece.Piece) protocol.Controller {
		if actor.PlayerControlled {
			return m.ctrl
		}
		return protocol.Synthetic{World: eng.World, Actor: actor}
	}
	return m
}

// Run starts the Bubble Tea program.
func Run(eng *engine.Engine, defs *loader.Defs) error {
	m := New(eng, defs)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init kicks the turn loop off.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return advanceMsg{} }
}

// Update handles key presses, window resizes, and engine traffic.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - m.engine.World.Floor.Height - 2
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refreshViewport()
		if m.mode != modeRunning {
			m.refreshBoard()
		}

	case tea.KeyMsg:
		return m.handleKey(msg)

	case advanceMsg:
		return m.advance()

	case requestMsg:
		return m.handleRequest(msg.req), nil

	case turnDoneMsg:
		m.turn++
		m.syncConsole()
		if msg.err != nil {
			m.logLines = append(m.logLines, styleSystemMsg.Render("["+msg.err.Error()+"]"))
			m.refreshViewport()
			m.mode = modeOver
			m.refreshBoard()
			return m, nil
		}
		return m.advance()
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, vpCmd
}

// advance inspects the queue and either starts the next scripted turn
// or hands control to the player.
func (m Model) advance() (tea.Model, tea.Cmd) {
	if m.resolved() {
		m.mode = modeOver
		m.actor = nil
		m.refreshBoard()
		return m, nil
	}
	m.actor = m.engine.Peek()
	if m.actor.PlayerControlled {
		m.mode = modePlayer
		m.refreshBoard()
		return m, nil
	}
	m.mode = modeRunning
	m.refreshBoard()
	return m, m.startTurn(nil)
}

// resolved reports whether no two living units are still hostile.
func (m Model) resolved() bool {
	alive := m.engine.World.Alive()
	for i, p := range alive {
		for _, q := range alive[i+1:] {
			if !p.IsAlly(q) {
				return false
			}
		}
	}
	return true
}

// startTurn runs one engine turn on its own goroutine and waits for
// either its completion or a choice request out of it.
func (m Model) startTurn(action types.Action) tea.Cmd {
	eng, done := m.engine, m.turnDone
	return func() tea.Msg {
		go func() {
			report, err := eng.Turn(action)
			done <- turnDoneMsg{report: report, err: err}
		}()
		return awaitEngine(m.ctrl, done)()
	}
}

// awaitEngine blocks until the running turn finishes or suspends on a
// choice.
func awaitEngine(ctrl *uiController, done chan turnDoneMsg) tea.Cmd {
	return func() tea.Msg {
		select {
		case req := <-ctrl.requests:
			return requestMsg{req: req}
		case res := <-done:
			return res
		}
	}
}

// handleRequest switches the screen into the input mode the request
// calls for.
func (m Model) handleRequest(req protocol.Request) Model {
	switch r := req.(type) {
	case protocol.CursorRequest:
		m.mode = modeCursor
		m.cursorReq = r
		m.cursorX, m.cursorY = r.X, r.Y
	case protocol.PromptRequest:
		m.mode = modePrompt
		m.promptMessage = r.Message
	case protocol.DirectionRequest:
		m.mode = modeDirection
		m.promptMessage = r.Message
	}
	// The turn goroutine is parked on the response channel; the world
	// cannot change under this render.
	m.refreshBoard()
	return m
}

// respond sends the player's answer back to the suspended turn and
// resumes waiting on the engine.
func (m Model) respond(resp protocol.Response) (tea.Model, tea.Cmd) {
	m.mode = modeRunning
	m.promptMessage = ""
	// Last safe render before the turn goroutine wakes back up.
	m.refreshBoard()
	m.ctrl.responses <- resp
	return m, awaitEngine(m.ctrl, m.turnDone)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.mode {
	case modePlayer:
		return m.handlePlayerKey(msg)
	case modeCursor:
		return m.handleCursorKey(msg)
	case modePrompt:
		switch msg.String() {
		case "y", "enter":
			return m.respond(protocol.BoolResponse(true))
		case "n", "esc":
			return m.respond(protocol.BoolResponse(false))
		}
		return m, nil
	case modeDirection:
		if dir, ok := dirForKey(msg.String()); ok {
			return m.respond(protocol.DirectionResponse(dir))
		}
		if msg.String() == "esc" {
			return m.respond(nil) // cancels the request
		}
		return m, nil
	case modeOver:
		if msg.String() == "q" || msg.String() == "esc" {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, vpCmd
}

func (m Model) handlePlayerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := msg.String()
	if dx, dy, ok := stepForKey(s); ok {
		m.mode = modeRunning
		return m, m.startTurn(types.Move{X: dx, Y: dy})
	}
	switch s {
	case "z", ".":
		m.mode = modeRunning
		return m, m.startTurn(types.Wait{})
	case "q":
		m.quitting = true
		return m, tea.Quit
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		i := int(s[0] - '1')
		if i < len(m.actor.Abilities) {
			m.mode = modeRunning
			// No arguments: the script asks for its targets.
			return m, m.startTurn(types.UseAbility{ID: m.actor.Abilities[i]})
		}
	}
	return m, nil
}

func (m Model) handleCursorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := msg.String()
	if dx, dy, ok := stepForKey(s); ok {
		m.moveCursor(dx, dy)
		return m, nil
	}
	switch s {
	case "enter":
		return m.respond(protocol.PositionResponse{X: m.cursorX, Y: m.cursorY})
	case "esc":
		return m.respond(nil) // cancels the request
	}
	return m, nil
}

// moveCursor steps the cursor, clamped to the floor and to the
// request's range around its origin.
func (m *Model) moveCursor(dx, dy int) {
	x, y := m.cursorX+dx, m.cursorY+dy
	f := m.engine.World.Floor
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	if m.cursorReq.Range > 0 {
		if abs(x-m.cursorReq.X) > m.cursorReq.Range || abs(y-m.cursorReq.Y) > m.cursorReq.Range {
			return
		}
	}
	m.cursorX, m.cursorY = x, y
	m.refreshBoard()
}

// stepForKey maps movement keys to a step: arrows and hjkl for the
// cardinals, yubn for the diagonals.
func stepForKey(s string) (int, int, bool) {
	switch s {
	case "up", "k":
		return 0, -1, true
	case "down", "j":
		return 0, 1, true
	case "left", "h":
		return -1, 0, true
	case "right", "l":
		return 1, 0, true
	case "y":
		return -1, -1, true
	case "u":
		return 1, -1, true
	case "b":
		return -1, 1, true
	case "n":
		return 1, 1, true
	}
	return 0, 0, false
}

// dirForKey maps a movement key to a cardinal direction. Diagonal keys
// are not an answer to a direction request.
func dirForKey(s string) (types.CardDir, bool) {
	dx, dy, ok := stepForKey(s)
	if !ok {
		return 0, false
	}
	return types.DirFromOffset(dx, dy)
}

// syncConsole styles the console lines produced since the last turn
// into the log.
func (m *Model) syncConsole() {
	msgs := m.console.Messages()
	for _, msg := range msgs[m.seen:] {
		m.logLines = append(m.logLines, styledMessage(msg))
	}
	m.seen = len(msgs)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.logLines, "\n"))
	m.viewport.GotoBottom()
}

// refreshBoard re-renders the board snapshot. Callers must hold the
// engine quiescent: between turns, or while a script is parked on a
// choice request. View only ever reads the snapshot, so a turn running
// on its goroutine never races the render loop.
func (m *Model) refreshBoard() {
	m.board = m.renderBoard()
}

// renderBoard draws the floor with every living unit on it, plus the
// cursor when a script is asking for a position.
func (m Model) renderBoard() string {
	f := m.engine.World.Floor
	var b strings.Builder
	for y := 0; y < f.Height; y++ {
		if y > 0 {
			b.WriteString("\n")
		}
		for x := 0; x < f.Width; x++ {
			b.WriteString(m.renderCell(x, y))
		}
	}
	return b.String()
}

func (m Model) renderCell(x, y int) string {
	if m.mode == modeCursor && x == m.cursorX && y == m.cursorY {
		if p, ok := m.engine.World.At(x, y); ok {
			return styleCursor.Render(unitGlyph(p))
		}
		t, _ := m.engine.World.Floor.Tile(x, y)
		return styleCursor.Render(tileGlyph(t))
	}
	if p, ok := m.engine.World.At(x, y); ok {
		return styledUnit(p, p == m.actor)
	}
	t, _ := m.engine.World.Floor.Tile(x, y)
	return styledTile(t)
}

// View renders the full layout: board, status bar, message log.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return m.board + "\n" + m.renderStatusBar() + "\n" + m.viewport.View()
}

// viewportKeyMap scrolls with PgUp/PgDn only; everything else belongs
// to the battle.
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
