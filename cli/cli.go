// Package cli provides battle setup and the headless simulation runner:
// it wires compiled content into an engine and drives turns until one
// side remains, printing console output as it happens.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nathoo/tacticore/engine"
	"github.com/nathoo/tacticore/loader"
	"github.com/nathoo/tacticore/types"
)

// Build wires compiled content into a ready-to-run engine: parse the
// floor, spawn every unit, bind the scripts to the battle.
func Build(defs *loader.Defs, seed int64) (*engine.Engine, error) {
	floor, err := engine.ParseFloor(defs.FloorRows)
	if err != nil {
		return nil, fmt.Errorf("floor: %w", err)
	}
	eng := engine.New(defs, floor, seed)
	for _, sp := range defs.Spawns {
		p, err := defs.NewPiece(sp.Sheet)
		if err != nil {
			return nil, fmt.Errorf("spawn %s: %w", sp.Sheet, err)
		}
		p.X, p.Y = sp.X, sp.Y
		p.PlayerControlled = sp.Player
		eng.World.Spawn(p)
	}
	defs.Bind(eng.World, eng.Console, eng.RNG)
	return eng, nil
}

// Sim runs a battle headless. Every unit deliberates, player-controlled
// ones included; interactive choices fall back to the synthetic policy.
type Sim struct {
	Engine *engine.Engine
	Defs   *loader.Defs
	Out    io.Writer
	Turns  int // turn cap before the battle is called a draw
	Trace  bool
}

// New creates a simulation over a built engine.
func New(eng *engine.Engine, defs *loader.Defs) *Sim {
	return &Sim{
		Engine: eng,
		Defs:   defs,
		Out:    os.Stdout,
		Turns:  200,
	}
}

// Run drives turns until one side remains or the turn cap hits.
func (s *Sim) Run() error {
	if buf, ok := s.Engine.Console.(*engine.Buffer); ok {
		buf.Notify = s.printMessage
	}
	if s.Trace {
		s.printLayout()
	}

	turn := 0
	for ; turn < s.Turns; turn++ {
		if s.over() {
			break
		}
		report, err := s.Engine.Turn(nil)
		if err != nil {
			return err
		}
		if s.Trace {
			s.printTrace(turn, report)
		}
	}

	s.printOutcome(turn)
	return nil
}

// over reports whether the battle is decided: no two living units are
// still hostile to each other.
func (s *Sim) over() bool {
	alive := s.Engine.World.Alive()
	for i, p := range alive {
		for _, q := range alive[i+1:] {
			if !p.IsAlly(q) {
				return false
			}
		}
	}
	return true
}

func (s *Sim) printOutcome(turns int) {
	if !s.over() {
		s.printSystem(fmt.Sprintf("Turn limit reached after %d turns.", turns))
		return
	}
	s.printSystem(fmt.Sprintf("Battle over after %d turns.", turns))
	for _, p := range s.Engine.World.Alive() {
		s.printSystem(fmt.Sprintf("%s stands (%d HP).", p.Name, p.HP))
	}
}

// printLayout dumps the battlefield and the loaded abilities ahead of a
// traced run.
func (s *Sim) printLayout() {
	fmt.Fprint(s.Out, s.Engine.World.Floor)
	if s.Defs != nil {
		s.printSystem(fmt.Sprintf("[trace] abilities: %s",
			strings.Join(s.Defs.AbilityIDs(), ", ")))
	}
}

func (s *Sim) printTrace(turn int, report *engine.TurnReport) {
	s.printSystem(fmt.Sprintf("[trace] turn %d: %s %s (cost %d, elapsed %d)",
		turn, report.Actor.Name, describeAction(report.Action), report.Cost, report.Elapsed))
	if report.Err != nil {
		s.printSystem(fmt.Sprintf("[trace]   error: %v", report.Err))
	}
}

func describeAction(action types.Action) string {
	switch a := action.(type) {
	case types.Wait:
		return "waits"
	case types.Move:
		return fmt.Sprintf("moves (%+d,%+d)", a.X, a.Y)
	case types.UseAbility:
		return fmt.Sprintf("uses %s", a.ID)
	}
	return fmt.Sprintf("%v", action)
}

func (s *Sim) printMessage(m engine.Message) {
	if m.Kind == engine.MessageSystem {
		s.printSystem(m.Text)
		return
	}
	s.printLine(m.Text)
}

func (s *Sim) printLine(text string) {
	fmt.Fprintln(s.Out, text)
}

func (s *Sim) printSystem(text string) {
	fmt.Fprintf(s.Out, "[%s]\n", text)
}
