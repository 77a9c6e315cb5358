// Package piece owns per-unit mutable state: position, vitals, the stat
// block, and the named component map that status effects attach to.
package piece

import (
	"github.com/nathoo/tacticore/engine/combat"
	"github.com/nathoo/tacticore/types"
)

// TeamsComponent is the component key holding a unit's team tags.
// Units sharing any team tag consider each other allies.
const TeamsComponent = "std:teams"

// Stats is the fixed six-attribute block used by damage and resistance
// formulas.
type Stats struct {
	// Heart caps hit points.
	Heart int
	// Soul caps resource points.
	Soul int
	// Power adds to physical damage.
	Power int
	// Defense reduces incoming physical damage.
	Defense int
	// Magic adds to magical damage.
	Magic int
	// Resistance reduces incoming magical damage.
	Resistance int
}

// Sub subtracts o from s, clamping every attribute at zero.
func (s Stats) Sub(o Stats) Stats {
	return Stats{
		Heart:      clampZero(s.Heart - o.Heart),
		Soul:       clampZero(s.Soul - o.Soul),
		Power:      clampZero(s.Power - o.Power),
		Defense:    clampZero(s.Defense - o.Defense),
		Magic:      clampZero(s.Magic - o.Magic),
		Resistance: clampZero(s.Resistance - o.Resistance),
	}
}

// Add sums two stat blocks.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Heart:      s.Heart + o.Heart,
		Soul:       s.Soul + o.Soul,
		Power:      s.Power + o.Power,
		Defense:    s.Defense + o.Defense,
		Magic:      s.Magic + o.Magic,
		Resistance: s.Resistance + o.Resistance,
	}
}

func clampZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// Piece is a positioned combat participant. Identity (ID) is stable for
// the piece's lifetime; the component map is the only open-ended mutable
// extension point.
type Piece struct {
	ID   int
	Name string

	X, Y int

	HP    int
	SP    int
	Level int

	Stats    Stats
	Skillset combat.Skillset

	// Abilities the piece may use on its turn, in sheet order.
	Abilities []string

	// Speed is the piece's default action cost in auts.
	Speed types.Aut
	// Delay is the time remaining until the piece's next action.
	Delay types.Aut

	// PlayerControlled pieces skip deliberation; their actions arrive
	// from the interactive protocol.
	PlayerControlled bool

	components map[string]types.Value
}

// New creates a piece with an empty component map.
func New(id int, name string) *Piece {
	return &Piece{
		ID:         id,
		Name:       name,
		Speed:      types.TurnTime,
		components: map[string]types.Value{},
	}
}

// Alive reports whether the piece is still in play.
func (p *Piece) Alive() bool {
	return p.HP > 0
}

// Hurt reduces HP. HP may go negative; the world removes dead pieces
// after each action.
func (p *Piece) Hurt(amount int) {
	if amount < 0 {
		return
	}
	p.HP -= amount
}

// Heal restores HP up to the Heart cap.
func (p *Piece) Heal(amount int) {
	if amount < 0 {
		return
	}
	p.HP += amount
	if p.HP > p.Stats.Heart {
		p.HP = p.Stats.Heart
	}
}

// Spend deducts resource points, reporting false without change when the
// piece cannot afford the cost.
func (p *Piece) Spend(amount int) bool {
	if amount > p.SP {
		return false
	}
	p.SP -= amount
	return true
}

// Restore refills resource points up to the Soul cap.
func (p *Piece) Restore(amount int) {
	if amount < 0 {
		return
	}
	p.SP += amount
	if p.SP > p.Stats.Soul {
		p.SP = p.Stats.Soul
	}
}

// Teams returns the piece's team tags, empty if the teams component is
// absent or malformed.
func (p *Piece) Teams() []string {
	v, ok := p.components[TeamsComponent]
	if !ok {
		return nil
	}
	list, ok := v.(types.List)
	if !ok {
		return nil
	}
	teams := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(types.String); ok {
			teams = append(teams, string(s))
		}
	}
	return teams
}

// IsAlly reports whether the two pieces share a team tag. A piece is
// always its own ally. Pieces with no teams are allied with nobody.
func (p *Piece) IsAlly(other *Piece) bool {
	if p == other {
		return true
	}
	mine := p.Teams()
	theirs := other.Teams()
	for _, a := range mine {
		for _, b := range theirs {
			if a == b {
				return true
			}
		}
	}
	return false
}

// DistanceTo returns the Chebyshev distance to a position, the natural
// metric on a grid with diagonal movement.
func (p *Piece) DistanceTo(x, y int) int {
	dx := p.X - x
	if dx < 0 {
		dx = -dx
	}
	dy := p.Y - y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}
