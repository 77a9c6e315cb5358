// Package consider implements turn deliberation for scripted units:
// abilities propose candidate actions annotated with heuristics, the
// deliberator scores them, and the best one becomes the unit's turn.
package consider

import (
	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/types"
)

// Heuristic is one annotation on a candidate action: a claim about what
// the action would accomplish, in terms the scorer understands. The set
// is closed; scripts pick from it rather than scoring themselves.
type Heuristic interface {
	isHeuristic()
}

// Damage claims the action would deal Amount damage to Target.
type Damage struct {
	Target *piece.Piece
	Amount int
}

// Debuff claims the action would impose Amount magnitude of debuff on
// Target.
type Debuff struct {
	Target *piece.Piece
	Amount int
}

// Move claims the action would reposition the unit toward (X, Y).
type Move struct {
	X, Y int
}

func (Damage) isHeuristic() {}
func (Debuff) isHeuristic() {}
func (Move) isHeuristic()   {}

// Consideration is one candidate action with the heuristics that argue
// for it.
type Consideration struct {
	Action     types.Action
	Heuristics []Heuristic
}

// CoinSource supplies the single disposition draw a deliberation makes.
type CoinSource interface {
	CoinFlip() bool
}

// Phase tracks where a deliberation stands. Transitions only move
// forward; a new turn starts a fresh deliberation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseScoring
	PhaseSelected
)

// Deliberator scores and selects among considerations for one unit's
// turn. Create one per deliberation with Begin.
type Deliberator struct {
	coins CoinSource

	phase Phase
	actor *piece.Piece
	// riskAverse is drawn once at Begin and held for the whole
	// deliberation, so every consideration is judged by the same
	// disposition.
	riskAverse bool

	considerations []Consideration
	scores         []int
}

// NewDeliberator returns a deliberator drawing disposition from coins.
func NewDeliberator(coins CoinSource) *Deliberator {
	return &Deliberator{coins: coins}
}

// Begin starts a deliberation for actor, drawing its disposition for
// this turn.
func (d *Deliberator) Begin(actor *piece.Piece) {
	d.phase = PhaseCollecting
	d.actor = actor
	d.riskAverse = d.coins.CoinFlip()
	d.considerations = d.considerations[:0]
	d.scores = d.scores[:0]
}

// RiskAverse reports the disposition drawn at Begin.
func (d *Deliberator) RiskAverse() bool { return d.riskAverse }

// Phase returns the deliberation's current phase.
func (d *Deliberator) Phase() Phase { return d.phase }

// Add records a candidate during the collecting phase. Considerations
// added out of phase are dropped.
func (d *Deliberator) Add(c Consideration) {
	if d.phase != PhaseCollecting {
		return
	}
	d.considerations = append(d.considerations, c)
}

// AddApproaches proposes a single step toward each living unit the
// actor is not allied with. A scripted unit with nothing better to do
// closes distance.
func (d *Deliberator) AddApproaches(others []*piece.Piece) {
	for _, p := range others {
		if p == d.actor || !p.Alive() || d.actor.IsAlly(p) {
			continue
		}
		step := types.Move{X: sign(p.X - d.actor.X), Y: sign(p.Y - d.actor.Y)}
		if step.X == 0 && step.Y == 0 {
			continue
		}
		d.Add(Consideration{
			Action:     step,
			Heuristics: []Heuristic{Move{X: p.X, Y: p.Y}},
		})
	}
}

// Score totals each consideration's heuristics. Idempotent within a
// deliberation; after it the deliberation no longer accepts candidates.
func (d *Deliberator) Score() {
	if d.phase != PhaseCollecting {
		return
	}
	d.phase = PhaseScoring
	d.scores = make([]int, len(d.considerations))
	for i, c := range d.considerations {
		total := 0
		for _, h := range c.Heuristics {
			total += d.scoreHeuristic(h)
		}
		d.scores[i] = total
	}
}

func (d *Deliberator) scoreHeuristic(h Heuristic) int {
	switch h := h.(type) {
	case Damage:
		score := h.Amount
		if h.Amount >= h.Target.HP {
			score *= 5
		}
		return d.riskFilter(h.Target, score)
	case Debuff:
		return d.riskFilter(h.Target, h.Amount*2)
	case Move:
		return 1
	}
	return 0
}

// riskFilter discounts harm to allies: a risk-averse unit counts it
// against the action, any other unit merely ignores it.
func (d *Deliberator) riskFilter(target *piece.Piece, score int) int {
	if !d.actor.IsAlly(target) {
		return score
	}
	if d.riskAverse {
		return -score
	}
	return 0
}

// Scores returns the per-consideration totals computed by Score.
func (d *Deliberator) Scores() []int { return d.scores }

// Considerations returns the collected candidates.
func (d *Deliberator) Considerations() []Consideration { return d.considerations }

// Select returns the highest-scoring action, keeping the earliest on a
// tie. With nothing collected at all, the unit waits out a standard
// turn.
func (d *Deliberator) Select() types.Action {
	if d.phase == PhaseCollecting {
		d.Score()
	}
	if d.phase != PhaseScoring {
		return types.Wait{Duration: types.TurnTime}
	}
	d.phase = PhaseSelected
	if len(d.considerations) == 0 {
		return types.Wait{Duration: types.TurnTime}
	}
	best := 0
	for i, score := range d.scores {
		if score > d.scores[best] {
			best = i
		}
	}
	return d.considerations[best].Action
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
