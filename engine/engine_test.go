package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nathoo/tacticore/engine/consider"
	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/engine/protocol"
	"github.com/nathoo/tacticore/types"
)

// fakeRuleset compiles nothing: abilities are Go closures and
// components are plain defs, enough to drive the orchestrator.
type fakeRuleset struct {
	components map[string]*piece.Def
	abilities  map[string]*fakeAbility
}

func (r *fakeRuleset) Component(key string) (*piece.Def, error) {
	if def, ok := r.components[key]; ok {
		return def, nil
	}
	return nil, &piece.ErrUnknownComponent{Key: key}
}

func (r *fakeRuleset) Ability(id string) (Ability, error) {
	if a, ok := r.abilities[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("unknown ability %q", id)
}

type fakeAbility struct {
	usable      bool
	usableErr   error
	consider    func(actor *piece.Piece) []consider.Consideration
	considerErr error
	use         func(actor *piece.Piece, args types.Record) error
	delay       types.Aut
}

func (a *fakeAbility) Usable(*piece.Piece) (bool, error) { return a.usable, a.usableErr }

func (a *fakeAbility) Consider(actor *piece.Piece) (ConsiderComputation, error) {
	if a.considerErr != nil {
		return nil, a.considerErr
	}
	var cs []consider.Consideration
	if a.consider != nil {
		cs = a.consider(actor)
	}
	return &doneConsider{cs: cs}, nil
}

func (a *fakeAbility) Use(actor *piece.Piece, args types.Record) (protocol.Computation, error) {
	return &funcComp{fn: func() error { return a.use(actor, args) }}, nil
}

func (a *fakeAbility) Delay() types.Aut {
	if a.delay == 0 {
		return types.TurnTime
	}
	return a.delay
}

// doneConsider completes immediately with canned considerations.
type doneConsider struct{ cs []consider.Consideration }

func (c *doneConsider) Start() (protocol.Request, bool, error)          { return nil, true, nil }
func (c *doneConsider) Resume(protocol.Response) (protocol.Request, bool, error) {
	return nil, true, nil
}
func (c *doneConsider) Considerations() []consider.Consideration { return c.cs }

// funcComp runs one Go function as a computation.
type funcComp struct{ fn func() error }

func (c *funcComp) Start() (protocol.Request, bool, error) { return nil, true, c.fn() }
func (c *funcComp) Resume(protocol.Response) (protocol.Request, bool, error) {
	return nil, true, nil
}

func spawnUnit(e *Engine, id int, name string, x, y, hp int, team string) *piece.Piece {
	p := piece.New(id, name)
	p.X, p.Y = x, y
	p.Stats.Heart = hp
	p.HP = hp
	if team != "" {
		p.SetComponent(piece.TeamsComponent, types.List{types.String(team)})
	}
	e.World.Spawn(p)
	return p
}

func newTestEngine(rs *fakeRuleset) *Engine {
	if rs == nil {
		rs = &fakeRuleset{}
	}
	if rs.components == nil {
		rs.components = map[string]*piece.Def{}
	}
	if _, ok := rs.components[piece.TeamsComponent]; !ok {
		rs.components[piece.TeamsComponent] = &piece.Def{}
	}
	return New(rs, NewFloor(12, 12), 42)
}

func TestTurnOrderByDelay(t *testing.T) {
	e := newTestEngine(nil)
	a := spawnUnit(e, 0, "Aris", 2, 2, 10, "red")
	b := spawnUnit(e, 0, "Brone", 4, 4, 10, "blue")

	// Equal delay: spawn order breaks the tie.
	if got := e.Peek(); got != a {
		t.Fatalf("first turn goes to %s, want Aris", got.Name)
	}
	report, err := e.Turn(types.Wait{Duration: types.TurnTime})
	if err != nil {
		t.Fatal(err)
	}
	if report.Actor != a || report.Cost != types.TurnTime {
		t.Fatalf("report = %s cost %d", report.Actor.Name, report.Cost)
	}
	if got := e.Peek(); got != b {
		t.Fatalf("second turn goes to %s, want Brone", got.Name)
	}

	// A short wait reclaims the turn before the other unit moves.
	if _, err := e.Turn(types.Wait{Duration: 5}); err != nil {
		t.Fatal(err)
	}
	if got := e.Peek(); got != b {
		t.Fatalf("after 5-aut wait the turn goes to %s, want Brone again", got.Name)
	}
}

func TestTurnElapsedNormalization(t *testing.T) {
	e := newTestEngine(nil)
	a := spawnUnit(e, 0, "Aris", 2, 2, 10, "red")
	b := spawnUnit(e, 0, "Brone", 4, 4, 10, "blue")

	if _, err := e.Turn(types.Wait{Duration: types.TurnTime}); err != nil {
		t.Fatal(err)
	}
	report, err := e.Turn(types.Wait{Duration: types.TurnTime})
	if err != nil {
		t.Fatal(err)
	}
	if report.Actor != b {
		t.Fatalf("actor = %s, want Brone", report.Actor.Name)
	}
	if report.Elapsed != 0 {
		t.Errorf("elapsed = %d, want 0 (Brone was already due)", report.Elapsed)
	}
	if a.Delay != types.TurnTime || b.Delay != types.TurnTime {
		t.Errorf("delays = %d/%d, want both at a turn", a.Delay, b.Delay)
	}
}

func TestMoveCostsAndSliding(t *testing.T) {
	e := newTestEngine(nil)
	a := spawnUnit(e, 0, "Aris", 2, 2, 10, "red")

	report, err := e.Turn(types.Move{X: 1, Y: 0})
	if err != nil {
		t.Fatal(err)
	}
	if a.X != 3 || a.Y != 2 || report.Cost != types.TurnTime {
		t.Fatalf("cardinal step: pos (%d,%d) cost %d", a.X, a.Y, report.Cost)
	}

	report, err = e.Turn(types.Move{X: 1, Y: 1})
	if err != nil {
		t.Fatal(err)
	}
	if a.X != 4 || a.Y != 3 || report.Cost != types.DiagonalTime {
		t.Fatalf("diagonal step: pos (%d,%d) cost %d", a.X, a.Y, report.Cost)
	}

	// Block the diagonal: the step slides along the open axis.
	e.World.Floor.Set(5, 4, types.TileWall)
	e.World.Floor.Set(5, 3, types.TileWall)
	report, err = e.Turn(types.Move{X: 1, Y: 1})
	if err != nil {
		t.Fatal(err)
	}
	if a.X != 4 || a.Y != 4 || report.Cost != types.TurnTime {
		t.Fatalf("slide: pos (%d,%d) cost %d, want (4,4) at cardinal cost", a.X, a.Y, report.Cost)
	}
}

func TestMoveBlockedWaits(t *testing.T) {
	e := newTestEngine(nil)
	a := spawnUnit(e, 0, "Aris", 1, 1, 10, "red")
	// Corner: both axes walled.
	report, err := e.Turn(types.Move{X: -1, Y: -1})
	if err != nil {
		t.Fatal(err)
	}
	if a.X != 1 || a.Y != 1 {
		t.Fatalf("blocked unit moved to (%d,%d)", a.X, a.Y)
	}
	if report.Cost != types.TurnTime {
		t.Errorf("blocked step cost %d, want a full turn", report.Cost)
	}
}

func TestDeliberatedKill(t *testing.T) {
	rs := &fakeRuleset{abilities: map[string]*fakeAbility{}}
	e := newTestEngine(rs)
	a := spawnUnit(e, 0, "Aris", 2, 2, 10, "red")
	b := spawnUnit(e, 0, "Brone", 3, 2, 10, "blue")
	b.Abilities = []string{"rend"}
	rs.abilities["rend"] = &fakeAbility{
		usable: true,
		consider: func(actor *piece.Piece) []consider.Consideration {
			return []consider.Consideration{{
				Action:     types.UseAbility{ID: "rend"},
				Heuristics: []consider.Heuristic{consider.Damage{Target: a, Amount: 12}},
			}}
		},
		use: func(actor *piece.Piece, _ types.Record) error {
			a.Hurt(12)
			return nil
		},
	}

	// Aris passes; Brone deliberates.
	if _, err := e.Turn(types.Wait{Duration: types.TurnTime}); err != nil {
		t.Fatal(err)
	}
	report, err := e.Turn(nil)
	if err != nil {
		t.Fatal(err)
	}
	use, ok := report.Action.(types.UseAbility)
	if !ok || use.ID != "rend" {
		t.Fatalf("deliberation chose %v, want the lethal ability", report.Action)
	}
	if a.Alive() {
		t.Errorf("Aris survived with %d HP", a.HP)
	}
	if len(report.Dead) != 1 || report.Dead[0] != a {
		t.Errorf("dead = %v, want Aris reaped", report.Dead)
	}
	if _, ok := e.World.ByID(a.ID); ok {
		t.Errorf("dead unit still in the turn order")
	}
}

func TestDeliberationSkipsBrokenAbility(t *testing.T) {
	rs := &fakeRuleset{abilities: map[string]*fakeAbility{}}
	e := newTestEngine(rs)
	a := spawnUnit(e, 0, "Aris", 2, 2, 10, "red")
	b := spawnUnit(e, 0, "Brone", 3, 2, 10, "blue")
	// One missing, one broken, one working. Only the last should count,
	// and the breakage must not cost Brone the turn.
	b.Abilities = []string{"phantom", "curse", "rend"}
	rs.abilities["curse"] = &fakeAbility{
		usable:      true,
		considerErr: errors.New("curse script exploded"),
	}
	rs.abilities["rend"] = &fakeAbility{
		usable: true,
		consider: func(actor *piece.Piece) []consider.Consideration {
			return []consider.Consideration{{
				Action:     types.UseAbility{ID: "rend"},
				Heuristics: []consider.Heuristic{consider.Damage{Target: a, Amount: 12}},
			}}
		},
		use: func(actor *piece.Piece, _ types.Record) error {
			a.Hurt(12)
			return nil
		},
	}

	if _, err := e.Turn(types.Wait{Duration: types.TurnTime}); err != nil {
		t.Fatal(err)
	}
	report, err := e.Turn(nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Err != nil {
		t.Fatalf("turn failed: %v", report.Err)
	}
	use, ok := report.Action.(types.UseAbility)
	if !ok || use.ID != "rend" {
		t.Fatalf("deliberation chose %v, want the surviving ability", report.Action)
	}
	if a.Alive() {
		t.Errorf("Aris survived with %d HP", a.HP)
	}
}

func TestDeliberationApproachesWhenOutOfReach(t *testing.T) {
	rs := &fakeRuleset{abilities: map[string]*fakeAbility{}}
	e := newTestEngine(rs)
	spawnUnit(e, 0, "Aris", 2, 2, 10, "red")
	b := spawnUnit(e, 0, "Brone", 8, 2, 10, "blue")
	b.Abilities = nil

	if _, err := e.Turn(types.Wait{Duration: types.TurnTime}); err != nil {
		t.Fatal(err)
	}
	report, err := e.Turn(nil)
	if err != nil {
		t.Fatal(err)
	}
	step, ok := report.Action.(types.Move)
	if !ok || step.X != -1 || step.Y != 0 {
		t.Fatalf("deliberation chose %v, want a step toward Aris", report.Action)
	}
	if b.X != 7 {
		t.Errorf("Brone at x=%d, want 7", b.X)
	}
}

func TestScriptErrorContainedToTurn(t *testing.T) {
	boom := errors.New("script exploded")
	rs := &fakeRuleset{abilities: map[string]*fakeAbility{
		"rend": {
			usable: true,
			use: func(*piece.Piece, types.Record) error { return boom },
		},
	}}
	e := newTestEngine(rs)
	a := spawnUnit(e, 0, "Aris", 2, 2, 10, "red")
	spawnUnit(e, 0, "Brone", 4, 2, 10, "blue")

	report, err := e.Turn(types.UseAbility{ID: "rend"})
	if err != nil {
		t.Fatalf("contained failure leaked: %v", err)
	}
	if !errors.Is(report.Err, boom) {
		t.Fatalf("report.Err = %v, want the script error", report.Err)
	}
	if _, ok := report.Action.(types.Wait); !ok {
		t.Errorf("failed turn resolved as %v, want a wait", report.Action)
	}
	if a.Delay != types.TurnTime {
		t.Errorf("failed turn cost %d, want a full turn", a.Delay)
	}

	// The next turn proceeds normally.
	report, err = e.Turn(types.Wait{Duration: types.TurnTime})
	if err != nil || report.Err != nil {
		t.Fatalf("following turn: %v / %v", err, report.Err)
	}
}

func TestOnTurnHookRunsWithElapsedTime(t *testing.T) {
	var ticks []types.Aut
	rs := &fakeRuleset{components: map[string]*piece.Def{
		"std:bleed": {
			Name: "Bleeding",
			OnTurn: func(p *piece.Piece, elapsed types.Aut) error {
				ticks = append(ticks, elapsed)
				p.Hurt(1)
				return nil
			},
		},
	}}
	e := newTestEngine(rs)
	a := spawnUnit(e, 0, "Aris", 2, 2, 10, "red")
	spawnUnit(e, 0, "Brone", 4, 2, 10, "blue")
	a.SetComponent("std:bleed", types.Int(15))

	if _, err := e.Turn(types.Wait{Duration: types.TurnTime}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Turn(types.Wait{Duration: types.TurnTime}); err != nil {
		t.Fatal(err)
	}
	// Aris again, a full turn later.
	report, err := e.Turn(types.Wait{Duration: types.TurnTime})
	if err != nil {
		t.Fatal(err)
	}
	if report.Actor != a {
		t.Fatalf("third turn actor = %s, want Aris", report.Actor.Name)
	}
	if len(ticks) != 2 || ticks[0] != 0 || ticks[1] != types.TurnTime {
		t.Errorf("hook elapsed times = %v, want [0 %d]", ticks, types.TurnTime)
	}
	if a.HP != 8 {
		t.Errorf("HP = %d, want 8 after two bleed ticks", a.HP)
	}
}

func TestHookDeathForfeitsTurn(t *testing.T) {
	rs := &fakeRuleset{components: map[string]*piece.Def{
		"std:poison": {
			Name: "Poisoned",
			OnTurn: func(p *piece.Piece, _ types.Aut) error {
				p.Hurt(p.HP)
				return nil
			},
		},
	}}
	e := newTestEngine(rs)
	a := spawnUnit(e, 0, "Aris", 2, 2, 3, "red")
	spawnUnit(e, 0, "Brone", 4, 2, 10, "blue")
	a.SetComponent("std:poison", types.Int(3))

	report, err := e.Turn(types.Move{X: 1, Y: 0})
	if err != nil {
		t.Fatal(err)
	}
	if a.X != 2 {
		t.Errorf("dead unit still moved")
	}
	if len(report.Dead) != 1 || report.Dead[0] != a {
		t.Errorf("dead = %v, want Aris", report.Dead)
	}
}

func TestRestRestoresAndRunsHooks(t *testing.T) {
	cleared := false
	rs := &fakeRuleset{components: map[string]*piece.Def{
		"std:bleed": {
			Name: "Bleeding",
			OnRest: func(p *piece.Piece) error {
				cleared = true
				p.SetComponent("std:bleed", types.Nil{})
				return nil
			},
		},
	}}
	e := newTestEngine(rs)
	a := spawnUnit(e, 0, "Aris", 2, 2, 10, "red")
	a.Stats.Soul = 6
	a.SP = 1
	a.HP = 4
	a.SetComponent("std:bleed", types.Int(20))

	if err := e.Rest(); err != nil {
		t.Fatal(err)
	}
	if a.HP != 10 || a.SP != 6 {
		t.Errorf("vitals = %d/%d, want full", a.HP, a.SP)
	}
	if !cleared {
		t.Errorf("rest hook did not run")
	}
	if _, ok := a.Component("std:bleed"); ok {
		t.Errorf("bleed survived the rest")
	}
}

func TestUnusableAbilityFailsTurn(t *testing.T) {
	rs := &fakeRuleset{abilities: map[string]*fakeAbility{
		"rend": {usable: false},
	}}
	e := newTestEngine(rs)
	spawnUnit(e, 0, "Aris", 2, 2, 10, "red")
	report, err := e.Turn(types.UseAbility{ID: "rend"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Err == nil {
		t.Errorf("unusable ability accepted")
	}
}
