// Package engine provides the Turn() orchestrator that wires together
// the delay queue, component ticks, deliberation, the request protocol,
// and action resolution into a single unit's turn.
package engine

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/nathoo/tacticore/engine/consider"
	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/engine/protocol"
	"github.com/nathoo/tacticore/types"
)

// Ability is one equipped ability's runtime behavior, as compiled by
// the loader.
type Ability interface {
	// Usable reports whether actor may use the ability right now.
	Usable(actor *piece.Piece) (bool, error)
	// Consider builds the computation that proposes candidate uses
	// during deliberation. It may query the world but never asks for
	// choices.
	Consider(actor *piece.Piece) (ConsiderComputation, error)
	// Use builds the computation that performs the ability.
	Use(actor *piece.Piece, args types.Record) (protocol.Computation, error)
	// Delay is the action cost of a use.
	Delay() types.Aut
}

// ConsiderComputation is a computation whose result, once done, is a
// list of considerations.
type ConsiderComputation interface {
	protocol.Computation
	Considerations() []consider.Consideration
}

// Ruleset is the compiled content the engine runs: component hook
// definitions plus ability runtimes.
type Ruleset interface {
	piece.Registry
	Ability(id string) (Ability, error)
}

// ControllerFor builds the protocol controller used when actor's
// ability suspends on a choice. Surfaces supply interactive controllers
// for player units; everything else gets the synthetic policy.
type ControllerFor func(actor *piece.Piece) protocol.Controller

// TurnReport summarizes one executed turn.
type TurnReport struct {
	Actor   *piece.Piece
	Elapsed types.Aut
	Action  types.Action
	Cost    types.Aut
	Dead    []*piece.Piece
	// Err records a contained script failure. The turn still happened:
	// the unit waited it out.
	Err error
}

// Engine holds the compiled content and mutable battle state.
type Engine struct {
	Defs       Ruleset
	World      *World
	RNG        *RNG
	Console    Console
	Log        *logrus.Logger
	Controller ControllerFor
}

// New creates an engine over defs and floor. Logging is off until the
// caller configures Log; output goes to Console.
func New(defs Ruleset, floor *Floor, seed int64) *Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	e := &Engine{
		Defs:    defs,
		World:   NewWorld(floor),
		RNG:     NewRNG(seed),
		Console: &Buffer{},
		Log:     log,
	}
	e.Controller = func(actor *piece.Piece) protocol.Controller {
		return protocol.Synthetic{World: e.World, Actor: actor}
	}
	return e
}

// Peek returns the unit that acts next, or nil when the battle is over.
func (e *Engine) Peek() *piece.Piece {
	return e.World.Peek()
}

// Turn runs the next unit's turn. For a player-controlled unit the
// caller supplies the action; for any other unit pass nil and the
// engine deliberates. Script failures are contained to the turn: the
// unit waits it out and the report records the error.
func (e *Engine) Turn(action types.Action) (*TurnReport, error) {
	// 1. Advance the delay queue to the next living unit.
	actor, elapsed := e.World.Next()
	if actor == nil {
		return nil, fmt.Errorf("no living units")
	}
	report := &TurnReport{Actor: actor, Elapsed: elapsed}

	// 2. Run component on_turn hooks with the elapsed time.
	if err := piece.TickTurn(e.Defs, actor, elapsed); err != nil {
		e.containTurn(report, err)
		return e.finishTurn(report), nil
	}

	// 2a. The hooks may have killed the unit. Its turn is forfeit.
	if !actor.Alive() {
		report.Action = types.Wait{}
		return e.finishTurn(report), nil
	}

	// 3. Choose the action: supplied, or deliberated.
	if action == nil {
		action = e.deliberate(actor)
	}
	report.Action = action

	// 4. Resolve the action.
	cost, err := e.perform(actor, action)
	if err != nil {
		e.containTurn(report, err)
		return e.finishTurn(report), nil
	}
	report.Cost = cost
	actor.Delay += cost

	return e.finishTurn(report), nil
}

func (e *Engine) containTurn(report *TurnReport, err error) {
	report.Err = err
	report.Action = types.Wait{Duration: types.TurnTime}
	report.Cost = types.TurnTime
	report.Actor.Delay += types.TurnTime
	e.Log.WithFields(logrus.Fields{
		"unit":  report.Actor.Name,
		"error": err,
	}).Error("turn failed, unit waits")
	e.Console.System(fmt.Sprintf("%s falters.", report.Actor.Name))
}

func (e *Engine) finishTurn(report *TurnReport) *TurnReport {
	// 5. Reap the fallen.
	report.Dead = e.World.Reap()
	for _, d := range report.Dead {
		e.Console.System(fmt.Sprintf("%s dies.", d.Name))
	}
	return report
}

// deliberate collects, scores and selects an action for a scripted
// unit's turn. A broken ability drops out of the running and the rest
// still compete; with nothing to propose the unit waits.
func (e *Engine) deliberate(actor *piece.Piece) types.Action {
	d := consider.NewDeliberator(e.RNG)
	d.Begin(actor)

	// Approach proposals first, then each equipped ability's.
	d.AddApproaches(e.World.Alive())
	for _, id := range actor.Abilities {
		ability, err := e.Defs.Ability(id)
		if err != nil {
			e.skipAbility(actor, id, err)
			continue
		}
		ok, err := ability.Usable(actor)
		if err != nil {
			e.skipAbility(actor, id, err)
			continue
		}
		if !ok {
			continue
		}
		comp, err := ability.Consider(actor)
		if err != nil {
			e.skipAbility(actor, id, err)
			continue
		}
		// Consider computations only query; the synthetic controller
		// is a backstop for a script that asks for a choice anyway.
		ctrl := protocol.Synthetic{World: e.World, Actor: actor}
		if err := protocol.Run(protocol.NewSession(comp), e.World, ctrl); err != nil {
			e.skipAbility(actor, id, err)
			continue
		}
		for _, c := range comp.Considerations() {
			d.Add(c)
		}
	}

	d.Score()
	e.traceDeliberation(actor, d)
	return d.Select()
}

// skipAbility logs one ability falling out of a deliberation.
func (e *Engine) skipAbility(actor *piece.Piece, id string, err error) {
	e.Log.WithFields(logrus.Fields{
		"unit":    actor.Name,
		"ability": id,
		"error":   err,
	}).Warn("consider failed, ability skipped")
}

// traceDeliberation logs every scored consideration, for tuning.
func (e *Engine) traceDeliberation(actor *piece.Piece, d *consider.Deliberator) {
	if !e.Log.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	scores := d.Scores()
	for i, c := range d.Considerations() {
		e.Log.WithFields(logrus.Fields{
			"unit":        actor.Name,
			"action":      fmt.Sprintf("%v", c.Action),
			"score":       scores[i],
			"risk_averse": d.RiskAverse(),
		}).Debug("consideration")
	}
}

// perform resolves a chosen action and returns its time cost.
func (e *Engine) perform(actor *piece.Piece, action types.Action) (types.Aut, error) {
	switch a := action.(type) {
	case types.Wait:
		if a.Duration <= 0 {
			return types.TurnTime, nil
		}
		return a.Duration, nil
	case types.Move:
		return e.performMove(actor, a)
	case types.UseAbility:
		return e.performAbility(actor, a)
	}
	return 0, fmt.Errorf("unknown action %T", action)
}

// performMove steps one tile. A blocked diagonal slides along whichever
// axis is open; a fully blocked step costs a turn of standing still.
func (e *Engine) performMove(actor *piece.Piece, mv types.Move) (types.Aut, error) {
	dx, dy := clampStep(mv.X), clampStep(mv.Y)
	if dx == 0 && dy == 0 {
		return types.TurnTime, nil
	}
	if !e.World.Open(actor.X+dx, actor.Y+dy) {
		// Slide: keep the component that is open.
		switch {
		case dx != 0 && e.World.Open(actor.X+dx, actor.Y):
			dy = 0
		case dy != 0 && e.World.Open(actor.X, actor.Y+dy):
			dx = 0
		default:
			e.Console.System(fmt.Sprintf("%s is blocked.", actor.Name))
			return types.TurnTime, nil
		}
	}
	actor.X += dx
	actor.Y += dy
	if dx != 0 && dy != 0 {
		return types.DiagonalTime, nil
	}
	return types.TurnTime, nil
}

// performAbility runs the ability's computation through the request
// protocol, answering queries from the world and choices from the
// actor's controller.
func (e *Engine) performAbility(actor *piece.Piece, use types.UseAbility) (types.Aut, error) {
	ability, err := e.Defs.Ability(use.ID)
	if err != nil {
		return 0, err
	}
	ok, err := ability.Usable(actor)
	if err != nil {
		return 0, fmt.Errorf("ability %s usable: %w", use.ID, err)
	}
	if !ok {
		return 0, fmt.Errorf("ability %s is not usable by %s", use.ID, actor.Name)
	}
	comp, err := ability.Use(actor, use.Args)
	if err != nil {
		return 0, fmt.Errorf("ability %s: %w", use.ID, err)
	}
	session := protocol.NewSession(comp)
	if err := protocol.Run(session, e.World, e.Controller(actor)); err != nil {
		return 0, fmt.Errorf("ability %s: %w", use.ID, err)
	}
	return ability.Delay(), nil
}

// Rest runs every living unit's rest hooks and restores vitals. Only
// valid between encounters; the delay queue is unaffected.
func (e *Engine) Rest() error {
	for _, p := range e.World.Alive() {
		if err := piece.Rest(e.Defs, p); err != nil {
			return fmt.Errorf("rest %s: %w", p.Name, err)
		}
		p.HP = p.Stats.Heart
		p.SP = p.Stats.Soul
	}
	e.Console.System("The party rests.")
	return nil
}

func clampStep(v int) int {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
