package loader

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/tacticore/engine"
	"github.com/nathoo/tacticore/engine/combat"
	"github.com/nathoo/tacticore/engine/consider"
	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/engine/protocol"
	"github.com/nathoo/tacticore/types"
)

const pieceTypeName = "piece"

// state returns the Lua state hook calls should run on: the active
// ability coroutine when a script is mid-turn, the root state
// otherwise.
func (d *Defs) state() *lua.LState {
	if d.active != nil {
		return d.active
	}
	return d.L
}

// luaAbility implements the engine's ability runtime on top of Lua
// functions compiled from content.
type luaAbility struct {
	defs       *Defs
	id, name   string
	cost       int
	delay      types.Aut
	tags       *combat.TagPair
	usable     *lua.LFunction
	onUse      *lua.LFunction
	onConsider *lua.LFunction
}

func (a *luaAbility) Usable(actor *piece.Piece) (bool, error) {
	if a.usable == nil {
		return actor.SP >= a.cost, nil
	}
	L := a.defs.state()
	if err := L.CallByParam(lua.P{Fn: a.usable, NRet: 1, Protect: true}, a.defs.pieceUD(actor)); err != nil {
		return false, fmt.Errorf("ability %s usable: %w", a.id, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

func (a *luaAbility) Consider(actor *piece.Piece) (engine.ConsiderComputation, error) {
	if a.onConsider == nil {
		return noConsider{}, nil
	}
	return &considerRun{luaComputation{
		defs: a.defs,
		fn:   a.onConsider,
		args: []lua.LValue{a.defs.pieceUD(actor)},
	}}, nil
}

func (a *luaAbility) Use(actor *piece.Piece, args types.Record) (protocol.Computation, error) {
	if a.cost > 0 && actor.SP < a.cost {
		return nil, fmt.Errorf("%s cannot afford %s", actor.Name, a.id)
	}
	return &luaComputation{
		defs: a.defs,
		fn:   a.onUse,
		args: []lua.LValue{a.defs.pieceUD(actor), valueToLua(a.defs, args)},
		// The cost is charged once the script completes, so a script
		// that errors out leaves the actor's points untouched.
		onDone: func() error {
			if a.cost > 0 && !actor.Spend(a.cost) {
				return fmt.Errorf("%s cannot afford %s", actor.Name, a.id)
			}
			return nil
		},
	}, nil
}

func (a *luaAbility) Delay() types.Aut { return a.delay }

// luaComputation runs one Lua function as a resumable computation on
// its own coroutine. Yielded request userdata becomes protocol
// requests; resume answers become yield results.
type luaComputation struct {
	defs   *Defs
	fn     *lua.LFunction
	args   []lua.LValue
	onDone func() error
	co     *lua.LState
	ret    lua.LValue
}

func (c *luaComputation) Start() (protocol.Request, bool, error) {
	c.co, _ = c.defs.L.NewThread()
	return c.resumeWith(c.args...)
}

func (c *luaComputation) Resume(resp protocol.Response) (protocol.Request, bool, error) {
	return c.resumeWith(respToLua(c.defs, resp))
}

func (c *luaComputation) resumeWith(args ...lua.LValue) (protocol.Request, bool, error) {
	prev := c.defs.active
	c.defs.active = c.co
	st, err, values := c.defs.L.Resume(c.co, c.fn, args...)
	c.defs.active = prev

	switch st {
	case lua.ResumeOK:
		if len(values) > 0 {
			c.ret = values[0]
		} else {
			c.ret = lua.LNil
		}
		if c.onDone != nil {
			if derr := c.onDone(); derr != nil {
				return nil, true, derr
			}
		}
		return nil, true, nil
	case lua.ResumeYield:
		if len(values) == 0 {
			return nil, false, fmt.Errorf("script yielded no request")
		}
		req, derr := decodeRequest(values[0])
		if derr != nil {
			return nil, false, derr
		}
		return req, false, nil
	default:
		return nil, false, err
	}
}

// considerRun reads a consider script's return: an array of
// consideration userdata.
type considerRun struct {
	luaComputation
}

func (c *considerRun) Considerations() []consider.Consideration {
	tbl, ok := c.ret.(*lua.LTable)
	if !ok {
		return nil
	}
	var out []consider.Consideration
	for i := 1; i <= tbl.MaxN(); i++ {
		if ud, ok := tbl.RawGetInt(i).(*lua.LUserData); ok {
			if con, ok := ud.Value.(consider.Consideration); ok {
				out = append(out, con)
			}
		}
	}
	return out
}

// noConsider is the runtime for abilities that never volunteer
// candidates.
type noConsider struct{}

func (noConsider) Start() (protocol.Request, bool, error) { return nil, true, nil }
func (noConsider) Resume(protocol.Response) (protocol.Request, bool, error) {
	return nil, true, nil
}
func (noConsider) Considerations() []consider.Consideration { return nil }

// decodeRequest unwraps a yielded request userdata.
func decodeRequest(v lua.LValue) (protocol.Request, error) {
	ud, ok := v.(*lua.LUserData)
	if !ok {
		return nil, fmt.Errorf("script yielded a %s, not a request", v.Type())
	}
	req, ok := ud.Value.(protocol.Request)
	if !ok {
		return nil, fmt.Errorf("script yielded a %T, not a request", ud.Value)
	}
	return req, nil
}

// respToLua encodes a protocol answer for the resumed script.
func respToLua(d *Defs, resp protocol.Response) lua.LValue {
	switch r := resp.(type) {
	case protocol.PositionResponse:
		tbl := d.L.NewTable()
		tbl.RawSetString("x", lua.LNumber(r.X))
		tbl.RawSetString("y", lua.LNumber(r.Y))
		return tbl
	case protocol.BoolResponse:
		return lua.LBool(r)
	case protocol.DirectionResponse:
		return lua.LString(types.CardDir(r).String())
	case protocol.PiecesResponse:
		tbl := d.L.NewTable()
		for _, p := range r {
			tbl.Append(d.pieceUD(p))
		}
		return tbl
	case protocol.TileResponse:
		if !r.Ok {
			return lua.LNil
		}
		return lua.LString(r.Tile.String())
	}
	return lua.LNil
}

// pieceUD returns the one userdata wrapping p, creating it on first
// use. One userdata per piece keeps Lua equality meaningful.
func (d *Defs) pieceUD(p *piece.Piece) lua.LValue {
	if p == nil {
		return lua.LNil
	}
	if ud, ok := d.pieceUDs[p]; ok {
		return ud
	}
	ud := d.L.NewUserData()
	ud.Value = p
	d.L.SetMetatable(ud, d.L.GetTypeMetatable(pieceTypeName))
	d.pieceUDs[p] = ud
	return ud
}

func checkPiece(L *lua.LState, n int) *piece.Piece {
	ud := L.CheckUserData(n)
	if p, ok := ud.Value.(*piece.Piece); ok {
		return p
	}
	L.ArgError(n, "piece expected")
	return nil
}

// tablePiece reads a piece field out of a Lua table.
func tablePiece(L *lua.LState, tbl *lua.LTable, key string) *piece.Piece {
	v := tbl.RawGetString(key)
	ud, ok := v.(*lua.LUserData)
	if !ok {
		L.RaiseError("%s must be a piece", key)
		return nil
	}
	p, ok := ud.Value.(*piece.Piece)
	if !ok {
		L.RaiseError("%s must be a piece", key)
		return nil
	}
	return p
}

// registerRuntime installs the play-time API: the piece type, the
// engine module tree, and the Console global.
func registerRuntime(d *Defs) error {
	L := d.L
	registerPieceType(d)

	eng := L.NewTable()
	L.SetGlobal("engine", eng)

	// engine.types: action, heuristic and consideration constructors.
	typesTbl := L.NewTable()
	eng.RawSetString("types", typesTbl)

	action := L.NewTable()
	typesTbl.RawSetString("action", action)
	action.RawSetString("wait", L.NewFunction(func(L *lua.LState) int {
		dur := types.TurnTime
		if L.GetTop() >= 1 {
			dur = types.Aut(L.CheckInt(1))
		}
		return pushWrapped(L, types.Wait{Duration: dur})
	}))
	action.RawSetString("move", L.NewFunction(func(L *lua.LState) int {
		return pushWrapped(L, types.Move{X: L.CheckInt(1), Y: L.CheckInt(2)})
	}))
	action.RawSetString("use", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		args := types.Record{}
		if L.GetTop() >= 2 {
			v, err := luaToValue(L.CheckTable(2))
			if err != nil {
				L.RaiseError("use %s: %v", id, err)
			}
			rec, ok := v.(types.Record)
			if !ok {
				L.RaiseError("use %s: args must be a record", id)
			}
			args = rec
		}
		return pushWrapped(L, types.UseAbility{ID: id, Args: args})
	}))

	heur := L.NewTable()
	typesTbl.RawSetString("heuristic", heur)
	heur.RawSetString("damage", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		return pushWrapped(L, consider.Damage{
			Target: tablePiece(L, tbl, "target"),
			Amount: getInt(tbl, "amount"),
		})
	}))
	heur.RawSetString("debuff", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		return pushWrapped(L, consider.Debuff{
			Target: tablePiece(L, tbl, "target"),
			Amount: getInt(tbl, "amount"),
		})
	}))
	heur.RawSetString("move", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		return pushWrapped(L, consider.Move{X: getInt(tbl, "x"), Y: getInt(tbl, "y")})
	}))

	typesTbl.RawSetString("consider", L.NewFunction(func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		act, ok := ud.Value.(types.Action)
		if !ok {
			L.ArgError(1, "action expected")
		}
		hs := L.CheckTable(2)
		con := consider.Consideration{Action: act}
		for i := 1; i <= hs.MaxN(); i++ {
			hud, ok := hs.RawGetInt(i).(*lua.LUserData)
			if !ok {
				L.ArgError(2, "heuristics must be heuristic values")
			}
			h, ok := hud.Value.(consider.Heuristic)
			if !ok {
				L.ArgError(2, "heuristics must be heuristic values")
			}
			con.Heuristics = append(con.Heuristics, h)
		}
		return pushWrapped(L, con)
	}))

	// engine.combat: the numeric combat rules.
	combatTbl := L.NewTable()
	eng.RawSetString("combat", combatTbl)
	combatTbl.RawSetString("apply_pierce", L.NewFunction(func(L *lua.LState) int {
		damage, glance := combat.ApplyPierce(L.CheckInt(1), L.CheckInt(2))
		L.Push(lua.LNumber(damage))
		L.Push(lua.LBool(glance))
		return 2
	}))
	combatTbl.RawSetString("scale", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(combat.Scale(L.CheckInt(1), L.CheckInt(2))))
		return 1
	}))
	combatTbl.RawSetString("weak", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(combat.Weak(L.CheckInt(1))))
		return 1
	}))
	combatTbl.RawSetString("debuff_penalty", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(combat.DebuffPenalty(L.CheckInt(1))))
		return 1
	}))

	logTbl := L.NewTable()
	combatTbl.RawSetString("log", logTbl)
	logTbl.RawSetString("hit", L.NewFunction(func(L *lua.LState) int {
		return pushLog(L, combat.Hit(L.CheckInt(1)))
	}))
	logTbl.RawSetString("miss", L.NewFunction(func(L *lua.LState) int {
		return pushLog(L, combat.Miss)
	}))
	logTbl.RawSetString("glance", L.NewFunction(func(L *lua.LState) int {
		return pushLog(L, combat.Glance)
	}))
	logTbl.RawSetString("success", L.NewFunction(func(L *lua.LState) int {
		return pushLog(L, combat.Success)
	}))

	// engine.rng: dice bound to the battle RNG.
	rngTbl := L.NewTable()
	eng.RawSetString("rng", rngTbl)
	rngTbl.RawSetString("roll", L.NewFunction(func(L *lua.LState) int {
		if d.roller == nil {
			L.RaiseError("rng is not bound")
		}
		L.Push(lua.LNumber(d.roller.Roll(L.CheckInt(1))))
		return 1
	}))

	// Console global.
	consoleTbl := L.NewTable()
	L.SetGlobal("Console", consoleTbl)
	consoleTbl.RawSetString("print", L.NewFunction(func(L *lua.LState) int {
		if d.console != nil {
			d.console.Print(L.CheckString(1))
		}
		return 0
	}))
	consoleTbl.RawSetString("system", L.NewFunction(func(L *lua.LState) int {
		if d.console != nil {
			d.console.System(L.CheckString(1))
		}
		return 0
	}))
	consoleTbl.RawSetString("combat", L.NewFunction(func(L *lua.LState) int {
		if d.console != nil {
			d.console.Combat(L.CheckString(1))
		}
		return 0
	}))

	// Raw request constructors, handed to the yielding wrappers below
	// and never exposed directly.
	mk := L.NewTable()
	mk.RawSetString("characters", L.NewFunction(func(L *lua.LState) int {
		req := protocol.EntityQueryRequest{}
		if L.GetTop() >= 1 && L.Get(1) != lua.LNil {
			tbl := L.CheckTable(1)
			req.Filter = &protocol.WithinFilter{
				X:     getInt(tbl, "x"),
				Y:     getInt(tbl, "y"),
				Range: getInt(tbl, "range"),
			}
		}
		return pushWrapped(L, req)
	}))
	mk.RawSetString("tile", L.NewFunction(func(L *lua.LState) int {
		return pushWrapped(L, protocol.TileQueryRequest{X: L.CheckInt(1), Y: L.CheckInt(2)})
	}))
	mk.RawSetString("cursor", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		return pushWrapped(L, protocol.CursorRequest{
			X:      getInt(tbl, "x"),
			Y:      getInt(tbl, "y"),
			Range:  getInt(tbl, "range"),
			Radius: getInt(tbl, "radius"),
		})
	}))
	mk.RawSetString("prompt", L.NewFunction(func(L *lua.LState) int {
		return pushWrapped(L, protocol.PromptRequest{Message: L.CheckString(1)})
	}))
	mk.RawSetString("direction", L.NewFunction(func(L *lua.LState) int {
		return pushWrapped(L, protocol.DirectionRequest{Message: L.CheckString(1)})
	}))

	// Go functions cannot yield, so the suspending surface is a Lua
	// shim: build the request in Go, yield it from Lua.
	const shim = `
local mk = ...
engine.world = {
	characters = function(opts) return coroutine.yield(mk.characters(opts)) end,
	characters_within = function(x, y, range)
		return coroutine.yield(mk.characters({ x = x, y = y, range = range }))
	end,
	character_at = function(x, y)
		return coroutine.yield(mk.characters({ x = x, y = y, range = 0 }))[1]
	end,
	tile = function(x, y) return coroutine.yield(mk.tile(x, y)) end,
}
engine.input = {
	cursor = function(opts) return coroutine.yield(mk.cursor(opts)) end,
	prompt = function(message) return coroutine.yield(mk.prompt(message)) end,
	direction = function(message) return coroutine.yield(mk.direction(message)) end,
}
`
	fn, err := L.LoadString(shim)
	if err != nil {
		return err
	}
	return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, mk)
}

func pushWrapped(L *lua.LState, v interface{}) int {
	ud := L.NewUserData()
	ud.Value = v
	L.Push(ud)
	return 1
}

func pushLog(L *lua.LState, log combat.Log) int {
	tbl := L.NewTable()
	tbl.RawSetString("text", lua.LString(log.String()))
	tbl.RawSetString("weak", lua.LBool(log.Weak()))
	L.Push(tbl)
	return 1
}

// registerPieceType installs the piece userdata metatable. Fields read
// directly; everything else dispatches to a method.
func registerPieceType(d *Defs) {
	L := d.L
	mt := L.NewTypeMetatable(pieceTypeName)
	L.SetField(mt, "__index", L.NewFunction(d.pieceIndex))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		p := checkPiece(L, 1)
		L.Push(lua.LString(p.Name))
		return 1
	}))
}

func (d *Defs) pieceIndex(L *lua.LState) int {
	p := checkPiece(L, 1)
	key := L.CheckString(2)
	switch key {
	case "id":
		L.Push(lua.LNumber(p.ID))
	case "name":
		L.Push(lua.LString(p.Name))
	case "x":
		L.Push(lua.LNumber(p.X))
	case "y":
		L.Push(lua.LNumber(p.Y))
	case "hp":
		L.Push(lua.LNumber(p.HP))
	case "sp":
		L.Push(lua.LNumber(p.SP))
	case "level":
		L.Push(lua.LNumber(p.Level))
	case "speed":
		L.Push(lua.LNumber(p.Speed))
	case "alive":
		L.Push(lua.LBool(p.Alive()))
	case "stats":
		L.Push(statsToLua(L, p.Stats))
	default:
		if fn, ok := d.pieceMethod(key); ok {
			L.Push(L.NewFunction(fn))
		} else {
			L.Push(lua.LNil)
		}
	}
	return 1
}

func (d *Defs) pieceMethod(key string) (lua.LGFunction, bool) {
	switch key {
	case "hurt":
		return func(L *lua.LState) int {
			checkPiece(L, 1).Hurt(L.CheckInt(2))
			return 0
		}, true
	case "heal":
		return func(L *lua.LState) int {
			checkPiece(L, 1).Heal(L.CheckInt(2))
			return 0
		}, true
	case "spend":
		return func(L *lua.LState) int {
			L.Push(lua.LBool(checkPiece(L, 1).Spend(L.CheckInt(2))))
			return 1
		}, true
	case "restore":
		return func(L *lua.LState) int {
			checkPiece(L, 1).Restore(L.CheckInt(2))
			return 0
		}, true
	case "move_to":
		return func(L *lua.LState) int {
			p := checkPiece(L, 1)
			p.X, p.Y = L.CheckInt(2), L.CheckInt(3)
			return 0
		}, true
	case "attach":
		return func(L *lua.LState) int {
			p := checkPiece(L, 1)
			compKey := L.CheckString(2)
			value, err := luaToValue(L.Get(3))
			if err != nil {
				L.RaiseError("attach %s: %v", compKey, err)
			}
			if err := piece.Attach(d, p, compKey, value); err != nil {
				L.RaiseError("attach %s: %v", compKey, err)
			}
			return 0
		}, true
	case "detach":
		return func(L *lua.LState) int {
			p := checkPiece(L, 1)
			compKey := L.CheckString(2)
			annotation, err := luaToValue(L.Get(3))
			if err != nil {
				L.RaiseError("detach %s: %v", compKey, err)
			}
			if err := piece.Detach(d, p, compKey, annotation); err != nil {
				L.RaiseError("detach %s: %v", compKey, err)
			}
			return 0
		}, true
	case "set_component":
		// Bypasses the attach/detach hooks; for hook bodies that
		// replace their own value.
		return func(L *lua.LState) int {
			p := checkPiece(L, 1)
			compKey := L.CheckString(2)
			value, err := luaToValue(L.Get(3))
			if err != nil {
				L.RaiseError("set_component %s: %v", compKey, err)
			}
			p.SetComponent(compKey, value)
			return 0
		}, true
	case "component":
		return func(L *lua.LState) int {
			p := checkPiece(L, 1)
			value, ok := p.Component(L.CheckString(2))
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(valueToLua(d, value))
			return 1
		}, true
	case "effective_stats":
		return func(L *lua.LState) int {
			p := checkPiece(L, 1)
			stats, err := piece.EffectiveStats(d, p)
			if err != nil {
				L.RaiseError("effective_stats: %v", err)
			}
			L.Push(statsToLua(L, stats))
			return 1
		}, true
	case "is_ally":
		return func(L *lua.LState) int {
			L.Push(lua.LBool(checkPiece(L, 1).IsAlly(checkPiece(L, 2))))
			return 1
		}, true
	case "teams":
		return func(L *lua.LState) int {
			tbl := L.NewTable()
			for _, team := range checkPiece(L, 1).Teams() {
				tbl.Append(lua.LString(team))
			}
			L.Push(tbl)
			return 1
		}, true
	case "affinity":
		return func(L *lua.LState) int {
			p := checkPiece(L, 1)
			energy, err := combat.ParseTag(L.CheckString(2))
			if err != nil {
				L.RaiseError("affinity: %v", err)
			}
			harmony, err := combat.ParseTag(L.CheckString(3))
			if err != nil {
				L.RaiseError("affinity: %v", err)
			}
			pair, err := combat.NewTagPair(energy, harmony)
			if err != nil {
				L.RaiseError("affinity: %v", err)
			}
			L.Push(lua.LNumber(combat.Affinity(p.Skillset, pair)))
			return 1
		}, true
	}
	return nil, false
}
