// Package loader loads Lua battle content into definitions. Unlike a
// pure data loader the VM survives loading: component hooks and ability
// scripts are Lua functions the engine calls back into during play.
package loader

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/tacticore/engine"
	"github.com/nathoo/tacticore/engine/combat"
	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/types"
)

// rawSheet holds a sheet table before compilation.
type rawSheet struct {
	id    string
	table *lua.LTable
}

// rawAbility holds an ability table before compilation.
type rawAbility struct {
	id    string
	table *lua.LTable
}

// rawComponent holds a component table before compilation.
type rawComponent struct {
	key   string
	table *lua.LTable
}

// SpawnDef places one unit on the floor at battle start.
type SpawnDef struct {
	Sheet  string
	X, Y   int
	Player bool
}

// Sheet is a unit template.
type Sheet struct {
	ID        string
	Name      string
	Stats     piece.Stats
	Skills    combat.Skillset
	Abilities []string
	Speed     types.Aut
	// Components attached at spawn, through the normal attach hooks.
	Components map[string]types.Value
}

// Resolver looks units up by ID, for reference arguments crossing the
// Lua boundary.
type Resolver interface {
	ByID(id int) (*piece.Piece, bool)
}

// Roller is the dice surface scripts roll through.
type Roller interface {
	Roll(sides int) int
}

// Defs is the compiled content: templates, floor and spawns as data,
// plus the live VM the hooks and ability scripts run on. It implements
// the engine's ruleset. Not safe for concurrent use; the engine runs
// turns on one goroutine.
type Defs struct {
	Game      types.GameDef
	FloorRows []string
	Spawns    []SpawnDef
	Sheets    map[string]*Sheet

	L          *lua.LState
	active     *lua.LState
	abilities  map[string]*luaAbility
	components map[string]*piece.Def

	// Bound at battle start.
	resolver Resolver
	console  engine.Console
	roller   Roller

	pieceUDs map[*piece.Piece]*lua.LUserData
}

// Close shuts the VM down. The Defs is unusable afterwards.
func (d *Defs) Close() {
	d.L.Close()
}

// Bind connects the compiled content to a running battle. Must be
// called before any turn runs.
func (d *Defs) Bind(resolver Resolver, console engine.Console, roller Roller) {
	d.resolver = resolver
	d.console = console
	d.roller = roller
}

// Component implements the component registry.
func (d *Defs) Component(key string) (*piece.Def, error) {
	if def, ok := d.components[key]; ok {
		return def, nil
	}
	return nil, &piece.ErrUnknownComponent{Key: key}
}

// Ability returns the runtime for one ability.
func (d *Defs) Ability(id string) (engine.Ability, error) {
	if a, ok := d.abilities[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("unknown ability %q", id)
}

// AbilityIDs lists the defined abilities in sorted order, for display.
func (d *Defs) AbilityIDs() []string {
	ids := make([]string, 0, len(d.abilities))
	for id := range d.abilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewPiece instantiates a unit from a sheet at full vitals, attaching
// the sheet's starting components through the normal hooks.
func (d *Defs) NewPiece(sheetID string) (*piece.Piece, error) {
	sheet, ok := d.Sheets[sheetID]
	if !ok {
		return nil, fmt.Errorf("unknown sheet %q", sheetID)
	}
	p := piece.New(0, sheet.Name)
	p.Stats = sheet.Stats
	p.HP = sheet.Stats.Heart
	p.SP = sheet.Stats.Soul
	p.Skillset = sheet.Skills
	p.Abilities = append([]string(nil), sheet.Abilities...)
	p.Speed = sheet.Speed
	for key, value := range sheet.Components {
		if err := piece.Attach(d, p, key, value); err != nil {
			return nil, fmt.Errorf("sheet %s component %s: %w", sheetID, key, err)
		}
	}
	return p, nil
}

// compile turns collected tables into Defs. The VM is handed over.
func compile(L *lua.LState, coll *collector) (*Defs, error) {
	defs := &Defs{
		Sheets:     make(map[string]*Sheet),
		L:          L,
		abilities:  make(map[string]*luaAbility),
		components: make(map[string]*piece.Def),
		pieceUDs:   make(map[*piece.Piece]*lua.LUserData),
	}

	if coll.game != nil {
		defs.Game = types.GameDef{
			Title:   getString(coll.game, "title"),
			Author:  getString(coll.game, "author"),
			Version: getString(coll.game, "version"),
		}
		if floor := getTable(coll.game, "floor"); floor != nil {
			for i := 1; i <= floor.MaxN(); i++ {
				if s, ok := floor.RawGetInt(i).(lua.LString); ok {
					defs.FloorRows = append(defs.FloorRows, string(s))
				}
			}
		}
		if spawns := getTable(coll.game, "spawns"); spawns != nil {
			for i := 1; i <= spawns.MaxN(); i++ {
				tbl, ok := spawns.RawGetInt(i).(*lua.LTable)
				if !ok {
					return nil, fmt.Errorf("game spawn %d is not a table", i)
				}
				defs.Spawns = append(defs.Spawns, SpawnDef{
					Sheet:  getString(tbl, "sheet"),
					X:      getInt(tbl, "x"),
					Y:      getInt(tbl, "y"),
					Player: getBool(tbl, "player", false),
				})
			}
		}
	}

	for _, raw := range coll.sheets {
		sheet, err := compileSheet(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := defs.Sheets[raw.id]; dup {
			return nil, fmt.Errorf("duplicate sheet %q", raw.id)
		}
		defs.Sheets[raw.id] = sheet
	}

	for _, raw := range coll.abilities {
		ability, err := compileAbility(defs, raw)
		if err != nil {
			return nil, err
		}
		if _, dup := defs.abilities[raw.id]; dup {
			return nil, fmt.Errorf("duplicate ability %q", raw.id)
		}
		defs.abilities[raw.id] = ability
	}

	for _, raw := range coll.components {
		def, err := compileComponent(defs, raw)
		if err != nil {
			return nil, err
		}
		if _, dup := defs.components[raw.key]; dup {
			return nil, fmt.Errorf("duplicate component %q", raw.key)
		}
		defs.components[raw.key] = def
	}

	return defs, nil
}

func compileSheet(raw rawSheet) (*Sheet, error) {
	sheet := &Sheet{
		ID:    raw.id,
		Name:  getString(raw.table, "name"),
		Speed: types.Aut(getInt(raw.table, "speed")),
	}
	if sheet.Name == "" {
		sheet.Name = raw.id
	}
	if sheet.Speed == 0 {
		sheet.Speed = types.TurnTime
	}

	if stats := getTable(raw.table, "stats"); stats != nil {
		sheet.Stats = piece.Stats{
			Heart:      getInt(stats, "heart"),
			Soul:       getInt(stats, "soul"),
			Power:      getInt(stats, "power"),
			Defense:    getInt(stats, "defense"),
			Magic:      getInt(stats, "magic"),
			Resistance: getInt(stats, "resistance"),
		}
	}

	// Skill tags default to a positive/chaos leaning.
	major, minor := combat.TagPositive, combat.TagChaos
	if skills := getTable(raw.table, "skills"); skills != nil {
		var err error
		if s := getString(skills, "major"); s != "" {
			if major, err = combat.ParseTag(s); err != nil {
				return nil, fmt.Errorf("sheet %s: %w", raw.id, err)
			}
		}
		if s := getString(skills, "minor"); s != "" {
			if minor, err = combat.ParseTag(s); err != nil {
				return nil, fmt.Errorf("sheet %s: %w", raw.id, err)
			}
		}
	}
	skills, err := combat.NewSkillset(major, minor)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", raw.id, err)
	}
	sheet.Skills = skills

	if abilities := getTable(raw.table, "abilities"); abilities != nil {
		for i := 1; i <= abilities.MaxN(); i++ {
			if s, ok := abilities.RawGetInt(i).(lua.LString); ok {
				sheet.Abilities = append(sheet.Abilities, string(s))
			}
		}
	}

	if comps := getTable(raw.table, "components"); comps != nil {
		sheet.Components = make(map[string]types.Value)
		var convErr error
		comps.ForEach(func(k, v lua.LValue) {
			key, ok := k.(lua.LString)
			if !ok || convErr != nil {
				return
			}
			value, err := luaToValue(v)
			if err != nil {
				convErr = fmt.Errorf("sheet %s component %s: %w", raw.id, key, err)
				return
			}
			sheet.Components[string(key)] = value
		})
		if convErr != nil {
			return nil, convErr
		}
	}

	return sheet, nil
}

func compileAbility(defs *Defs, raw rawAbility) (*luaAbility, error) {
	a := &luaAbility{
		defs:  defs,
		id:    raw.id,
		name:  getString(raw.table, "name"),
		cost:  getInt(raw.table, "cost"),
		delay: types.Aut(getInt(raw.table, "delay")),
	}
	if a.name == "" {
		a.name = raw.id
	}
	if a.delay == 0 {
		a.delay = types.TurnTime
	}

	energy, harmony := getString(raw.table, "energy"), getString(raw.table, "harmony")
	if (energy == "") != (harmony == "") {
		return nil, fmt.Errorf("ability %s: energy and harmony tags come as a pair", raw.id)
	}
	if energy != "" {
		et, err := combat.ParseTag(energy)
		if err != nil {
			return nil, fmt.Errorf("ability %s: %w", raw.id, err)
		}
		ht, err := combat.ParseTag(harmony)
		if err != nil {
			return nil, fmt.Errorf("ability %s: %w", raw.id, err)
		}
		pair, err := combat.NewTagPair(et, ht)
		if err != nil {
			return nil, fmt.Errorf("ability %s: %w", raw.id, err)
		}
		a.tags = &pair
	}

	a.usable = getFunction(raw.table, "usable")
	a.onUse = getFunction(raw.table, "on_use")
	a.onConsider = getFunction(raw.table, "on_consider")
	if a.onUse == nil {
		return nil, fmt.Errorf("ability %s has no on_use", raw.id)
	}
	return a, nil
}

func compileComponent(defs *Defs, raw rawComponent) (*piece.Def, error) {
	def := &piece.Def{
		Name:    getString(raw.table, "name"),
		Visible: getBool(raw.table, "visible", true),
	}
	if def.Name == "" {
		def.Name = raw.key
	}

	key := raw.key
	if fn := getFunction(raw.table, "on_attach"); fn != nil {
		def.OnAttach = func(p *piece.Piece, prev, next types.Value) (types.Value, error) {
			return defs.callValueHook(fn, key, defs.pieceUD(p), valueToLua(defs, prev), valueToLua(defs, next))
		}
	}
	if fn := getFunction(raw.table, "on_detach"); fn != nil {
		def.OnDetach = func(p *piece.Piece, prev, annotation types.Value) (types.Value, error) {
			return defs.callValueHook(fn, key, defs.pieceUD(p), valueToLua(defs, prev), valueToLua(defs, annotation))
		}
	}
	if fn := getFunction(raw.table, "on_turn"); fn != nil {
		def.OnTurn = func(p *piece.Piece, elapsed types.Aut) error {
			value, _ := p.Component(key)
			_, err := defs.callValueHook(fn, key, defs.pieceUD(p), valueToLua(defs, value), lua.LNumber(elapsed))
			return err
		}
	}
	if fn := getFunction(raw.table, "on_rest"); fn != nil {
		def.OnRest = func(p *piece.Piece) error {
			value, _ := p.Component(key)
			_, err := defs.callValueHook(fn, key, defs.pieceUD(p), valueToLua(defs, value))
			return err
		}
	}
	if fn := getFunction(raw.table, "on_debuff"); fn != nil {
		def.OnDebuff = func(v types.Value) (piece.Stats, error) {
			L := defs.L
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, valueToLua(defs, v)); err != nil {
				return piece.Stats{}, fmt.Errorf("component %s on_debuff: %w", key, err)
			}
			ret := L.Get(-1)
			L.Pop(1)
			return luaToStats(ret)
		}
	}
	return def, nil
}

// callValueHook calls a plain (non-yielding) hook and converts its
// first return into a component value.
func (d *Defs) callValueHook(fn *lua.LFunction, key string, args ...lua.LValue) (types.Value, error) {
	L := d.L
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		return nil, fmt.Errorf("component %s hook: %w", key, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return luaToValue(ret)
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// getFunction returns a function field from a Lua table, or nil if missing.
func getFunction(tbl *lua.LTable, key string) *lua.LFunction {
	v := tbl.RawGetString(key)
	if f, ok := v.(*lua.LFunction); ok {
		return f
	}
	return nil
}
