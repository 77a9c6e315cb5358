package loader

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/types"
)

// luaToValue converts a Lua value into a component/argument value.
// Piece userdata becomes a Ref, so stored values stay plain data.
func luaToValue(v lua.LValue) (types.Value, error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return types.Nil{}, nil
	case lua.LBool:
		return types.Bool(val), nil
	case lua.LNumber:
		f := float64(val)
		if f == float64(int64(f)) {
			return types.Int(int64(f)), nil
		}
		return types.Float(f), nil
	case lua.LString:
		return types.String(val), nil
	case *lua.LUserData:
		if p, ok := val.Value.(*piece.Piece); ok {
			return types.Ref(p.ID), nil
		}
		return nil, fmt.Errorf("cannot store a %T", val.Value)
	case *lua.LTable:
		// Array part → list; otherwise string-keyed record.
		maxN := val.MaxN()
		if maxN > 0 {
			list := make(types.List, 0, maxN)
			for i := 1; i <= maxN; i++ {
				elem, err := luaToValue(val.RawGetInt(i))
				if err != nil {
					return nil, err
				}
				list = append(list, elem)
			}
			return list, nil
		}
		record := types.Record{}
		var convErr error
		val.ForEach(func(k, v lua.LValue) {
			if convErr != nil {
				return
			}
			ks, ok := k.(lua.LString)
			if !ok {
				convErr = fmt.Errorf("record key %s is not a string", k)
				return
			}
			elem, err := luaToValue(v)
			if err != nil {
				convErr = err
				return
			}
			record[string(ks)] = elem
		})
		if convErr != nil {
			return nil, convErr
		}
		return record, nil
	default:
		return nil, fmt.Errorf("cannot store a %s", v.Type())
	}
}

// valueToLua converts a value back for script use. Refs resolve to
// piece userdata through the bound world; a stale ref becomes nil.
func valueToLua(d *Defs, v types.Value) lua.LValue {
	switch val := v.(type) {
	case nil, types.Nil:
		return lua.LNil
	case types.Bool:
		return lua.LBool(val)
	case types.Int:
		return lua.LNumber(val)
	case types.Float:
		return lua.LNumber(val)
	case types.String:
		return lua.LString(val)
	case types.Ref:
		if d.resolver == nil {
			return lua.LNil
		}
		p, ok := d.resolver.ByID(int(val))
		if !ok {
			return lua.LNil
		}
		return d.pieceUD(p)
	case types.List:
		tbl := d.L.NewTable()
		for _, e := range val {
			tbl.Append(valueToLua(d, e))
		}
		return tbl
	case types.Record:
		tbl := d.L.NewTable()
		for k, e := range val {
			tbl.RawSetString(k, valueToLua(d, e))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// luaToStats reads a stats table as returned by on_debuff hooks.
// Missing fields are zero; nil means no penalty at all.
func luaToStats(v lua.LValue) (piece.Stats, error) {
	if v == lua.LNil {
		return piece.Stats{}, nil
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return piece.Stats{}, fmt.Errorf("stats must be a table, got %s", v.Type())
	}
	return piece.Stats{
		Heart:      getInt(tbl, "heart"),
		Soul:       getInt(tbl, "soul"),
		Power:      getInt(tbl, "power"),
		Defense:    getInt(tbl, "defense"),
		Magic:      getInt(tbl, "magic"),
		Resistance: getInt(tbl, "resistance"),
	}, nil
}

// statsToLua renders stats for script reads.
func statsToLua(L *lua.LState, s piece.Stats) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("heart", lua.LNumber(s.Heart))
	tbl.RawSetString("soul", lua.LNumber(s.Soul))
	tbl.RawSetString("power", lua.LNumber(s.Power))
	tbl.RawSetString("defense", lua.LNumber(s.Defense))
	tbl.RawSetString("magic", lua.LNumber(s.Magic))
	tbl.RawSetString("resistance", lua.LNumber(s.Resistance))
	return tbl
}
