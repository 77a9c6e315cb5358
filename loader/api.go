package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers the declaration constructors as globals. These
// only collect tables; compile turns them into definitions.
func registerAPI(L *lua.LState, coll *collector) {
	// Game { title = "...", floor = {...}, spawns = {...} }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		coll.game = tbl
		return 0
	}))

	// Sheet "id" { ... } — curried: Sheet("id") returns a function that
	// takes a table.
	L.SetGlobal("Sheet", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.sheets = append(coll.sheets, rawSheet{id: id, table: tbl})
			return 0
		}))
		return 1
	}))

	// Ability "id" { ... } — curried.
	L.SetGlobal("Ability", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.abilities = append(coll.abilities, rawAbility{id: id, table: tbl})
			return 0
		}))
		return 1
	}))

	// Component "key" { ... } — curried. Keys are namespaced by
	// convention: "std:bleed", ":conscious".
	L.SetGlobal("Component", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.components = append(coll.components, rawComponent{key: key, table: tbl})
			return 0
		}))
		return 1
	}))
}
