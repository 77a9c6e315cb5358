package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/tacticore/engine"
	"github.com/nathoo/tacticore/engine/consider"
	"github.com/nathoo/tacticore/engine/piece"
	"github.com/nathoo/tacticore/engine/protocol"
	"github.com/nathoo/tacticore/types"
)

// writeContent lays Lua files out in a temp content directory.
func writeContent(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const testGame = `
Game {
	title = "Proving Grounds",
	author = "tester",
	version = "0.1.0",
	floor = {
		"#######",
		"#.....#",
		"#.....#",
		"#.....#",
		"#####>#",
	},
	spawns = {
		{ sheet = "aris", x = 1, y = 1, player = true },
		{ sheet = "rat", x = 4, y = 3 },
	},
}
`

const testSheets = `
Sheet "aris" {
	name = "Aris",
	stats = { heart = 20, soul = 12, power = 5, defense = 3, magic = 4, resistance = 2 },
	skills = { major = "order", minor = "positive" },
	abilities = { "scratch" },
	components = { ["std:teams"] = { "player" } },
}

Sheet "rat" {
	name = "Giant Rat",
	stats = { heart = 8, soul = 0, power = 4, defense = 1 },
	abilities = { "scratch" },
	components = { ["std:teams"] = { "vermin" } },
}
`

const testComponents = `
Component "std:teams" {
	name = "Teams",
	visible = false,
	on_attach = function(p, prev, next)
		if prev == nil then return next end
		local merged = {}
		local seen = {}
		for _, team in ipairs(prev) do
			merged[#merged + 1] = team
			seen[team] = true
		end
		for _, team in ipairs(next) do
			if not seen[team] then merged[#merged + 1] = team end
		end
		return merged
	end,
	on_detach = function(p, prev, annotation)
		if annotation == nil then return nil end
		local kept = {}
		for _, team in ipairs(prev) do
			if team ~= annotation then kept[#kept + 1] = team end
		end
		if #kept == 0 then return nil end
		return kept
	end,
}

Component "std:bleed" {
	name = "Bleeding",
	on_attach = function(p, prev, next)
		-- The first attach stores the raw magnitude; later attaches
		-- fold everything into a record.
		local mag = type(prev) == "table" and prev.magnitude or prev
		return { magnitude = mag + next }
	end,
	on_turn = function(p, value, elapsed)
		if elapsed > 0 then p:hurt(1) end
	end,
	on_rest = function(p, value)
		p:detach("std:bleed", nil)
	end,
	on_debuff = function(value)
		local mag = type(value) == "table" and value.magnitude or value
		return { defense = engine.combat.debuff_penalty(mag) }
	end,
}
`

const testAbilities = `
Ability "scratch" {
	name = "Scratch",
	delay = 12,
	on_use = function(p, args)
		local target = args.target
		local damage, glanced = engine.combat.apply_pierce(target.stats.defense, p.stats.power)
		if glanced then
			Console.combat(engine.combat.log.glance().text)
		else
			target:hurt(damage)
			Console.combat(engine.combat.log.hit(damage).text)
		end
	end,
	on_consider = function(p)
		local out = {}
		local nearby = engine.world.characters { x = p.x, y = p.y, range = 1 }
		for _, other in ipairs(nearby) do
			if not p:is_ally(other) then
				out[#out + 1] = engine.types.consider(
					engine.types.action.use("scratch", { target = other }),
					{ engine.types.heuristic.damage { target = other, amount = p.stats.power } }
				)
			end
		end
		return out
	end,
}
`

func loadTestDefs(t *testing.T) *Defs {
	t.Helper()
	dir := writeContent(t, map[string]string{
		"game.lua":       testGame,
		"sheets.lua":     testSheets,
		"components.lua": testComponents,
		"abilities.lua":  testAbilities,
	})
	defs, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(defs.Close)
	return defs
}

// bindWorld spawns the defined units into a world and binds the defs
// to it.
func bindWorld(t *testing.T, defs *Defs) (*engine.World, *engine.Buffer) {
	t.Helper()
	floor, err := engine.ParseFloor(defs.FloorRows)
	if err != nil {
		t.Fatal(err)
	}
	world := engine.NewWorld(floor)
	for _, spawn := range defs.Spawns {
		p, err := defs.NewPiece(spawn.Sheet)
		if err != nil {
			t.Fatal(err)
		}
		p.X, p.Y = spawn.X, spawn.Y
		p.PlayerControlled = spawn.Player
		world.Spawn(p)
	}
	console := &engine.Buffer{}
	defs.Bind(world, console, engine.NewRNG(7))
	return world, console
}

func TestLoadCompilesContent(t *testing.T) {
	defs := loadTestDefs(t)

	if defs.Game.Title != "Proving Grounds" {
		t.Errorf("title = %q", defs.Game.Title)
	}
	if len(defs.FloorRows) != 5 {
		t.Errorf("floor rows = %d, want 5", len(defs.FloorRows))
	}
	if len(defs.Spawns) != 2 || !defs.Spawns[0].Player {
		t.Errorf("spawns = %+v", defs.Spawns)
	}
	if _, ok := defs.Sheets["rat"]; !ok {
		t.Errorf("rat sheet missing")
	}
	if _, err := defs.Ability("scratch"); err != nil {
		t.Errorf("scratch ability: %v", err)
	}
	if _, err := defs.Component("std:bleed"); err != nil {
		t.Errorf("bleed component: %v", err)
	}
}

func TestNewPieceAttachesSheetComponents(t *testing.T) {
	defs := loadTestDefs(t)

	p, err := defs.NewPiece("aris")
	if err != nil {
		t.Fatal(err)
	}
	if p.HP != 20 || p.SP != 12 {
		t.Errorf("vitals = %d/%d, want 20/12", p.HP, p.SP)
	}
	teams := p.Teams()
	if len(teams) != 1 || teams[0] != "player" {
		t.Errorf("teams = %v", teams)
	}
}

func TestLuaTeamHooksMergeAndRemove(t *testing.T) {
	defs := loadTestDefs(t)
	p, err := defs.NewPiece("aris")
	if err != nil {
		t.Fatal(err)
	}

	if err := piece.Attach(defs, p, piece.TeamsComponent, types.List{types.String("militia")}); err != nil {
		t.Fatal(err)
	}
	teams := p.Teams()
	if len(teams) != 2 || teams[0] != "player" || teams[1] != "militia" {
		t.Fatalf("merged teams = %v", teams)
	}

	if err := piece.Detach(defs, p, piece.TeamsComponent, types.String("player")); err != nil {
		t.Fatal(err)
	}
	teams = p.Teams()
	if len(teams) != 1 || teams[0] != "militia" {
		t.Fatalf("teams after detach = %v", teams)
	}

	if err := piece.Detach(defs, p, piece.TeamsComponent, types.String("militia")); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Component(piece.TeamsComponent); ok {
		t.Errorf("empty team list should remove the component")
	}
}

func TestLuaBleedStacksAndDebuffs(t *testing.T) {
	defs := loadTestDefs(t)
	p, err := defs.NewPiece("aris")
	if err != nil {
		t.Fatal(err)
	}

	if err := piece.Attach(defs, p, "std:bleed", types.Int(10)); err != nil {
		t.Fatal(err)
	}
	if err := piece.Attach(defs, p, "std:bleed", types.Int(15)); err != nil {
		t.Fatal(err)
	}
	value, _ := p.Component("std:bleed")
	record, ok := value.(types.Record)
	if !ok || record["magnitude"] != types.Int(25) {
		t.Fatalf("bleed value = %v, want record with magnitude 25", value)
	}

	stats, err := piece.EffectiveStats(defs, p)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Defense != 1 {
		t.Errorf("effective defense = %d, want 1 (base 3, penalty 2)", stats.Defense)
	}

	if err := piece.TickTurn(defs, p, types.TurnTime); err != nil {
		t.Fatal(err)
	}
	if p.HP != 19 {
		t.Errorf("HP after bleed tick = %d, want 19", p.HP)
	}

	if err := piece.Rest(defs, p); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Component("std:bleed"); ok {
		t.Errorf("bleed survived the rest")
	}
}

func TestAbilityUseThroughProtocol(t *testing.T) {
	defs := loadTestDefs(t)
	world, console := bindWorld(t, defs)

	aris := world.Pieces()[0]
	rat := world.Pieces()[1]
	rat.X, rat.Y = 2, 1

	ability, err := defs.Ability("scratch")
	if err != nil {
		t.Fatal(err)
	}
	comp, err := ability.Use(aris, types.Record{"target": types.Ref(rat.ID)})
	if err != nil {
		t.Fatal(err)
	}
	ctrl := protocol.Synthetic{World: world, Actor: aris}
	if err := protocol.Run(protocol.NewSession(comp), world, ctrl); err != nil {
		t.Fatal(err)
	}

	// Power 5 clears defense 1, so the full 5 lands.
	if rat.HP != 3 {
		t.Errorf("rat HP = %d, want 3", rat.HP)
	}
	msgs := console.Messages()
	if len(msgs) != 1 || msgs[0].Kind != engine.MessageCombat || !strings.Contains(msgs[0].Text, "-5 HP") {
		t.Errorf("console = %v, want one combat line with -5 HP", msgs)
	}
}

func TestConsiderScriptYieldsQueries(t *testing.T) {
	defs := loadTestDefs(t)
	world, _ := bindWorld(t, defs)

	aris := world.Pieces()[0]
	rat := world.Pieces()[1]
	rat.X, rat.Y = 2, 2 // adjacent to (1,1)

	ability, err := defs.Ability("scratch")
	if err != nil {
		t.Fatal(err)
	}
	comp, err := ability.Consider(rat)
	if err != nil {
		t.Fatal(err)
	}
	ctrl := protocol.Synthetic{World: world, Actor: rat}
	if err := protocol.Run(protocol.NewSession(comp), world, ctrl); err != nil {
		t.Fatal(err)
	}

	cs := comp.Considerations()
	if len(cs) != 1 {
		t.Fatalf("considerations = %d, want 1 (only Aris is adjacent and hostile)", len(cs))
	}
	use, ok := cs[0].Action.(types.UseAbility)
	if !ok || use.ID != "scratch" {
		t.Fatalf("action = %v", cs[0].Action)
	}
	if ref, ok := use.Args["target"].(types.Ref); !ok || int(ref) != aris.ID {
		t.Errorf("target arg = %v, want ref to Aris", use.Args["target"])
	}
	damage, ok := cs[0].Heuristics[0].(consider.Damage)
	if !ok || damage.Target != aris || damage.Amount != 4 {
		t.Errorf("heuristic = %+v, want damage 4 on Aris", cs[0].Heuristics[0])
	}
}

func TestLoadRejectsBrokenReferences(t *testing.T) {
	dir := writeContent(t, map[string]string{
		"game.lua": `
Game {
	title = "Broken",
	floor = { "###", "#.#", "###" },
	spawns = { { sheet = "ghost", x = 1, y = 1 } },
}
Sheet "hero" {
	name = "Hero",
	stats = { heart = 10 },
	abilities = { "missing" },
}
`,
	})
	_, err := Load(dir)
	if err == nil {
		t.Fatal("load accepted broken content")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("err = %T (%v), want ValidationError", err, err)
	}
	text := strings.Join(ve.Errors, "\n")
	for _, want := range []string{"ghost", "missing"} {
		if !strings.Contains(text, want) {
			t.Errorf("errors missing mention of %q:\n%s", want, text)
		}
	}
}

func TestLoadRejectsSpawnOnWall(t *testing.T) {
	dir := writeContent(t, map[string]string{
		"game.lua": `
Game {
	title = "Walled",
	floor = { "###", "#.#", "###" },
	spawns = { { sheet = "hero", x = 0, y = 0 } },
}
Sheet "hero" { name = "Hero", stats = { heart = 10 } }
`,
	})
	_, err := Load(dir)
	if err == nil {
		t.Fatal("load accepted a spawn inside a wall")
	}
}

func TestScriptErrorSurfacesFromComputation(t *testing.T) {
	dir := writeContent(t, map[string]string{
		"game.lua": `
Game {
	title = "Faulty",
	floor = { "####", "#..#", "####" },
	spawns = { { sheet = "hero", x = 1, y = 1 } },
}
Sheet "hero" { name = "Hero", stats = { heart = 10 }, abilities = { "boom" } }
Ability "boom" {
	on_use = function(p, args)
		error("kaboom")
	end,
}
`,
	})
	defs, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer defs.Close()
	world, _ := bindWorld(t, defs)

	hero := world.Pieces()[0]
	ability, err := defs.Ability("boom")
	if err != nil {
		t.Fatal(err)
	}
	comp, err := ability.Use(hero, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctrl := protocol.Synthetic{World: world, Actor: hero}
	err = protocol.Run(protocol.NewSession(comp), world, ctrl)
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("err = %v, want the script error", err)
	}
}

func TestSpendCostGatesUsable(t *testing.T) {
	dir := writeContent(t, map[string]string{
		"game.lua": `
Game {
	title = "Costly",
	floor = { "####", "#..#", "####" },
	spawns = { { sheet = "hero", x = 1, y = 1 } },
}
Sheet "hero" { name = "Hero", stats = { heart = 10, soul = 3 }, abilities = { "surge" } }
Ability "surge" {
	cost = 2,
	on_use = function(p, args) end,
}
`,
	})
	defs, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer defs.Close()
	world, _ := bindWorld(t, defs)

	hero := world.Pieces()[0]
	ability, err := defs.Ability("surge")
	if err != nil {
		t.Fatal(err)
	}

	ok, err := ability.Usable(hero)
	if err != nil || !ok {
		t.Fatalf("usable with 3 SP: %v %v", ok, err)
	}
	comp, err := ability.Use(hero, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctrl := protocol.Synthetic{World: world, Actor: hero}
	if err := protocol.Run(protocol.NewSession(comp), world, ctrl); err != nil {
		t.Fatal(err)
	}
	if hero.SP != 1 {
		t.Errorf("SP = %d, want 1 after spending 2", hero.SP)
	}
	ok, err = ability.Usable(hero)
	if err != nil || ok {
		t.Fatalf("usable with 1 SP should be false: %v %v", ok, err)
	}
}

func TestScriptErrorLeavesCostUnspent(t *testing.T) {
	dir := writeContent(t, map[string]string{
		"game.lua": `
Game {
	title = "Refund",
	floor = { "####", "#..#", "####" },
	spawns = { { sheet = "hero", x = 1, y = 1 } },
}
Sheet "hero" { name = "Hero", stats = { heart = 10, soul = 3 }, abilities = { "fizzle" } }
Ability "fizzle" {
	cost = 2,
	on_use = function(p, args)
		error("sputters out")
	end,
}
`,
	})
	defs, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer defs.Close()
	world, _ := bindWorld(t, defs)

	hero := world.Pieces()[0]
	ability, err := defs.Ability("fizzle")
	if err != nil {
		t.Fatal(err)
	}
	comp, err := ability.Use(hero, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctrl := protocol.Synthetic{World: world, Actor: hero}
	if err := protocol.Run(protocol.NewSession(comp), world, ctrl); err == nil {
		t.Fatal("erroring script succeeded")
	}
	if hero.SP != 3 {
		t.Errorf("SP = %d, want 3: a failed cast must not charge its cost", hero.SP)
	}
}
