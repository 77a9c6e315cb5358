package loader

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

// validate checks the compiled defs for referential integrity and
// consistency. Content problems are startup-fatal, not play-time
// surprises.
func validate(defs *Defs) error {
	ve := &ValidationError{}

	// Game title required.
	if defs.Game.Title == "" {
		ve.Errors = append(ve.Errors, "Game.Title is required")
	}

	// Floor parses and has interior.
	var floor floorProbe
	if len(defs.FloorRows) == 0 {
		ve.Errors = append(ve.Errors, "Game.floor is required")
	} else {
		var err error
		floor, err = probeFloor(defs.FloorRows)
		if err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	// Sheets reference defined abilities and components.
	for _, id := range sortedSheetIDs(defs.Sheets) {
		sheet := defs.Sheets[id]
		for _, abilityID := range sheet.Abilities {
			if _, ok := defs.abilities[abilityID]; !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"sheet %q references undefined ability %q", id, abilityID))
			}
		}
		compKeys := make([]string, 0, len(sheet.Components))
		for key := range sheet.Components {
			compKeys = append(compKeys, key)
		}
		sort.Strings(compKeys)
		for _, key := range compKeys {
			if _, ok := defs.components[key]; !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"sheet %q references undefined component %q", id, key))
			}
		}
		if sheet.Stats.Heart <= 0 {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"sheet %q has no heart: it would spawn dead", id))
		}
	}

	// Spawns reference defined sheets and stand on open floor.
	if len(defs.Spawns) == 0 {
		ve.Warnings = append(ve.Warnings, "no spawns defined: the battle starts empty")
	}
	taken := map[[2]int]bool{}
	for i, spawn := range defs.Spawns {
		if spawn.Sheet == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("spawn %d has no sheet", i+1))
			continue
		}
		if _, ok := defs.Sheets[spawn.Sheet]; !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"spawn %d references undefined sheet %q", i+1, spawn.Sheet))
		}
		if floor.rows != nil {
			if !floor.passable(spawn.X, spawn.Y) {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"spawn %d (%s) stands on impassable terrain at (%d,%d)",
					i+1, spawn.Sheet, spawn.X, spawn.Y))
			}
		}
		pos := [2]int{spawn.X, spawn.Y}
		if taken[pos] {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"spawn %d (%s) overlaps another spawn at (%d,%d)",
				i+1, spawn.Sheet, spawn.X, spawn.Y))
		}
		taken[pos] = true
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// floorProbe is a light floor check that avoids committing to a world
// during validation.
type floorProbe struct {
	rows []string
}

func probeFloor(rows []string) (floorProbe, error) {
	width := len(rows[0])
	for y, row := range rows {
		if len(row) != width {
			return floorProbe{}, fmt.Errorf("floor row %d is %d wide, want %d", y, len(row), width)
		}
		for x, c := range row {
			switch c {
			case '#', '.', '>':
			default:
				return floorProbe{}, fmt.Errorf("floor row %d col %d: unknown tile %q", y, x, c)
			}
		}
	}
	return floorProbe{rows: rows}, nil
}

func (f floorProbe) passable(x, y int) bool {
	if y < 0 || y >= len(f.rows) || x < 0 || x >= len(f.rows[y]) {
		return false
	}
	switch f.rows[y][x] {
	case '.', '>':
		return true
	}
	return false
}

func sortedSheetIDs(sheets map[string]*Sheet) []string {
	ids := make([]string, 0, len(sheets))
	for id := range sheets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
