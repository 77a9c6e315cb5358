package types

import (
	"fmt"
	"sort"
	"strings"
)

// Value is the restricted set of values that may be stored in a unit's
// component map or passed as ability arguments. The set mirrors what Lua
// content can express: nil, booleans, integers, floats, strings, ordered
// lists, string-keyed records, and references to other units.
//
// A Ref carries a unit ID rather than a pointer so that actions and
// component values stay plain data; the world manager resolves refs when
// a value crosses back into script space.
type Value interface {
	isValue()
}

// Nil is the explicit absent value. Hooks return Nil to mean "remove".
type Nil struct{}

// Bool is a boolean value.
type Bool bool

// Int is an integer value.
type Int int64

// Float is a floating-point value.
type Float float64

// String is a string value.
type String string

// List is an ordered sequence of values.
type List []Value

// Record is a string-keyed structured value.
type Record map[string]Value

// Ref is a reference to a unit by its stable ID.
type Ref int

func (Nil) isValue()    {}
func (Bool) isValue()   {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (String) isValue() {}
func (List) isValue()   {}
func (Record) isValue() {}
func (Ref) isValue()    {}

// IsNil reports whether v is absent (nil interface or the Nil variant).
func IsNil(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Nil)
	return ok
}

// FormatValue renders a value for error messages and traces.
func FormatValue(v Value) string {
	switch v := v.(type) {
	case nil, Nil:
		return "nil"
	case Bool:
		return fmt.Sprintf("%t", bool(v))
	case Int:
		return fmt.Sprintf("%d", int64(v))
	case Float:
		return fmt.Sprintf("%g", float64(v))
	case String:
		return fmt.Sprintf("%q", string(v))
	case Ref:
		return fmt.Sprintf("piece#%d", int(v))
	case List:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = FormatValue(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Record:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + " = " + FormatValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}
