package piece

import (
	"fmt"
	"sort"

	"github.com/nathoo/tacticore/types"
)

// ErrUnknownComponent marks attach/detach calls with a key the registry
// does not define. It is a caller error, contained to the failing call.
type ErrUnknownComponent struct {
	Key string
}

func (e *ErrUnknownComponent) Error() string {
	return fmt.Sprintf("unknown component %q", e.Key)
}

// Def is a named status type. All hooks are optional. Hooks run
// synchronously with the attach/detach call that triggered them; no
// other mutation of the same key can be observed mid-hook.
type Def struct {
	Name string
	// Visible components are shown on stat screens.
	Visible bool

	// OnAttach merges an existing value with a newly attached one.
	// Absent, a second attach overwrites.
	OnAttach func(p *Piece, prev, next types.Value) (types.Value, error)
	// OnDetach computes the remaining value after a detach; returning
	// Nil removes the component entirely. Absent, detach removes.
	OnDetach func(p *Piece, prev, annotation types.Value) (types.Value, error)
	// OnTurn runs once per turn-tick for every attached component.
	OnTurn func(p *Piece, elapsed types.Aut) error
	// OnRest runs on a long-rest event.
	OnRest func(p *Piece) error
	// OnDebuff converts the component's value into a stat deduction.
	// It must be pure.
	OnDebuff func(v types.Value) (Stats, error)
}

// Registry resolves component keys to definitions. Unknown keys are an
// error, never a silent default.
type Registry interface {
	Component(key string) (*Def, error)
}

// Attach stores value under key on p. If the key is already attached and
// the component defines on_attach, the stored value is replaced by the
// hook's result — merging the previous value with the new one. Without a
// hook a second attach overwrites.
//
// A hook may itself call Attach on the same key (the raw-to-structured
// conversion pattern); the outer call's hook result wins, which is what
// makes the conversion one-shot.
func Attach(reg Registry, p *Piece, key string, value types.Value) error {
	def, err := reg.Component(key)
	if err != nil {
		return err
	}
	prev, attached := p.components[key]
	if !attached || def.OnAttach == nil {
		p.components[key] = value
		return nil
	}
	merged, err := def.OnAttach(p, prev, value)
	if err != nil {
		return fmt.Errorf("on_attach for %q: %w", key, err)
	}
	if types.IsNil(merged) {
		delete(p.components, key)
		return nil
	}
	p.components[key] = merged
	return nil
}

// Detach removes key from p. If the component defines on_detach, the
// hook receives the current value and the annotation; a non-Nil result
// keeps the component attached with that value (partial removal), Nil
// removes it. Detaching an absent key is a no-op.
func Detach(reg Registry, p *Piece, key string, annotation types.Value) error {
	def, err := reg.Component(key)
	if err != nil {
		return err
	}
	prev, attached := p.components[key]
	if !attached {
		return nil
	}
	if def.OnDetach == nil {
		delete(p.components, key)
		return nil
	}
	remaining, err := def.OnDetach(p, prev, annotation)
	if err != nil {
		return fmt.Errorf("on_detach for %q: %w", key, err)
	}
	if types.IsNil(remaining) {
		delete(p.components, key)
		return nil
	}
	p.components[key] = remaining
	return nil
}

// Component returns the current value stored under key.
func (p *Piece) Component(key string) (types.Value, bool) {
	v, ok := p.components[key]
	return v, ok
}

// SetComponent stores a value directly, bypassing hooks. Reserved for
// world setup and hook bodies that deliberately replace their own value.
func (p *Piece) SetComponent(key string, value types.Value) {
	if types.IsNil(value) {
		delete(p.components, key)
		return
	}
	p.components[key] = value
}

// ComponentKeys returns the attached keys in sorted order.
func (p *Piece) ComponentKeys() []string {
	keys := make([]string, 0, len(p.components))
	for k := range p.components {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TickTurn invokes on_turn for every attached component that defines it.
// The key set is snapshotted first: hooks may attach or detach freely
// (countdown effects detach themselves at zero) without affecting the
// current tick's iteration order.
func TickTurn(reg Registry, p *Piece, elapsed types.Aut) error {
	for _, key := range p.ComponentKeys() {
		def, err := reg.Component(key)
		if err != nil {
			return err
		}
		if def.OnTurn == nil {
			continue
		}
		if _, still := p.components[key]; !still {
			continue
		}
		if err := def.OnTurn(p, elapsed); err != nil {
			return fmt.Errorf("on_turn for %q: %w", key, err)
		}
	}
	return nil
}

// Rest invokes on_rest for every attached component that defines it,
// clearing effects that do not survive a long rest.
func Rest(reg Registry, p *Piece) error {
	for _, key := range p.ComponentKeys() {
		def, err := reg.Component(key)
		if err != nil {
			return err
		}
		if def.OnRest == nil {
			continue
		}
		if _, still := p.components[key]; !still {
			continue
		}
		if err := def.OnRest(p); err != nil {
			return fmt.Errorf("on_rest for %q: %w", key, err)
		}
	}
	return nil
}

// Debuffs accumulates every attached component's on_debuff deduction.
func Debuffs(reg Registry, p *Piece) (Stats, error) {
	var total Stats
	for _, key := range p.ComponentKeys() {
		def, err := reg.Component(key)
		if err != nil {
			return Stats{}, err
		}
		if def.OnDebuff == nil {
			continue
		}
		deduction, err := def.OnDebuff(p.components[key])
		if err != nil {
			return Stats{}, fmt.Errorf("on_debuff for %q: %w", key, err)
		}
		total = total.Add(deduction)
	}
	return total, nil
}

// EffectiveStats is the piece's stat block after debuff deductions,
// clamped at zero per attribute.
func EffectiveStats(reg Registry, p *Piece) (Stats, error) {
	deduction, err := Debuffs(reg, p)
	if err != nil {
		return Stats{}, err
	}
	return p.Stats.Sub(deduction), nil
}
