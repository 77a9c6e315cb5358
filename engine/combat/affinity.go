package combat

import "fmt"

// Tag is one of the four skill tags. Tags come in two opposing axes:
// energy (positive/negative) and harmony (chaos/order).
type Tag int

const (
	TagPositive Tag = iota
	TagNegative
	TagChaos
	TagOrder
)

// Axis distinguishes the two tag axes.
type Axis int

const (
	AxisEnergy Axis = iota
	AxisHarmony
)

// Axis returns which axis the tag belongs to.
func (t Tag) Axis() Axis {
	if t == TagPositive || t == TagNegative {
		return AxisEnergy
	}
	return AxisHarmony
}

func (t Tag) String() string {
	switch t {
	case TagPositive:
		return "positive"
	case TagNegative:
		return "negative"
	case TagChaos:
		return "chaos"
	default:
		return "order"
	}
}

// ParseTag maps a content string to a tag.
func ParseTag(s string) (Tag, error) {
	switch s {
	case "positive":
		return TagPositive, nil
	case "negative":
		return TagNegative, nil
	case "chaos":
		return TagChaos, nil
	case "order":
		return TagOrder, nil
	}
	return 0, fmt.Errorf("unknown skill tag %q", s)
}

// Skillset is a unit's skill alignment: one major and one minor tag,
// always on opposing axes.
type Skillset struct {
	Major Tag
	Minor Tag
}

// NewSkillset validates that major and minor sit on opposing axes.
func NewSkillset(major, minor Tag) (Skillset, error) {
	if major.Axis() == minor.Axis() {
		return Skillset{}, fmt.Errorf("skillset tags %s and %s are on the same axis", major, minor)
	}
	return Skillset{Major: major, Minor: minor}, nil
}

// TagPair is an ability's declared alignment: one tag per axis.
type TagPair struct {
	Energy  Tag
	Harmony Tag
}

// NewTagPair validates that the pair covers both axes.
func NewTagPair(a, b Tag) (TagPair, error) {
	if a.Axis() == b.Axis() {
		return TagPair{}, fmt.Errorf("ability tags %s and %s are on the same axis", a, b)
	}
	if a.Axis() == AxisHarmony {
		a, b = b, a
	}
	return TagPair{Energy: a, Harmony: b}, nil
}

// Affinity scores how well a skillset matches an ability's tag pair:
// 3 for a major match plus 1 for a minor match, 0–4 total.
func Affinity(s Skillset, p TagPair) int {
	score := 0
	if s.Major == p.Energy || s.Major == p.Harmony {
		score += 3
	}
	if s.Minor == p.Energy || s.Minor == p.Harmony {
		score++
	}
	return score
}

// Scale applies an affinity score to a base magnitude. A score of 0
// nullifies the effect; 4 passes it through unchanged; intermediate
// scores interpolate by integer division.
func Scale(magnitude, score int) int {
	return magnitude * score / 4
}

// Weak reports whether an affinity score is low enough to warrant the
// alternate failure narration. Flavor only; no mechanical effect.
func Weak(score int) bool {
	return score <= 1
}
