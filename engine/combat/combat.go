// Package combat implements the resolution math shared by ability scripts:
// pierce thresholds, skill affinity scaling, the debuff penalty schedule,
// and the tagged combat log entries handed to the presentation sink.
package combat

import "fmt"

// ApplyPierce resolves a raw magnitude against a pierce threshold.
// Negative magnitudes are clamped to zero. A positive magnitude at or
// below the threshold is a glancing blow: no damage, but the second
// return distinguishes it from an outright miss so callers can narrate
// it differently (and some abilities still apply a minor secondary
// effect on a glance).
func ApplyPierce(threshold, magnitude int) (damage int, glance bool) {
	if magnitude < 0 {
		magnitude = 0
	}
	if magnitude > 0 && magnitude <= threshold {
		return 0, true
	}
	return magnitude, false
}

// DebuffPenalty converts an accumulated debuff magnitude into a stat
// penalty. The first two penalty points cost 10 magnitude each; every
// point after that costs 10 more than the previous one (10, 10, 20, 30,
// …), so stacking the same effect yields diminishing returns.
func DebuffPenalty(magnitude int) int {
	penalty := 0
	cost := 10
	for magnitude >= cost {
		magnitude -= cost
		penalty++
		cost = 10 * penalty
	}
	return penalty
}

// LogKind tags a combat log entry with its outcome.
type LogKind int

const (
	// LogSuccess is an attack or effect that succeeded without dealing damage.
	LogSuccess LogKind = iota
	// LogMiss is an attack that failed to do anything.
	LogMiss
	// LogGlance is an attack that dealt too little damage to pierce.
	LogGlance
	// LogHit is an attack that dealt damage.
	LogHit
)

// Log is a tagged combat outcome. Damage is meaningful only for LogHit.
type Log struct {
	Kind   LogKind
	Damage int
}

// Hit constructs a damaging outcome.
func Hit(damage int) Log { return Log{Kind: LogHit, Damage: damage} }

var (
	// Success is a non-damaging successful outcome.
	Success = Log{Kind: LogSuccess}
	// Miss is a failed outcome.
	Miss = Log{Kind: LogMiss}
	// Glance is a blocked-by-pierce outcome.
	Glance = Log{Kind: LogGlance}
)

// Weak reports whether the outcome should use failure narration.
func (l Log) Weak() bool {
	return l.Kind == LogMiss || l.Kind == LogGlance
}

func (l Log) String() string {
	switch l.Kind {
	case LogHit:
		return fmt.Sprintf("-%d HP", l.Damage)
	case LogSuccess:
		return "Success"
	case LogMiss:
		return "Miss"
	default:
		return "Glancing Blow"
	}
}
