// Package rating defines the ordinal ISRR scale and the modifiers that
// rule rows apply to it.
package rating

import (
	"fmt"
	"strings"
)

// Level is one step on the ISRR scale. Levels are ordered
// Minor < Low < Moderate < High < Critical and numbered 1..5 so that
// modifier arithmetic and severity deltas stay simple integer math.
type Level int

const (
	Minor Level = iota + 1
	Low
	Moderate
	High
	Critical
)

var levelNames = map[Level]string{
	Minor:    "Minor",
	Low:      "Low",
	Moderate: "Moderate",
	High:     "High",
	Critical: "Critical",
}

// Levels lists every level in ascending order.
func Levels() []Level {
	return []Level{Minor, Low, Moderate, High, Critical}
}

// String returns the canonical display name for the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Valid reports whether l is one of the five defined levels.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// ParseLevel converts a display name into a Level. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseLevel(s string) (Level, error) {
	trimmed := strings.TrimSpace(s)
	for level, name := range levelNames {
		if strings.EqualFold(trimmed, name) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown rating level %q", s)
}

// Step shifts the level by delta positions, saturating at both ends of
// the scale. Pushing Critical higher stays Critical; pushing Minor lower
// stays Minor. Clamping is deliberate policy, not an error.
func (l Level) Step(delta int) Level {
	shifted := Level(int(l) + delta)
	if shifted < Minor {
		return Minor
	}
	if shifted > Critical {
		return Critical
	}
	return shifted
}

// Compare returns -1, 0 or +1 as a is below, equal to or above b.
func Compare(a, b Level) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ModifierKind discriminates how a modifier acts on the interim rating.
type ModifierKind int

const (
	// ModifierAdd shifts the interim rating by Delta with clamping.
	ModifierAdd ModifierKind = iota
	// ModifierOverride replaces the interim rating with Level outright.
	ModifierOverride
)

// Modifier is the effect a matched final rule applies to the interim
// rating: an additive step of +/-1, or a direct override to a fixed level.
type Modifier struct {
	Kind  ModifierKind
	Delta int   // meaningful when Kind == ModifierAdd
	Level Level // meaningful when Kind == ModifierOverride
}

// AddModifier builds an additive modifier. Delta is validated at rule
// load time, not here.
func AddModifier(delta int) Modifier {
	return Modifier{Kind: ModifierAdd, Delta: delta}
}

// OverrideModifier builds a modifier that sets the rating to level.
func OverrideModifier(level Level) Modifier {
	return Modifier{Kind: ModifierOverride, Level: level}
}

// Apply resolves the modifier against the interim rating.
func (m Modifier) Apply(interim Level) Level {
	switch m.Kind {
	case ModifierAdd:
		return interim.Step(m.Delta)
	case ModifierOverride:
		return m.Level
	default:
		return interim
	}
}

// Additive reports whether the modifier adjusts the interim rating rather
// than overriding it. Used by the final-rule tie-break.
func (m Modifier) Additive() bool {
	return m.Kind == ModifierAdd
}

// String renders the modifier the way the rule tables spell it.
func (m Modifier) String() string {
	switch m.Kind {
	case ModifierAdd:
		if m.Delta >= 0 {
			return fmt.Sprintf("ISRR + %d", m.Delta)
		}
		return fmt.Sprintf("ISRR - %d", -m.Delta)
	case ModifierOverride:
		return m.Level.String()
	default:
		return "none"
	}
}
