package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"isrr-engine/internal/rating"
)

// Wildcard is the rule-table token for a criterion that does not
// constrain matching.
const Wildcard = "Not considered"

// Criterion is one axis of a final rule: either a set of acceptable
// values or the wildcard.
type Criterion struct {
	values []string
}

// WildcardCriterion matches any value on its axis.
func WildcardCriterion() Criterion {
	return Criterion{}
}

// NewCriterion builds a value-set criterion. The wildcard token and
// blanks are treated as "no constraint" only when they are the sole
// content; mixing them with real values is a table defect caught by
// NewFinalTable.
func NewCriterion(values ...string) Criterion {
	c := Criterion{}
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || strings.EqualFold(trimmed, Wildcard) {
			continue
		}
		c.values = append(c.values, trimmed)
	}
	return c
}

// IsWildcard reports whether the criterion constrains nothing.
func (c Criterion) IsWildcard() bool {
	return len(c.values) == 0
}

// Values returns the acceptable values (empty for wildcard).
func (c Criterion) Values() []string {
	out := make([]string, len(c.values))
	copy(out, c.values)
	return out
}

// Contains tests plain set membership, case-insensitively.
func (c Criterion) Contains(value string) bool {
	for _, v := range c.values {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// String renders the criterion for audit output.
func (c Criterion) String() string {
	if c.IsWildcard() {
		return Wildcard
	}
	return strings.Join(c.values, " | ")
}

// Attributes are an entity's normalized operational values, as produced
// by the loader's cleaning step.
type Attributes struct {
	Volume       string
	Format       string
	Connectivity string
}

// FinalRule is one row of the final rule table: three independent match
// criteria, the modifier it applies and the result level its effect is
// ranked by.
type FinalRule struct {
	ID           int
	Volume       Criterion
	Format       Criterion
	Connectivity Criterion
	Modifier     rating.Modifier
	Result       rating.Level
}

// Specificity counts non-wildcard criteria (0-3). Higher is more
// specific and wins the first tie-break level.
func (r FinalRule) Specificity() int {
	n := 0
	for _, c := range []Criterion{r.Volume, r.Format, r.Connectivity} {
		if !c.IsWildcard() {
			n++
		}
	}
	return n
}

// Impact is the ordinal magnitude of the rule's effect, used only for
// the second tie-break level.
func (r FinalRule) Impact() int {
	return int(r.Result)
}

// volumeSatisfies extends plain membership with "<N" bucket containment:
// an entity in bucket "<10" also satisfies a rule asking for "<50".
func volumeSatisfies(ruleValue, entityValue string) bool {
	if strings.EqualFold(ruleValue, entityValue) {
		return true
	}
	if strings.HasPrefix(ruleValue, "<") && strings.HasPrefix(entityValue, "<") {
		ruleN, errR := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(ruleValue, "<")))
		entityN, errE := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(entityValue, "<")))
		if errR == nil && errE == nil && entityN <= ruleN {
			return true
		}
	}
	return false
}

// Matches applies OR logic across the three axes: the rule matches iff
// any non-wildcard criterion is satisfied by the entity's value. A rule
// with all-wildcard criteria is universal and matches everything.
func (r FinalRule) Matches(a Attributes) bool {
	if r.Specificity() == 0 {
		return true
	}
	if !r.Volume.IsWildcard() {
		for _, v := range r.Volume.Values() {
			if volumeSatisfies(v, a.Volume) {
				return true
			}
		}
	}
	if !r.Format.IsWildcard() && r.Format.Contains(a.Format) {
		return true
	}
	if !r.Connectivity.IsWildcard() && r.Connectivity.Contains(a.Connectivity) {
		return true
	}
	return false
}

// FinalTable is the validated final rule set.
type FinalTable struct {
	rules []FinalRule
}

// NewFinalTable validates the rule rows. Rows with an invalid result
// level or modifier reject the whole table before any entity runs.
func NewFinalTable(rows []FinalRule) (*FinalTable, error) {
	for _, r := range rows {
		if !r.Result.Valid() {
			return nil, fmt.Errorf("final rule %d: invalid result level %d", r.ID, int(r.Result))
		}
		switch r.Modifier.Kind {
		case rating.ModifierAdd:
			if r.Modifier.Delta != 1 && r.Modifier.Delta != -1 {
				return nil, fmt.Errorf("final rule %d: unsupported additive delta %d", r.ID, r.Modifier.Delta)
			}
		case rating.ModifierOverride:
			if !r.Modifier.Level.Valid() {
				return nil, fmt.Errorf("final rule %d: invalid override level %d", r.ID, int(r.Modifier.Level))
			}
		default:
			return nil, fmt.Errorf("final rule %d: unrecognized modifier kind", r.ID)
		}
	}
	return &FinalTable{rules: rows}, nil
}

// Len returns the number of rules in the table.
func (t *FinalTable) Len() int {
	return len(t.rules)
}

// Rules returns the rule rows in load order.
func (t *FinalTable) Rules() []FinalRule {
	out := make([]FinalRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// HasUniversalRule reports whether the table contains an all-wildcard
// fallback row. Its absence makes "no final match" possible, which is a
// configuration defect worth flagging at load time.
func (t *FinalTable) HasUniversalRule() bool {
	for _, r := range t.rules {
		if r.Specificity() == 0 {
			return true
		}
	}
	return false
}

// NoFinalRuleError reports that no final rule matched an entity. With a
// well-formed table (universal fallback present) this cannot happen, so
// it is surfaced distinctly from ordinary per-entity data gaps.
type NoFinalRuleError struct {
	Attrs Attributes
}

func (e *NoFinalRuleError) Error() string {
	return fmt.Sprintf("no final rule matched (volume=%s format=%s connectivity=%s): final table lacks a universal fallback row",
		e.Attrs.Volume, e.Attrs.Format, e.Attrs.Connectivity)
}

// Decision is the audited outcome of final-rule resolution for one
// entity.
type Decision struct {
	Rule        FinalRule
	Final       rating.Level
	Matched     int // how many rules matched before tie-break
	Specificity int
	// Ambiguous is set when two or more distinct rows tied through all
	// three break levels. The first-listed row is used deterministically
	// and the record is flagged for manual review.
	Ambiguous     bool
	AmbiguousWith []int // IDs of the other tied rows
}

type tieKey struct {
	specificity int
	impact      int
	additive    int
}

func ruleKey(r FinalRule) tieKey {
	additive := 0
	if r.Modifier.Additive() {
		additive = 1
	}
	return tieKey{specificity: r.Specificity(), impact: r.Impact(), additive: additive}
}

func keyLess(a, b tieKey) bool {
	if a.specificity != b.specificity {
		return a.specificity < b.specificity
	}
	if a.impact != b.impact {
		return a.impact < b.impact
	}
	return a.additive < b.additive
}

// Evaluate matches every rule against the entity, resolves multiple
// matches via the strict priority order (specificity, then impact, then
// additive-modifier presence) and applies the winner's modifier to the
// interim rating.
func (t *FinalTable) Evaluate(a Attributes, interim rating.Level) (Decision, error) {
	var matched []FinalRule
	for _, r := range t.rules {
		if r.Matches(a) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return Decision{}, &NoFinalRuleError{Attrs: a}
	}

	best := matched[0]
	bestKey := ruleKey(best)
	tied := []FinalRule{best}
	for _, r := range matched[1:] {
		key := ruleKey(r)
		switch {
		case keyLess(bestKey, key):
			best, bestKey = r, key
			tied = tied[:0]
			tied = append(tied, r)
		case key == bestKey:
			tied = append(tied, r)
		}
	}

	d := Decision{
		Rule:        best,
		Final:       best.Modifier.Apply(interim),
		Matched:     len(matched),
		Specificity: best.Specificity(),
	}
	if len(tied) > 1 {
		d.Ambiguous = true
		for _, r := range tied[1:] {
			d.AmbiguousWith = append(d.AmbiguousWith, r.ID)
		}
	}
	return d, nil
}

var additiveModifierRe = regexp.MustCompile(`(?i)^ISRR\s*([+-])\s*(\d+)$`)

// ParseModifier interprets the modifier column of a final rule row.
// "ISRR + 1" / "ISRR - 1" become additive steps; any other ISRR
// expression is malformed; everything else means the row overrides to
// its result level.
func ParseModifier(text string, result rating.Level) (rating.Modifier, error) {
	trimmed := strings.TrimSpace(text)
	if strings.Contains(strings.ToUpper(trimmed), "ISRR") {
		m := additiveModifierRe.FindStringSubmatch(trimmed)
		if m == nil {
			return rating.Modifier{}, fmt.Errorf("unrecognized modifier %q", text)
		}
		n, err := strconv.Atoi(m[2])
		if err != nil || n != 1 {
			return rating.Modifier{}, fmt.Errorf("unsupported modifier step in %q", text)
		}
		if m[1] == "-" {
			n = -n
		}
		return rating.AddModifier(n), nil
	}
	if !result.Valid() {
		return rating.Modifier{}, fmt.Errorf("override modifier needs a valid result level, got %d", int(result))
	}
	return rating.OverrideModifier(result), nil
}
